package rag_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

func TestResolve_ConcurrentSameFingerprintSharesHandles(t *testing.T) {
	b := newStubBackends()
	b.delay = 50 * time.Millisecond
	cache := b.cache(rag.SessionOptions{})

	const n = 20
	retrievers := make([]rag.Retriever, n)
	generators := make([]rag.Generator, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, g, err := cache.Resolve(context.Background(), defaultFP)
			assert.NoError(t, err)
			retrievers[i] = r
			generators[i] = g
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), b.retrieverBuilds.Load())
	assert.Equal(t, int32(1), b.generatorBuilds.Load())
	for i := 1; i < n; i++ {
		assert.Same(t, retrievers[0], retrievers[i])
		assert.Same(t, generators[0], generators[i])
	}
	assert.Equal(t, rag.PhaseReady, cache.Phase())
}

func TestResolve_RetrievalFingerprintChangeKeepsGenerator(t *testing.T) {
	b := newStubBackends()
	cache := b.cache(rag.SessionOptions{})
	ctx := context.Background()

	r1, g1, err := cache.Resolve(ctx, defaultFP)
	require.NoError(t, err)

	qdrantFP := fingerprint(rag.VectorDBQdrant, rag.EmbeddingGPTJ6B, rag.ModelFlanT5XL)
	r2, g2, err := cache.Resolve(ctx, qdrantFP)
	require.NoError(t, err)

	assert.NotSame(t, r1, r2)
	assert.Same(t, g1, g2)
	assert.Equal(t, int32(2), b.retrieverBuilds.Load())
	assert.Equal(t, int32(1), b.generatorBuilds.Load())
	assert.True(t, r1.(*fakeRetriever).closed.Load(), "replaced retriever should be closed")
	assert.Equal(t, qdrantFP, cache.State().Fingerprint)

	embFP := fingerprint(rag.VectorDBQdrant, rag.EmbeddingGeminiText, rag.ModelFlanT5XL)
	r3, _, err := cache.Resolve(ctx, embFP)
	require.NoError(t, err)
	assert.NotSame(t, r2, r3)
	assert.Equal(t, int32(3), b.retrieverBuilds.Load())
}

func TestResolve_RetiredRetrieverClosedAfterGrace(t *testing.T) {
	b := newStubBackends()
	cache := b.cache(rag.SessionOptions{RetireGrace: 20 * time.Millisecond})
	ctx := context.Background()

	r1, _, err := cache.Resolve(ctx, defaultFP)
	require.NoError(t, err)
	_, _, err = cache.Resolve(ctx, fingerprint(rag.VectorDBQdrant, rag.EmbeddingGPTJ6B, rag.ModelFlanT5XL))
	require.NoError(t, err)

	assert.False(t, r1.(*fakeRetriever).closed.Load())
	assert.Eventually(t, func() bool { return r1.(*fakeRetriever).closed.Load() }, time.Second, 5*time.Millisecond)
}

func TestResolve_GenerationModelChange(t *testing.T) {
	geminiFP := fingerprint(rag.VectorDBPgvector, rag.EmbeddingGPTJ6B, rag.ModelGeminiFlash)

	t.Run("default reuses first generator", func(t *testing.T) {
		b := newStubBackends()
		cache := b.cache(rag.SessionOptions{})

		r1, g1, err := cache.Resolve(context.Background(), defaultFP)
		require.NoError(t, err)
		r2, g2, err := cache.Resolve(context.Background(), geminiFP)
		require.NoError(t, err)

		assert.Same(t, r1, r2)
		assert.Same(t, g1, g2)
		assert.Equal(t, int32(1), b.generatorBuilds.Load())
		assert.Equal(t, rag.ModelFlanT5XL, g2.(*fakeGenerator).model)
	})

	t.Run("strict rebuilds generator", func(t *testing.T) {
		b := newStubBackends()
		cache := b.cache(rag.SessionOptions{StrictGenerator: true})

		r1, g1, err := cache.Resolve(context.Background(), defaultFP)
		require.NoError(t, err)
		r2, g2, err := cache.Resolve(context.Background(), geminiFP)
		require.NoError(t, err)

		assert.Same(t, r1, r2)
		assert.NotSame(t, g1, g2)
		assert.Equal(t, int32(2), b.generatorBuilds.Load())
		assert.Equal(t, int32(1), b.retrieverBuilds.Load())
		assert.Equal(t, rag.ModelGeminiFlash, g2.(*fakeGenerator).model)
	})
}

func TestResolve_ConstructionFailureIsNotCached(t *testing.T) {
	b := newStubBackends()
	b.failRetriever.Store(true)
	cache := b.cache(rag.SessionOptions{})
	ctx := context.Background()

	_, _, err := cache.Resolve(ctx, defaultFP)
	require.Error(t, err)
	assert.True(t, rag.IsKind(err, rag.KindInitialization))
	assert.Equal(t, rag.PhaseUninitialized, cache.Phase())

	b.failRetriever.Store(false)
	r, g, err := cache.Resolve(ctx, defaultFP)
	require.NoError(t, err)
	assert.NotNil(t, r)
	assert.NotNil(t, g)
	assert.Equal(t, int32(2), b.retrieverBuilds.Load())
	assert.Equal(t, rag.PhaseReady, cache.Phase())
}

func TestResolve_FailureClearsPreviousRetriever(t *testing.T) {
	b := newStubBackends()
	cache := b.cache(rag.SessionOptions{})
	ctx := context.Background()

	r1, _, err := cache.Resolve(ctx, defaultFP)
	require.NoError(t, err)

	b.failRetriever.Store(true)
	_, _, err = cache.Resolve(ctx, fingerprint(rag.VectorDBQdrant, rag.EmbeddingGPTJ6B, rag.ModelFlanT5XL))
	require.Error(t, err)

	assert.Nil(t, cache.State().Retriever)
	assert.True(t, r1.(*fakeRetriever).closed.Load())
	assert.NotNil(t, cache.State().Generator)
}

func TestResolveGenerator_DoesNotTouchVectorStore(t *testing.T) {
	b := newStubBackends()
	cache := b.cache(rag.SessionOptions{})

	g1, err := cache.ResolveGenerator(context.Background(), defaultFP)
	require.NoError(t, err)
	g2, err := cache.ResolveGenerator(context.Background(), defaultFP)
	require.NoError(t, err)

	assert.Same(t, g1, g2)
	assert.Equal(t, int32(0), b.retrieverBuilds.Load())
	assert.Equal(t, rag.PhaseUninitialized, cache.Phase())
}

func TestPhase_Transitions(t *testing.T) {
	b := newStubBackends()
	b.delay = 200 * time.Millisecond
	cache := b.cache(rag.SessionOptions{})
	assert.Equal(t, rag.PhaseUninitialized, cache.Phase())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, err := cache.Resolve(context.Background(), defaultFP)
		assert.NoError(t, err)
	}()

	assert.Eventually(t, func() bool { return cache.Phase() == rag.PhaseResolving }, time.Second, 5*time.Millisecond)
	<-done
	assert.Equal(t, rag.PhaseReady, cache.Phase())
	assert.Equal(t, "READY", cache.Phase().String())
}

func TestClose_ClosesCurrentRetriever(t *testing.T) {
	b := newStubBackends()
	cache := b.cache(rag.SessionOptions{})

	r, _, err := cache.Resolve(context.Background(), defaultFP)
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	assert.True(t, r.(*fakeRetriever).closed.Load())
	assert.Nil(t, cache.State())
	assert.Equal(t, rag.PhaseUninitialized, cache.Phase())
}

func TestResolve_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	b := newStubBackends()
	b.gate = make(chan struct{})
	cache := b.cache(rag.SessionOptions{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := cache.Resolve(firstCtx, defaultFP)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return b.retrieverBuilds.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		r   rag.Retriever
		err error
	}
	second := make(chan result, 1)
	go func() {
		r, _, err := cache.Resolve(context.Background(), defaultFP)
		second <- result{r, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.Equal(t, rag.KindInitialization, rag.KindOf(err))
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting on construction")
	}

	close(b.gate)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.NotNil(t, res.r)
	case <-time.After(time.Second):
		t.Fatal("joined caller never got the handle")
	}
	assert.Equal(t, int32(1), b.retrieverBuilds.Load())
}

func TestResolve_ConstructionIsBounded(t *testing.T) {
	b := newStubBackends()
	b.gate = make(chan struct{})
	cache := b.cache(rag.SessionOptions{BuildTimeout: 30 * time.Millisecond})

	start := time.Now()
	_, _, err := cache.Resolve(context.Background(), defaultFP)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, rag.KindInitialization, rag.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, rag.PhaseUninitialized, cache.Phase())
}
