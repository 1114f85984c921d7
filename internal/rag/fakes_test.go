package rag_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

type fakeGenerator struct {
	model rag.TextGenerationModel
	out   rag.GenerationResult
	err   error

	calls   atomic.Int32
	mu      sync.Mutex
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ rag.GenerationParams) (rag.GenerationResult, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.out, nil
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type fakeRetriever struct {
	fp     rag.Fingerprint
	docs   []rag.RetrievedDocument
	err    error
	calls  atomic.Int32
	closed atomic.Bool
}

func (r *fakeRetriever) SimilaritySearch(_ context.Context, _ string, k int) ([]rag.RetrievedDocument, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	if len(r.docs) > k {
		return r.docs[:k], nil
	}
	return r.docs, nil
}

func (r *fakeRetriever) Close() error {
	r.closed.Store(true)
	return nil
}

// stubBackends conta construções e devolve fakes configuráveis.
type stubBackends struct {
	delay         time.Duration
	gate          chan struct{}
	failRetriever atomic.Bool
	docs          []rag.RetrievedDocument
	searchErr     error
	genOut        rag.GenerationResult
	genErr        error

	retrieverBuilds atomic.Int32
	generatorBuilds atomic.Int32

	mu         sync.Mutex
	retrievers []*fakeRetriever
	generators []*fakeGenerator
}

func newStubBackends() *stubBackends {
	return &stubBackends{genOut: rag.GenerationResult{"generated answer"}}
}

func (b *stubBackends) Retriever(ctx context.Context, fp rag.Fingerprint) (rag.Retriever, error) {
	b.retrieverBuilds.Add(1)
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	// gate segura a construção até ser fechado ou até o ctx da construção acabar
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.failRetriever.Load() {
		return nil, errors.New("dial tcp: connection refused")
	}
	r := &fakeRetriever{fp: fp, docs: b.docs, err: b.searchErr}
	b.mu.Lock()
	b.retrievers = append(b.retrievers, r)
	b.mu.Unlock()
	return r, nil
}

func (b *stubBackends) Generator(_ context.Context, model rag.TextGenerationModel) (rag.Generator, error) {
	b.generatorBuilds.Add(1)
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	g := &fakeGenerator{model: model, out: b.genOut, err: b.genErr}
	b.mu.Lock()
	b.generators = append(b.generators, g)
	b.mu.Unlock()
	return g, nil
}

func (b *stubBackends) lastGenerator() *fakeGenerator {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.generators) == 0 {
		return nil
	}
	return b.generators[len(b.generators)-1]
}

func (b *stubBackends) cache(opts rag.SessionOptions) *rag.SessionCache {
	return rag.NewSessionCache(b.Retriever, b.Generator, opts, nil)
}

func fingerprint(db rag.VectorDBType, emb rag.EmbeddingModel, gen rag.TextGenerationModel) rag.Fingerprint {
	return rag.Fingerprint{VectorDB: db, EmbeddingModel: emb, TextGenerationModel: gen}
}

var defaultFP = rag.NewInferenceRequest().Fingerprint()
