package rag

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/josinaldojr/llm-rag-gateway/internal/metrics"
)

const defaultRetireGrace = 30 * time.Second

// Phase é o estado observável do SessionCache.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseResolving
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseResolving:
		return "RESOLVING_HANDLES"
	case PhaseReady:
		return "READY"
	default:
		return "UNINITIALIZED"
	}
}

// OrchestrationState é imutável depois de publicado; mudanças criam um novo valor.
type OrchestrationState struct {
	Fingerprint Fingerprint
	Retriever   Retriever
	Generator   Generator
}

type SessionOptions struct {
	// StrictGenerator reconstrói o handle de geração quando o modelo muda.
	// Desligado, o primeiro handle construído é usado pelo resto do processo.
	StrictGenerator bool
	// RetireGrace é quanto um retriever substituído espera antes do Close,
	// para requests em andamento terminarem.
	RetireGrace time.Duration
	// BuildTimeout limita cada construção de handle. Zero usa DefaultRemoteCallTimeout.
	BuildTimeout time.Duration
}

// SessionCache guarda no máximo um retriever e um generator vivos,
// construídos sob demanda e reaproveitados entre requests.
type SessionCache struct {
	newRetriever RetrieverFactory
	newGenerator GeneratorFactory
	opts         SessionOptions
	log          *zap.SugaredLogger

	state     atomic.Pointer[OrchestrationState]
	mu        sync.Mutex
	group     singleflight.Group
	resolving atomic.Int32
}

func NewSessionCache(retrievers RetrieverFactory, generators GeneratorFactory, opts SessionOptions, log *zap.SugaredLogger) *SessionCache {
	if opts.RetireGrace < 0 {
		opts.RetireGrace = 0
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = DefaultRemoteCallTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SessionCache{
		newRetriever: retrievers,
		newGenerator: generators,
		opts:         opts,
		log:          log,
	}
}

// Resolve garante os dois handles para o fingerprint e os devolve.
// Mudança de vectordb ou de modelo de embedding força reconexão do retriever.
func (c *SessionCache) Resolve(ctx context.Context, fp Fingerprint) (Retriever, Generator, error) {
	if st := c.state.Load(); st != nil && c.retrieverHit(st, fp) && c.generatorHit(st, fp) {
		return st.Retriever, st.Generator, nil
	}

	c.resolving.Add(1)
	defer c.resolving.Add(-1)

	r, err := c.resolveRetriever(ctx, fp)
	if err != nil {
		return nil, nil, err
	}
	g, err := c.resolveGenerator(ctx, fp)
	if err != nil {
		return nil, nil, err
	}
	return r, g, nil
}

// ResolveGenerator atende o caminho text2text; não toca no vector store.
func (c *SessionCache) ResolveGenerator(ctx context.Context, fp Fingerprint) (Generator, error) {
	if st := c.state.Load(); st != nil && c.generatorHit(st, fp) {
		return st.Generator, nil
	}

	c.resolving.Add(1)
	defer c.resolving.Add(-1)
	return c.resolveGenerator(ctx, fp)
}

func (c *SessionCache) State() *OrchestrationState {
	return c.state.Load()
}

func (c *SessionCache) Phase() Phase {
	if c.resolving.Load() > 0 {
		return PhaseResolving
	}
	st := c.state.Load()
	if st != nil && st.Retriever != nil && st.Generator != nil {
		return PhaseReady
	}
	return PhaseUninitialized
}

// Close fecha o retriever atual e limpa o estado.
func (c *SessionCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state.Swap(nil)
	if st == nil || st.Retriever == nil {
		return nil
	}
	return st.Retriever.Close()
}

func (c *SessionCache) retrieverHit(st *OrchestrationState, fp Fingerprint) bool {
	return st.Retriever != nil && st.Fingerprint.retrievalKey() == fp.retrievalKey()
}

func (c *SessionCache) generatorHit(st *OrchestrationState, fp Fingerprint) bool {
	if st.Generator == nil {
		return false
	}
	return !c.opts.StrictGenerator || st.Fingerprint.TextGenerationModel == fp.TextGenerationModel
}

// join entra no voo de key. Quem desiste (ctx cancelado ou vencido) sai com
// InitializationError e o voo continua para os demais.
func (c *SessionCache) join(ctx context.Context, key, component string, fn func() (any, error)) (any, bool, error) {
	select {
	case res := <-c.group.DoChan(key, fn):
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, NewInitializationError(component, ctx.Err())
	}
}

// buildContext mantém os valores de ctx mas não o cancelamento de quem abriu o voo.
func (c *SessionCache) buildContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.opts.BuildTimeout)
}

func (c *SessionCache) resolveRetriever(ctx context.Context, fp Fingerprint) (Retriever, error) {
	v, shared, err := c.join(ctx, "retriever:"+fp.retrievalKey(), "vector store client", func() (any, error) {
		if st := c.state.Load(); st != nil && c.retrieverHit(st, fp) {
			return st.Retriever, nil
		}

		bctx, cancel := c.buildContext(ctx)
		defer cancel()

		start := time.Now()
		r, err := c.newRetriever(bctx, fp)
		if err != nil {
			metrics.SessionConstructions.WithLabelValues("retriever", "error").Inc()
			// slot fica vazio para o próximo request tentar de novo
			old := c.update(func(next *OrchestrationState) {
				next.Retriever = nil
			})
			c.retire(old, nil)
			c.log.Warnw("vector store construction failed",
				"vectordb", fp.VectorDB,
				"embedding_model", fp.EmbeddingModel,
				"error", err,
			)
			return nil, NewInitializationError("vector store client", err)
		}

		old := c.update(func(next *OrchestrationState) {
			next.Retriever = r
			next.Fingerprint.VectorDB = fp.VectorDB
			next.Fingerprint.EmbeddingModel = fp.EmbeddingModel
		})
		c.retire(old, r)

		metrics.SessionConstructions.WithLabelValues("retriever", "ok").Inc()
		c.log.Infow("vector store client ready",
			"vectordb", fp.VectorDB,
			"embedding_model", fp.EmbeddingModel,
			"elapsed", time.Since(start).String(),
		)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debugw("joined in-flight vector store construction", "fingerprint", fp.retrievalKey())
	}
	return v.(Retriever), nil
}

func (c *SessionCache) resolveGenerator(ctx context.Context, fp Fingerprint) (Generator, error) {
	v, _, err := c.join(ctx, "generator:"+string(fp.TextGenerationModel), "generation client", func() (any, error) {
		if st := c.state.Load(); st != nil && c.generatorHit(st, fp) {
			return st.Generator, nil
		}

		bctx, cancel := c.buildContext(ctx)
		defer cancel()

		start := time.Now()
		g, err := c.newGenerator(bctx, fp.TextGenerationModel)
		if err != nil {
			metrics.SessionConstructions.WithLabelValues("generator", "error").Inc()
			c.log.Warnw("generation client construction failed",
				"model", fp.TextGenerationModel,
				"error", err,
			)
			return nil, NewInitializationError("generation client", err)
		}

		c.update(func(next *OrchestrationState) {
			next.Generator = g
			next.Fingerprint.TextGenerationModel = fp.TextGenerationModel
		})

		metrics.SessionConstructions.WithLabelValues("generator", "ok").Inc()
		c.log.Infow("generation client ready",
			"model", fp.TextGenerationModel,
			"elapsed", time.Since(start).String(),
		)
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Generator), nil
}

// update publica um novo estado derivado do atual e devolve o anterior.
// Fingerprints diferentes concorrendo: vence o último a escrever.
func (c *SessionCache) update(fn func(next *OrchestrationState)) *OrchestrationState {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state.Load()
	next := &OrchestrationState{}
	if prev != nil {
		*next = *prev
	}
	fn(next)
	c.state.Store(next)
	return prev
}

func (c *SessionCache) retire(old *OrchestrationState, replacement Retriever) {
	if old == nil || old.Retriever == nil || old.Retriever == replacement {
		return
	}
	r := old.Retriever
	closeFn := func() {
		if err := r.Close(); err != nil {
			c.log.Warnw("closing retired vector store client", "error", err)
		}
	}
	if c.opts.RetireGrace == 0 {
		closeFn()
		return
	}
	time.AfterFunc(c.opts.RetireGrace, closeFn)
}

// DefaultSessionOptions devolve as opções usadas quando nada é configurado.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{RetireGrace: defaultRetireGrace}
}
