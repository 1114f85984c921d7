package rag

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/josinaldojr/llm-rag-gateway/internal/metrics"
)

const DefaultRemoteCallTimeout = 300 * time.Second

type Service struct {
	cache   *SessionCache
	timeout time.Duration
	log     *zap.SugaredLogger
}

func NewService(cache *SessionCache, timeout time.Duration, log *zap.SugaredLogger) *Service {
	if timeout <= 0 {
		timeout = DefaultRemoteCallTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{
		cache:   cache,
		timeout: timeout,
		log:     log,
	}
}

// Text2Text envia a pergunta crua ao modelo, sem retrieval e sem template.
func (s *Service) Text2Text(ctx context.Context, req InferenceRequest) (*Text2TextResponse, error) {
	if err := req.Validate(ModeText2Text); err != nil {
		return nil, err
	}

	resolveCtx, cancel := context.WithTimeout(ctx, s.timeout)
	gen, err := s.cache.ResolveGenerator(resolveCtx, req.Fingerprint())
	cancel()
	if err != nil {
		return nil, err
	}

	candidates, err := s.generate(ctx, gen, req, req.Query)
	if err != nil {
		return nil, err
	}

	return &Text2TextResponse{
		Question: req.Query,
		Answer:   candidates,
	}, nil
}

// RAG busca os documentos mais próximos, monta o prompt com eles e gera a resposta.
// Falha no retrieval aborta o request; não há fallback para geração sem contexto.
func (s *Service) RAG(ctx context.Context, req InferenceRequest) (*RAGResponse, error) {
	if err := req.Validate(ModeRAG); err != nil {
		return nil, err
	}

	resolveCtx, cancel := context.WithTimeout(ctx, s.timeout)
	retriever, gen, err := s.cache.Resolve(resolveCtx, req.Fingerprint())
	cancel()
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	docs, err := retriever.SimilaritySearch(searchCtx, req.Query, req.MaxMatchingDocs)
	cancel()
	if err != nil {
		if k := KindOf(err); k != KindRetrieval && k != KindInvalidArgument {
			err = NewRetrievalError(err)
		}
		s.log.Warnw("similarity search failed",
			"vectordb", req.VectorDB,
			"k", req.MaxMatchingDocs,
			"error", err,
		)
		return nil, err
	}
	metrics.RetrievedDocuments.Observe(float64(len(docs)))

	prompt := BuildPrompt(req.Query, docs)
	s.log.Debugw("prompt built", "docs", len(docs), "prompt_chars", len(prompt))

	candidates, err := s.generate(ctx, gen, req, prompt)
	if err != nil {
		return nil, err
	}

	resp := &RAGResponse{
		Question: req.Query,
		Answer:   candidates.First(),
	}
	if req.Verbose {
		if docs == nil {
			docs = []RetrievedDocument{}
		}
		resp.Docs = docs
		resp.Candidates = candidates
	}
	return resp, nil
}

func (s *Service) generate(ctx context.Context, gen Generator, req InferenceRequest, prompt string) (GenerationResult, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	candidates, err := gen.Generate(genCtx, prompt, req.GenerationParams)
	if err != nil {
		if KindOf(err) == "" {
			err = NewModelInvocationError(string(req.TextGenerationModel), err)
		}
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &Error{
			Kind:     KindModelInvocation,
			Endpoint: string(req.TextGenerationModel),
			Message:  "model returned no candidates",
		}
	}
	return candidates, nil
}
