package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

type Config struct {
	Endpoint               EndpointConfig
	TextGenerationEndpoint string
	EmbeddingEndpoint      string
	GeminiAPIKey           string
	EmbedBatchSize         int
}

// Backends constrói os clients de cada modelo suportado.
// Os métodos Generator e Embedder servem como factories do SessionCache.
type Backends struct {
	cfg Config
	log *zap.SugaredLogger

	mu    sync.RWMutex
	genai *genai.Client
}

func NewBackends(cfg Config, log *zap.SugaredLogger) *Backends {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Backends{cfg: cfg, log: log}
}

func (b *Backends) Generator(ctx context.Context, model rag.TextGenerationModel) (rag.Generator, error) {
	switch model {
	case rag.ModelFlanT5XL:
		if b.cfg.TextGenerationEndpoint == "" {
			return nil, fmt.Errorf("TEXT2TEXT_ENDPOINT_NAME is not configured")
		}
		return NewGenerationClient(b.cfg.Endpoint, b.cfg.TextGenerationEndpoint, b.log), nil
	case rag.ModelGeminiFlash:
		c, err := b.genaiClient(ctx)
		if err != nil {
			return nil, err
		}
		return newGeminiModel(c, string(model), b.cfg.EmbedBatchSize, b.log), nil
	default:
		return nil, fmt.Errorf("unsupported text generation model %q", model)
	}
}

func (b *Backends) Embedder(ctx context.Context, model rag.EmbeddingModel) (rag.Embedder, error) {
	switch model {
	case rag.EmbeddingGPTJ6B:
		if b.cfg.EmbeddingEndpoint == "" {
			return nil, fmt.Errorf("EMBEDDING_ENDPOINT_NAME is not configured")
		}
		return NewEmbeddingClient(b.cfg.Endpoint, b.cfg.EmbeddingEndpoint, b.cfg.EmbedBatchSize, b.log), nil
	case rag.EmbeddingGeminiText:
		c, err := b.genaiClient(ctx)
		if err != nil {
			return nil, err
		}
		return newGeminiModel(c, string(rag.ModelGeminiFlash), b.cfg.EmbedBatchSize, b.log), nil
	default:
		return nil, fmt.Errorf("unsupported embedding model %q", model)
	}
}

// genaiClient cria o client do Gemini uma vez e o compartilha entre geração e embeddings.
func (b *Backends) genaiClient(ctx context.Context) (*genai.Client, error) {
	b.mu.RLock()
	c := b.genai
	b.mu.RUnlock()
	if c != nil {
		return c, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.genai != nil {
		return b.genai, nil
	}
	c, err := newGenAIClient(ctx, b.cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	b.genai = c
	return c, nil
}
