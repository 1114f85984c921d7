package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/josinaldojr/llm-rag-gateway/internal/db"
	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

type Config struct {
	DatabaseURL string
	Index       string
	Qdrant      QdrantConfig
}

// OpenIndex conecta no backend escolhido e confere a conectividade.
func OpenIndex(ctx context.Context, vectorDB rag.VectorDBType, cfg Config) (Index, error) {
	var (
		idx Index
		err error
	)

	switch vectorDB {
	case rag.VectorDBPgvector:
		pool, perr := db.NewPool(ctx, cfg.DatabaseURL)
		if perr != nil {
			return nil, perr
		}
		idx = NewPgIndex(pool, cfg.Index)
	case rag.VectorDBQdrant:
		idx, err = NewQdrantIndex(cfg.Qdrant, cfg.Index)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported vectordb_type %q", vectorDB)
	}

	if err := idx.Ping(ctx); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("ping %s %s: %w", vectorDB, idx.Name(), err)
	}
	return idx, nil
}

// NewRetrieverFactory monta um Client novo a cada mudança de fingerprint.
func NewRetrieverFactory(cfg Config, embedders rag.EmbedderFactory, log *zap.SugaredLogger) rag.RetrieverFactory {
	return func(ctx context.Context, fp rag.Fingerprint) (rag.Retriever, error) {
		embedder, err := embedders(ctx, fp.EmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("embedding client: %w", err)
		}

		idx, err := OpenIndex(ctx, fp.VectorDB, cfg)
		if err != nil {
			return nil, err
		}
		return NewClient(embedder, idx, log), nil
	}
}
