package rag

import "context"

type Generator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (GenerationResult, error)
}

// Embedder devolve um vetor por texto, na ordem de entrada.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]RetrievedDocument, error)
	Close() error
}

type (
	GeneratorFactory func(ctx context.Context, model TextGenerationModel) (Generator, error)
	EmbedderFactory  func(ctx context.Context, model EmbeddingModel) (Embedder, error)
	RetrieverFactory func(ctx context.Context, fp Fingerprint) (Retriever, error)
)
