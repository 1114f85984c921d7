package rag

import "strings"

const maxReturnSequences = 10

// Mode indica qual caminho do orchestrator vai atender o request.
type Mode int

const (
	ModeText2Text Mode = iota
	ModeRAG
)

// Validate roda antes de qualquer chamada remota. Qualquer falha é InvalidArgument.
func (r InferenceRequest) Validate(mode Mode) error {
	if r.SchemaVersion != "" && r.SchemaVersion != SchemaV1 {
		return NewInvalidArgument("unsupported schema_version %q", r.SchemaVersion)
	}
	if strings.TrimSpace(r.Query) == "" {
		return NewInvalidArgument("query is required")
	}

	p := r.GenerationParams
	switch {
	case p.MaxLength <= 0:
		return NewInvalidArgument("max_length must be > 0, got %d", p.MaxLength)
	case p.NumReturnSequences < 1 || p.NumReturnSequences > maxReturnSequences:
		return NewInvalidArgument("num_return_sequences must be between 1 and %d, got %d", maxReturnSequences, p.NumReturnSequences)
	case p.TopK < 0:
		return NewInvalidArgument("top_k must be >= 0, got %d", p.TopK)
	case p.TopP <= 0 || p.TopP > 1:
		return NewInvalidArgument("top_p must be in (0, 1], got %v", p.TopP)
	case p.Temperature <= 0:
		return NewInvalidArgument("temperature must be > 0, got %v", p.Temperature)
	}

	switch r.TextGenerationModel {
	case ModelFlanT5XL, ModelGeminiFlash:
	default:
		return NewInvalidArgument("unknown text_generation_model_name %q", r.TextGenerationModel)
	}
	switch r.EmbeddingModel {
	case EmbeddingGPTJ6B, EmbeddingGeminiText:
	default:
		return NewInvalidArgument("unknown embeddings_generation_model_name %q", r.EmbeddingModel)
	}
	switch r.VectorDB {
	case VectorDBPgvector, VectorDBQdrant:
	default:
		return NewInvalidArgument("unknown vectordb_type %q", r.VectorDB)
	}

	if mode == ModeRAG && r.MaxMatchingDocs <= 0 {
		return NewInvalidArgument("max_matching_docs must be > 0, got %d", r.MaxMatchingDocs)
	}
	return nil
}
