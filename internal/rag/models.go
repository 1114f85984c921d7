package rag

import (
	"encoding/json"
	"strings"
)

// TextGenerationModel identifica o modelo hospedado que gera o texto.
type TextGenerationModel string

const (
	ModelFlanT5XL    TextGenerationModel = "flan-t5-xl"
	ModelGeminiFlash TextGenerationModel = "gemini-2.5-flash"
)

// EmbeddingModel identifica o modelo que vetoriza query e documentos.
type EmbeddingModel string

const (
	EmbeddingGPTJ6B     EmbeddingModel = "gpt-j-6b"
	EmbeddingGeminiText EmbeddingModel = "text-embedding-004"
)

// VectorDBType seleciona o backend do índice vetorial.
type VectorDBType string

const (
	VectorDBPgvector VectorDBType = "pgvector"
	VectorDBQdrant   VectorDBType = "qdrant"
)

const SchemaV1 = "v1"

// GenerationParams são repassados sem alteração ao modelo de geração.
type GenerationParams struct {
	MaxLength          int     `json:"max_length"`
	NumReturnSequences int     `json:"num_return_sequences"`
	TopK               int     `json:"top_k"`
	TopP               float64 `json:"top_p"`
	DoSample           bool    `json:"do_sample"`
	Temperature        float64 `json:"temperature"`
}

// InferenceRequest
// Payload único de /text2text e /rag.
type InferenceRequest struct {
	SchemaVersion string `json:"schema_version,omitempty"`
	Query         string `json:"query"`
	GenerationParams
	MaxMatchingDocs     int                 `json:"max_matching_docs"`
	Verbose             bool                `json:"verbose"`
	TextGenerationModel TextGenerationModel `json:"text_generation_model_name"`
	EmbeddingModel      EmbeddingModel      `json:"embeddings_generation_model_name"`
	VectorDB            VectorDBType        `json:"vectordb_type"`
}

// NewInferenceRequest devolve um request com os defaults preenchidos.
// O JSON de entrada é decodificado por cima dele, então só campos ausentes
// ficam com default.
func NewInferenceRequest() InferenceRequest {
	return InferenceRequest{
		SchemaVersion: SchemaV1,
		GenerationParams: GenerationParams{
			MaxLength:          500,
			NumReturnSequences: 1,
			TopK:               250,
			TopP:               0.95,
			DoSample:           false,
			Temperature:        1,
		},
		MaxMatchingDocs:     3,
		Verbose:             false,
		TextGenerationModel: ModelFlanT5XL,
		EmbeddingModel:      EmbeddingGPTJ6B,
		VectorDB:            VectorDBPgvector,
	}
}

// Fingerprint identifica a configuração dos handles remotos.
type Fingerprint struct {
	VectorDB            VectorDBType
	EmbeddingModel      EmbeddingModel
	TextGenerationModel TextGenerationModel
}

func (r InferenceRequest) Fingerprint() Fingerprint {
	return Fingerprint{
		VectorDB:            r.VectorDB,
		EmbeddingModel:      r.EmbeddingModel,
		TextGenerationModel: r.TextGenerationModel,
	}
}

// retrievalKey cobre só a parte que invalida o handle do vector store.
func (f Fingerprint) retrievalKey() string {
	return string(f.VectorDB) + "/" + string(f.EmbeddingModel)
}

func (f Fingerprint) String() string {
	return strings.Join([]string{string(f.VectorDB), string(f.EmbeddingModel), string(f.TextGenerationModel)}, "/")
}

// RetrievedDocument
// Trecho devolvido pela busca por similaridade. Score maior = mais próximo.
type RetrievedDocument struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Source devolve metadata["source"] quando presente.
func (d RetrievedDocument) Source() string {
	s, _ := d.Metadata["source"].(string)
	return s
}

// GenerationResult é a lista de candidatos na ordem do modelo; o primeiro é o canônico.
type GenerationResult []string

func (g GenerationResult) First() string {
	if len(g) == 0 {
		return ""
	}
	return g[0]
}

type Text2TextResponse struct {
	Question string   `json:"question"`
	Answer   []string `json:"answer"`
}

// RAGResponse
// Docs e Candidates só são preenchidos com verbose=true. Docs vazio mas não
// nil sai como "docs": [].
type RAGResponse struct {
	Question   string              `json:"question"`
	Answer     string              `json:"answer"`
	Docs       []RetrievedDocument `json:"docs,omitempty"`
	Candidates []string            `json:"candidates,omitempty"`
}

func (r RAGResponse) MarshalJSON() ([]byte, error) {
	out := struct {
		Question   string               `json:"question"`
		Answer     string               `json:"answer"`
		Docs       *[]RetrievedDocument `json:"docs,omitempty"`
		Candidates []string             `json:"candidates,omitempty"`
	}{
		Question:   r.Question,
		Answer:     r.Answer,
		Candidates: r.Candidates,
	}
	if r.Docs != nil {
		out.Docs = &r.Docs
	}
	return json.Marshal(out)
}
