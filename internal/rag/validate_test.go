package rag_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

func TestNewInferenceRequest_DefaultsOnlyForMissingFields(t *testing.T) {
	req := rag.NewInferenceRequest()
	require.NoError(t, json.Unmarshal([]byte(`{"query": "q", "max_length": 50, "max_matching_docs": 0}`), &req))

	assert.Equal(t, 50, req.MaxLength)
	assert.Equal(t, 1, req.NumReturnSequences)
	assert.Equal(t, 250, req.TopK)
	assert.Equal(t, 0.95, req.TopP)
	assert.Equal(t, 1.0, req.Temperature)
	assert.Equal(t, 0, req.MaxMatchingDocs)
	assert.Equal(t, rag.ModelFlanT5XL, req.TextGenerationModel)
	assert.Equal(t, rag.EmbeddingGPTJ6B, req.EmbeddingModel)
	assert.Equal(t, rag.VectorDBPgvector, req.VectorDB)

	assert.NoError(t, req.Validate(rag.ModeText2Text))
	assert.True(t, rag.IsKind(req.Validate(rag.ModeRAG), rag.KindInvalidArgument))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(r *rag.InferenceRequest){
		"blank query":          func(r *rag.InferenceRequest) { r.Query = "   " },
		"schema version":       func(r *rag.InferenceRequest) { r.SchemaVersion = "v2" },
		"max_length":           func(r *rag.InferenceRequest) { r.MaxLength = 0 },
		"num_return_sequences": func(r *rag.InferenceRequest) { r.NumReturnSequences = 0 },
		"too many sequences":   func(r *rag.InferenceRequest) { r.NumReturnSequences = 11 },
		"negative top_k":       func(r *rag.InferenceRequest) { r.TopK = -1 },
		"top_p zero":           func(r *rag.InferenceRequest) { r.TopP = 0 },
		"top_p above one":      func(r *rag.InferenceRequest) { r.TopP = 1.5 },
		"temperature":          func(r *rag.InferenceRequest) { r.Temperature = 0 },
		"unknown generation":   func(r *rag.InferenceRequest) { r.TextGenerationModel = "gpt-17" },
		"unknown embedding":    func(r *rag.InferenceRequest) { r.EmbeddingModel = "bert" },
		"unknown vectordb":     func(r *rag.InferenceRequest) { r.VectorDB = "opensearch" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := rag.NewInferenceRequest()
			req.Query = "q"
			mutate(&req)

			err := req.Validate(rag.ModeText2Text)
			require.Error(t, err)
			assert.Equal(t, rag.KindInvalidArgument, rag.KindOf(err))
		})
	}
}

func TestValidate_AcceptsKnownSelectors(t *testing.T) {
	req := rag.NewInferenceRequest()
	req.Query = "q"
	req.SchemaVersion = ""
	req.TextGenerationModel = rag.ModelGeminiFlash
	req.EmbeddingModel = rag.EmbeddingGeminiText
	req.VectorDB = rag.VectorDBQdrant
	req.TopK = 0
	req.TopP = 1

	assert.NoError(t, req.Validate(rag.ModeRAG))
}

func TestKindOf(t *testing.T) {
	inner := rag.NewModelInvocationError("embed-ep", assert.AnError)
	outer := rag.NewRetrievalError(inner)

	assert.Equal(t, rag.KindRetrieval, rag.KindOf(outer))
	assert.Equal(t, "embed-ep", outer.Endpoint)
	assert.ErrorIs(t, outer, assert.AnError)
	assert.Equal(t, rag.Kind(""), rag.KindOf(assert.AnError))
	assert.False(t, rag.IsKind(nil, rag.KindRetrieval))
}
