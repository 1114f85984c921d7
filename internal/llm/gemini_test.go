package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/josinaldojr/llm-rag-gateway/internal/metrics"
	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

func newTestGemini(t *testing.T, h http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	})
	require.NoError(t, err)
	return newGeminiModel(client, string(rag.ModelGeminiFlash), 2, nil)
}

func TestGemini_GenerateKeepsBlankCandidatesInPlace(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		_, _ = w.Write([]byte(`{"candidates": [
			{"content": {"role": "model", "parts": [{"text": "first "}, {"text": "answer"}]}},
			{"content": {"role": "model", "parts": [{"text": "  "}]}},
			{"finishReason": "SAFETY"}
		]}`))
	})

	params := rag.NewInferenceRequest().GenerationParams
	params.NumReturnSequences = 3

	out, err := g.Generate(context.Background(), "What is RAG?", params)
	require.NoError(t, err)
	assert.Equal(t, rag.GenerationResult{"first answer", "", ""}, out)
}

func TestGemini_GenerateFailureIsObserved(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "bad request", "status": "INVALID_ARGUMENT"}}`))
	})

	errs := metrics.ModelInvocationErrors.WithLabelValues(string(rag.ModelGeminiFlash), "generate")
	before := testutil.ToFloat64(errs)

	_, err := g.Generate(context.Background(), "X", rag.NewInferenceRequest().GenerationParams)

	var rerr *rag.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, rag.KindModelInvocation, rerr.Kind)
	assert.Equal(t, string(rag.ModelGeminiFlash), rerr.Endpoint)
	assert.Equal(t, before+1, testutil.ToFloat64(errs))
}

func TestGemini_GenerateNoCandidates(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	})

	_, err := g.Generate(context.Background(), "X", rag.NewInferenceRequest().GenerationParams)
	assert.Equal(t, rag.KindModelInvocation, rag.KindOf(err))
}

func TestGemini_EmbedBatchesAndRecordsDuration(t *testing.T) {
	var calls int
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.True(t, strings.HasSuffix(r.URL.Path, ":batchEmbedContents"), r.URL.Path)

		var body struct {
			Requests []json.RawMessage `json:"requests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		type embedding struct {
			Values []float32 `json:"values"`
		}
		resp := struct {
			Embeddings []embedding `json:"embeddings"`
		}{}
		for range body.Requests {
			resp.Embeddings = append(resp.Embeddings, embedding{Values: make([]float32, geminiEmbedDim)})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	durations := metrics.ModelInvocationDuration.WithLabelValues(geminiEmbeddingModel, "embed").(prometheus.Histogram)
	observed := func() uint64 {
		m := &dto.Metric{}
		require.NoError(t, durations.Write(m))
		return m.GetHistogram().GetSampleCount()
	}
	before := observed()

	vecs, err := g.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Equal(t, 2, calls)
	assert.Equal(t, before+2, observed())
}
