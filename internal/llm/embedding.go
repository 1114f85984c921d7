package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/josinaldojr/llm-rag-gateway/internal/metrics"
	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

const DefaultEmbedBatchSize = 5

// EmbeddingClient chama um endpoint de embeddings hospedado, em lotes.
type EmbeddingClient struct {
	inv       *invoker
	batchSize int
}

func NewEmbeddingClient(cfg EndpointConfig, endpointName string, batchSize int, log *zap.SugaredLogger) *EmbeddingClient {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &EmbeddingClient{
		inv:       newInvoker(cfg, endpointName, log),
		batchSize: batchSize,
	}
}

type embeddingPayload struct {
	TextInputs []string `json:"text_inputs"`
}

type embeddingResponse struct {
	Embedding json.RawMessage `json:"embedding"`
}

func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedInBatches(ctx, texts, c.batchSize, c.embedBatch)
}

func (c *EmbeddingClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = strings.ReplaceAll(t, "\n", " ")
	}

	var out embeddingResponse
	if err := c.inv.invoke(ctx, "embed", len(inputs), embeddingPayload{TextInputs: inputs}, &out); err != nil {
		return nil, err
	}

	vecs, err := decodeEmbeddings(out.Embedding)
	if err != nil {
		return nil, rag.NewModelInvocationError(c.inv.name, fmt.Errorf("malformed response body: %w", err))
	}
	if len(vecs) != len(texts) {
		return nil, rag.NewModelInvocationError(c.inv.name, fmt.Errorf("malformed response body: got %d embeddings for %d texts", len(vecs), len(texts)))
	}
	return vecs, nil
}

// decodeEmbeddings aceita lista de vetores ou um vetor solto.
// O vetor solto é normalizado para um lote de um elemento.
func decodeEmbeddings(raw json.RawMessage) ([][]float32, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("missing embedding")
	}

	var batch [][]float32
	if err := json.Unmarshal(raw, &batch); err == nil {
		return batch, nil
	}

	var single []float32
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return [][]float32{single}, nil
}

// embedInBatches quebra texts em lotes de no máximo size e chama fn em sequência,
// concatenando os vetores na ordem de entrada. Sem textos, nenhuma chamada é feita.
func embedInBatches(
	ctx context.Context,
	texts []string,
	size int,
	fn func(ctx context.Context, batch []string) ([][]float32, error),
) ([][]float32, error) {
	if size <= 0 {
		size = DefaultEmbedBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		metrics.EmbeddingBatchSize.Observe(float64(end - start))

		vecs, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

var _ rag.Embedder = (*EmbeddingClient)(nil)
