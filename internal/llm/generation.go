package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

// GenerationClient chama um endpoint text2text hospedado.
type GenerationClient struct {
	inv *invoker
}

func NewGenerationClient(cfg EndpointConfig, endpointName string, log *zap.SugaredLogger) *GenerationClient {
	return &GenerationClient{inv: newInvoker(cfg, endpointName, log)}
}

type generationPayload struct {
	TextInputs         string  `json:"text_inputs"`
	MaxLength          int     `json:"max_length"`
	NumReturnSequences int     `json:"num_return_sequences"`
	TopK               int     `json:"top_k"`
	TopP               float64 `json:"top_p"`
	DoSample           bool    `json:"do_sample"`
	Temperature        float64 `json:"temperature"`
}

type generationResponse struct {
	GeneratedTexts []string `json:"generated_texts"`
}

// Generate devolve generated_texts como veio, sem desembrulhar lista de um elemento.
func (c *GenerationClient) Generate(ctx context.Context, prompt string, params rag.GenerationParams) (rag.GenerationResult, error) {
	payload := generationPayload{
		TextInputs:         prompt,
		MaxLength:          params.MaxLength,
		NumReturnSequences: params.NumReturnSequences,
		TopK:               params.TopK,
		TopP:               params.TopP,
		DoSample:           params.DoSample,
		Temperature:        params.Temperature,
	}

	var out generationResponse
	if err := c.inv.invoke(ctx, "generate", 0, payload, &out); err != nil {
		return nil, err
	}
	if len(out.GeneratedTexts) == 0 {
		return nil, rag.NewModelInvocationError(c.inv.name, errors.New("malformed response body: missing generated_texts"))
	}
	return rag.GenerationResult(out.GeneratedTexts), nil
}

var _ rag.Generator = (*GenerationClient)(nil)
