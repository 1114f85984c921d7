package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

const (
	geminiEmbeddingModel = "models/text-embedding-004"
	geminiEmbedDim       = 768
)

// GeminiClient atende geração e embeddings pela API do Gemini.
type GeminiClient struct {
	client    *genai.Client
	chatModel string
	batchSize int
	log       *zap.SugaredLogger
}

func newGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return c, nil
}

func newGeminiModel(client *genai.Client, chatModel string, batchSize int, log *zap.SugaredLogger) *GeminiClient {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &GeminiClient{
		client:    client,
		chatModel: chatModel,
		batchSize: batchSize,
		log:       log,
	}
}

// Generate devolve um texto por candidato, na ordem da resposta. Candidatos
// sem texto ficam como string vazia.
func (g *GeminiClient) Generate(ctx context.Context, prompt string, params rag.GenerationParams) (out rag.GenerationResult, err error) {
	start := time.Now()
	defer func() { observeCall(g.log, g.chatModel, "generate", start, 0, err) }()

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.chatModel,
		genai.Text(prompt),
		generationConfig(params),
	)
	if err != nil {
		return nil, rag.NewModelInvocationError(g.chatModel, fmt.Errorf("gemini generateContent error: %w", err))
	}
	if resp == nil {
		return nil, rag.NewModelInvocationError(g.chatModel, fmt.Errorf("empty response from gemini"))
	}

	if len(resp.Candidates) == 0 {
		return nil, rag.NewModelInvocationError(g.chatModel, fmt.Errorf("model returned no candidates"))
	}

	out = make(rag.GenerationResult, len(resp.Candidates))
	for i, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
		out[i] = strings.TrimSpace(b.String())
	}
	return out, nil
}

func (g *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedInBatches(ctx, texts, g.batchSize, g.embedBatch)
}

func (g *GeminiClient) embedBatch(ctx context.Context, texts []string) (out [][]float32, err error) {
	start := time.Now()
	defer func() { observeCall(g.log, geminiEmbeddingModel, "embed", start, len(texts), err) }()

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(normalizeWhitespace(t), genai.RoleUser))
	}

	resp, err := g.client.Models.EmbedContent(
		ctx,
		geminiEmbeddingModel,
		contents,
		&genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(geminiEmbedDim)),
		},
	)
	if err != nil {
		return nil, rag.NewModelInvocationError(geminiEmbeddingModel, fmt.Errorf("gemini embed error: %w", err))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, rag.NewModelInvocationError(geminiEmbeddingModel, fmt.Errorf("got %d embeddings for %d texts", len(resp.Embeddings), len(texts)))
	}

	out = make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) != geminiEmbedDim {
			return nil, rag.NewModelInvocationError(geminiEmbeddingModel, fmt.Errorf("unexpected embedding size at %d (expected %d)", i, geminiEmbedDim))
		}
		out[i] = e.Values
	}
	return out, nil
}

// generationConfig traduz os parâmetros do request. Sem do_sample a geração é gulosa.
func generationConfig(p rag.GenerationParams) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		CandidateCount:  int32(p.NumReturnSequences),
		MaxOutputTokens: int32(p.MaxLength),
		TopP:            genai.Ptr(float32(p.TopP)),
	}
	if p.DoSample {
		cfg.Temperature = genai.Ptr(float32(p.Temperature))
	} else {
		cfg.Temperature = genai.Ptr(float32(0))
	}
	if p.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(p.TopK))
	}
	return cfg
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ rag.Generator = (*GeminiClient)(nil)
var _ rag.Embedder = (*GeminiClient)(nil)
