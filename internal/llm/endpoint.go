package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/josinaldojr/llm-rag-gateway/internal/metrics"
	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

const (
	DefaultTimeout = 300 * time.Second
	maxBodyBytes   = 32 << 20
)

// EndpointConfig aponta para o runtime que hospeda os modelos.
// Cada modelo é chamado em {BaseURL}/endpoints/{nome}/invocations.
type EndpointConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// invoker faz uma chamada JSON síncrona a um endpoint nomeado.
type invoker struct {
	name   string
	url    string
	apiKey string
	client *http.Client
	log    *zap.SugaredLogger
}

func newInvoker(cfg EndpointConfig, name string, log *zap.SugaredLogger) *invoker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &invoker{
		name:   name,
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/endpoints/" + url.PathEscape(name) + "/invocations",
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// invoke serializa payload, chama o endpoint e decodifica a resposta em out.
// Toda falha (transporte, status, corpo inválido) vira ModelInvocationError.
func (iv *invoker) invoke(ctx context.Context, operation string, batch int, payload, out any) (err error) {
	start := time.Now()
	defer func() { observeCall(iv.log, iv.name, operation, start, batch, err) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return rag.NewModelInvocationError(iv.name, fmt.Errorf("encode payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, iv.url, bytes.NewReader(body))
	if err != nil {
		return rag.NewModelInvocationError(iv.name, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if iv.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+iv.apiKey)
	}

	resp, err := iv.client.Do(req)
	if err != nil {
		return rag.NewModelInvocationError(iv.name, fmt.Errorf("invoke endpoint: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return rag.NewModelInvocationError(iv.name, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rag.NewModelInvocationError(iv.name, fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, trimBody(string(raw), 512)))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return rag.NewModelInvocationError(iv.name, fmt.Errorf("malformed response body: %w", err))
	}
	return nil
}

func trimBody(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// observeCall registra duração e erros da chamada e loga com endpoint, operação e lote.
func observeCall(log *zap.SugaredLogger, endpoint, operation string, start time.Time, batch int, err error) {
	elapsed := time.Since(start)
	metrics.ModelInvocationDuration.WithLabelValues(endpoint, operation).Observe(elapsed.Seconds())

	fields := []any{"endpoint", endpoint, "operation", operation, "elapsed", elapsed.String()}
	if batch > 0 {
		fields = append(fields, "batch_size", batch)
	}
	if err != nil {
		metrics.ModelInvocationErrors.WithLabelValues(endpoint, operation).Inc()
		log.Warnw("model invocation failed", append(fields, "error", err)...)
		return
	}
	log.Debugw("model invocation", fields...)
}
