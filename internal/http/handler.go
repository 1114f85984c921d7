package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

// Orchestrator é o que os handlers precisam do rag.Service.
type Orchestrator interface {
	Text2Text(ctx context.Context, req rag.InferenceRequest) (*rag.Text2TextResponse, error)
	RAG(ctx context.Context, req rag.InferenceRequest) (*rag.RAGResponse, error)
}

type Handler struct {
	svc Orchestrator
	log *zap.SugaredLogger
}

func NewHandler(svc Orchestrator, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) Text2Text(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.Text2Text(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) RAG(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.RAG(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode aplica o JSON sobre um request já com defaults.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (rag.InferenceRequest, bool) {
	req := rag.NewInferenceRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, rag.NewInvalidArgument("invalid json body: %v", err))
		return req, false
	}
	return req, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := loggerFrom(r.Context(), h.log)
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "status", status, "error", err)
	} else {
		log.Infow("request rejected", "status", status, "error", err)
	}
	writeError(w, status, err)
}
