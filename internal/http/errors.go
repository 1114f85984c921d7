package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Endpoint string `json:"endpoint,omitempty"`
}

func statusFor(err error) int {
	switch rag.KindOf(err) {
	case rag.KindInvalidArgument:
		return http.StatusBadRequest
	case rag.KindInitialization:
		return http.StatusServiceUnavailable
	case rag.KindModelInvocation, rag.KindRetrieval:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	detail := errorDetail{Kind: "InternalError", Message: "internal server error"}

	var rerr *rag.Error
	if errors.As(err, &rerr) {
		detail = errorDetail{
			Kind:     string(rerr.Kind),
			Message:  rerr.Error(),
			Endpoint: rerr.Endpoint,
		}
	}
	writeJSON(w, status, errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
