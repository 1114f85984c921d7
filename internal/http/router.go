package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1/llm"

func NewRouter(h *Handler, log *zap.SugaredLogger, allowedOrigins []string) http.Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	for _, prefix := range []string{"", apiPrefix} {
		r.HandleFunc(prefix+"/text2text", h.Text2Text).Methods(http.MethodPost)
		r.HandleFunc(prefix+"/rag", h.RAG).Methods(http.MethodPost)
	}

	r.Use(trackMiddleware(log), recoverMiddleware(log))

	return corsMiddleware(allowedOrigins, r)
}
