// Package metrics define as métricas prometheus expostas em /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ModelInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_gateway_model_invocation_duration_seconds",
			Help:    "Time spent on a single remote model invocation",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"endpoint", "operation"},
	)

	ModelInvocationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_gateway_model_invocation_errors_total",
			Help: "Total number of failed remote model invocations",
		},
		[]string{"endpoint", "operation"},
	)

	EmbeddingBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rag_gateway_embedding_batch_size",
			Help:    "Number of texts sent per embedding call",
			Buckets: []float64{1, 2, 3, 4, 5, 10, 25, 50, 100},
		},
	)

	SessionConstructions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_gateway_session_constructions_total",
			Help: "Remote handles built by the session cache",
		},
		[]string{"component", "status"},
	)

	RetrievedDocuments = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rag_gateway_retrieved_documents",
			Help:    "Documents returned per similarity search",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_gateway_request_duration_seconds",
			Help:    "Total time taken for requests in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"route", "status"},
	)
)
