package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josinaldojr/llm-rag-gateway/internal/config"
	apphttp "github.com/josinaldojr/llm-rag-gateway/internal/http"
	"github.com/josinaldojr/llm-rag-gateway/internal/llm"
	"github.com/josinaldojr/llm-rag-gateway/internal/logger"
	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
	"github.com/josinaldojr/llm-rag-gateway/internal/vectorstore"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	sugar, err := logger.New(cfg.Debug)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	backends := llm.NewBackends(llm.Config{
		Endpoint: llm.EndpointConfig{
			BaseURL: cfg.ModelEndpointURL,
			APIKey:  cfg.ModelEndpointAPIKey,
			Timeout: cfg.RemoteCallTimeout,
		},
		TextGenerationEndpoint: cfg.TextGenerationEndpoint,
		EmbeddingEndpoint:      cfg.EmbeddingEndpoint,
		GeminiAPIKey:           cfg.GeminiAPIKey,
		EmbedBatchSize:         cfg.EmbedBatchSize,
	}, sugar)

	retrievers := vectorstore.NewRetrieverFactory(vectorstore.Config{
		DatabaseURL: cfg.DatabaseURL,
		Index:       cfg.VectorIndex,
		Qdrant: vectorstore.QdrantConfig{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantAPIKey,
			UseTLS: cfg.QdrantUseTLS,
		},
	}, backends.Embedder, sugar)

	cache := rag.NewSessionCache(retrievers, backends.Generator, rag.SessionOptions{
		StrictGenerator: cfg.SessionStrictGenerator,
		RetireGrace:     cfg.SessionRetireGrace,
		BuildTimeout:    cfg.RemoteCallTimeout,
	}, sugar)

	svc := rag.NewService(cache, cfg.RemoteCallTimeout, sugar)
	h := apphttp.NewHandler(svc, sugar)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apphttp.NewRouter(h, sugar, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		sugar.Infow("API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
	if err := cache.Close(); err != nil {
		sugar.Errorw("failed to release session handles", "error", err)
	}
}
