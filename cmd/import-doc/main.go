package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josinaldojr/llm-rag-gateway/internal/config"
	"github.com/josinaldojr/llm-rag-gateway/internal/ingest"
	"github.com/josinaldojr/llm-rag-gateway/internal/llm"
	"github.com/josinaldojr/llm-rag-gateway/internal/logger"
	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
	"github.com/josinaldojr/llm-rag-gateway/internal/vectorstore"
)

func main() {
	cfg := config.Load()

	pathFlag := flag.String("path", "", "diretório com arquivos locais (.md/.txt/.html/.pdf)")
	baseURLFlag := flag.String("base-url", "", "URL base para crawl HTTP")
	maxPagesFlag := flag.Int("max-pages", 50, "limite de páginas para crawl HTTP")
	indexFlag := flag.String("index", cfg.VectorIndex, "tabela ou coleção de destino")
	vectorDBFlag := flag.String("vectordb", string(rag.VectorDBPgvector), "pgvector ou qdrant")
	modelFlag := flag.String("embeddings-model", string(rag.EmbeddingGPTJ6B), "modelo de embeddings")
	chunkSizeFlag := flag.Int("chunk-size", ingest.DefaultChunkSize, "tamanho máximo do trecho em caracteres")
	chunkOverlapFlag := flag.Int("chunk-overlap", ingest.DefaultChunkOverlap, "sobreposição entre trechos em caracteres")
	shardSizeFlag := flag.Int("shard-size", ingest.DefaultShardSize, "trechos por shard")
	workersFlag := flag.Int("workers", 1, "shards processados em paralelo")
	flag.Parse()

	sugar, err := logger.New(cfg.Debug)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	if *pathFlag == "" && *baseURLFlag == "" {
		sugar.Fatal("use pelo menos uma origem: --path ou --base-url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sources []ingest.Source
	if *pathFlag != "" {
		files, err := ingest.LoadFiles(*pathFlag)
		if err != nil {
			sugar.Fatalw("failed to load files", "path", *pathFlag, "error", err)
		}
		sugar.Infow("files loaded", "path", *pathFlag, "sources", len(files))
		sources = append(sources, files...)
	}
	if *baseURLFlag != "" {
		client := &http.Client{Timeout: 30 * time.Second}
		pages, err := ingest.Crawl(ctx, client, *baseURLFlag, *maxPagesFlag, sugar)
		if err != nil {
			sugar.Fatalw("crawl failed", "base_url", *baseURLFlag, "error", err)
		}
		sugar.Infow("pages crawled", "base_url", *baseURLFlag, "sources", len(pages))
		sources = append(sources, pages...)
	}

	backends := llm.NewBackends(llm.Config{
		Endpoint: llm.EndpointConfig{
			BaseURL: cfg.ModelEndpointURL,
			APIKey:  cfg.ModelEndpointAPIKey,
			Timeout: cfg.RemoteCallTimeout,
		},
		EmbeddingEndpoint: cfg.EmbeddingEndpoint,
		GeminiAPIKey:      cfg.GeminiAPIKey,
		EmbedBatchSize:    cfg.EmbedBatchSize,
	}, sugar)

	embedder, err := backends.Embedder(ctx, rag.EmbeddingModel(*modelFlag))
	if err != nil {
		sugar.Fatalw("failed to init embeddings client", "model", *modelFlag, "error", err)
	}

	idx, err := vectorstore.OpenIndex(ctx, rag.VectorDBType(*vectorDBFlag), vectorstore.Config{
		DatabaseURL: cfg.DatabaseURL,
		Index:       *indexFlag,
		Qdrant: vectorstore.QdrantConfig{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantAPIKey,
			UseTLS: cfg.QdrantUseTLS,
		},
	})
	if err != nil {
		sugar.Fatalw("failed to open vector store", "vectordb", *vectorDBFlag, "error", err)
	}

	store := vectorstore.NewClient(embedder, idx, sugar)
	defer func() { _ = store.Close() }()

	pipeline := ingest.NewPipeline(store, ingest.Options{
		Index:           *indexFlag,
		ChunkSize:       *chunkSizeFlag,
		ChunkOverlap:    *chunkOverlapFlag,
		ShardSize:       *shardSizeFlag,
		Workers:         *workersFlag,
		EmbeddingsModel: *modelFlag,
	}, sugar)

	n, err := pipeline.Run(ctx, sources)
	if err != nil {
		sugar.Fatalw("import failed", "error", err)
	}
	sugar.Infow("import finished", "chunks", n, "index", *indexFlag, "vectordb", *vectorDBFlag)
}
