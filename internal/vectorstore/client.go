package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

// Document é um trecho a ser indexado.
type Document struct {
	Content  string
	Metadata map[string]any
}

// Index é o backend que guarda os vetores (pgvector, qdrant).
// Name é a tabela ou coleção em que Search, Create e Add operam.
type Index interface {
	Name() string
	Search(ctx context.Context, vector []float32, k int) ([]rag.RetrievedDocument, error)
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, dim int) error
	Add(ctx context.Context, docs []Document, vectors [][]float32) error
	Ping(ctx context.Context) error
	Close() error
}

// Client faz busca por similaridade vetorizando a query pelo Embedder.
type Client struct {
	embedder rag.Embedder
	index    Index
	log      *zap.SugaredLogger

	mu         sync.Mutex
	indexReady bool
}

func NewClient(embedder rag.Embedder, index Index, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		embedder: embedder,
		index:    index,
		log:      log.With("index", index.Name()),
	}
}

// SimilaritySearch devolve no máximo k documentos em ordem não crescente de score.
func (c *Client) SimilaritySearch(ctx context.Context, query string, k int) ([]rag.RetrievedDocument, error) {
	if k <= 0 {
		return nil, rag.NewInvalidArgument("k must be > 0, got %d", k)
	}

	vecs, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, rag.NewRetrievalError(fmt.Errorf("embed query: %w", err))
	}
	if len(vecs) != 1 {
		return nil, rag.NewRetrievalError(fmt.Errorf("embed query: got %d vectors", len(vecs)))
	}

	docs, err := c.index.Search(ctx, vecs[0], k)
	if err != nil {
		return nil, rag.NewRetrievalError(fmt.Errorf("search %s: %w", c.index.Name(), err))
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if len(docs) > k {
		docs = docs[:k]
	}

	c.log.Debugw("similarity search", "k", k, "hits", len(docs))
	return docs, nil
}

// EnsureIndexExists só verifica; a criação fica com AddDocuments.
// Nome vazio significa o índice deste client.
func (c *Client) EnsureIndexExists(ctx context.Context, name string) (bool, error) {
	if name == "" {
		name = c.index.Name()
	}
	ok, err := c.index.Exists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", name, err)
	}
	if ok && name == c.index.Name() {
		c.mu.Lock()
		c.indexReady = true
		c.mu.Unlock()
	}
	return ok, nil
}

// AddDocuments vetoriza e grava os documentos. Se o índice não existe,
// ele é criado com a dimensão do primeiro lote.
func (c *Client) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vecs, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(docs) || len(vecs[0]) == 0 {
		return errors.New("embed documents: unexpected embedding result")
	}

	if err := c.ensureIndex(ctx, len(vecs[0])); err != nil {
		return err
	}
	if err := c.index.Add(ctx, docs, vecs); err != nil {
		return fmt.Errorf("add documents to %s: %w", c.index.Name(), err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.index.Ping(ctx)
}

func (c *Client) Close() error {
	return c.index.Close()
}

func (c *Client) ensureIndex(ctx context.Context, dim int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexReady {
		return nil
	}
	ok, err := c.index.Exists(ctx, c.index.Name())
	if err != nil {
		return fmt.Errorf("check index %s: %w", c.index.Name(), err)
	}
	if !ok {
		c.log.Infow("creating index", "dim", dim)
		if err := c.index.Create(ctx, dim); err != nil {
			return fmt.Errorf("create index %s: %w", c.index.Name(), err)
		}
	}
	c.indexReady = true
	return nil
}

var _ rag.Retriever = (*Client)(nil)
