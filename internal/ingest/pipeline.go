package ingest

import (
	"context"
	"fmt"
	"time"

	wl "github.com/abadojack/whatlanggo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/josinaldojr/llm-rag-gateway/internal/vectorstore"
)

const (
	DefaultShardSize  = 100
	minLangConfidence = 0.5
)

// Store é o destino dos trechos; *vectorstore.Client atende.
type Store interface {
	EnsureIndexExists(ctx context.Context, name string) (bool, error)
	AddDocuments(ctx context.Context, docs []vectorstore.Document) error
}

type Options struct {
	Index           string
	ChunkSize       int
	ChunkOverlap    int
	ShardSize       int
	Workers         int
	EmbeddingsModel string
}

type Pipeline struct {
	store Store
	opts  Options
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewPipeline(store Store, opts Options, log *zap.SugaredLogger) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.ShardSize <= 0 {
		opts.ShardSize = DefaultShardSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{store: store, opts: opts, log: log, now: time.Now}
}

// Documents quebra as fontes em trechos com metadados source, timestamp,
// embeddings_model e lang.
func (p *Pipeline) Documents(sources []Source) []vectorstore.Document {
	ts := p.now().UTC().Format(time.RFC3339)

	var docs []vectorstore.Document
	for _, src := range sources {
		lang := detectLang(src.Text)
		for _, chunk := range SplitText(src.Text, p.opts.ChunkSize, p.opts.ChunkOverlap) {
			docs = append(docs, vectorstore.Document{
				Content: chunk,
				Metadata: map[string]any{
					"source":           src.Name,
					"timestamp":        ts,
					"embeddings_model": p.opts.EmbeddingsModel,
					"lang":             lang,
				},
			})
		}
	}
	return docs
}

// Run indexa as fontes em shards, com até Workers shards em paralelo.
// Devolve quantos trechos foram gravados.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (int, error) {
	docs := p.Documents(sources)
	if len(docs) == 0 {
		p.log.Warnw("nothing to index", "sources", len(sources))
		return 0, nil
	}

	exists, err := p.store.EnsureIndexExists(ctx, p.opts.Index)
	if err != nil {
		return 0, err
	}
	if !exists {
		p.log.Infow("index missing, it will be created on first shard", "index", p.opts.Index)
	}

	shards := shard(docs, p.opts.ShardSize)
	p.log.Infow("indexing",
		"sources", len(sources),
		"chunks", len(docs),
		"shards", len(shards),
		"workers", p.opts.Workers,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	start := time.Now()
	for i, s := range shards {
		g.Go(func() error {
			shardStart := time.Now()
			if err := p.store.AddDocuments(gctx, s); err != nil {
				return fmt.Errorf("shard %d: %w", i, err)
			}
			p.log.Infow("shard indexed", "shard", i, "docs", len(s), "elapsed", time.Since(shardStart).String())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	p.log.Infow("indexing finished", "chunks", len(docs), "elapsed", time.Since(start).String())
	return len(docs), nil
}

func shard(docs []vectorstore.Document, size int) [][]vectorstore.Document {
	var out [][]vectorstore.Document
	for start := 0; start < len(docs); start += size {
		out = append(out, docs[start:min(start+size, len(docs))])
	}
	return out
}

func detectLang(s string) string {
	info := wl.Detect(s)
	if info.Confidence < minLangConfidence {
		return "unknown"
	}
	return wl.LangToString(info.Lang)
}
