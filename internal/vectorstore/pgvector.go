package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/josinaldojr/llm-rag-gateway/internal/rag"
)

// PgIndex guarda os documentos numa tabela postgres com coluna vector.
type PgIndex struct {
	db    *pgxpool.Pool
	table string
}

func NewPgIndex(db *pgxpool.Pool, table string) *PgIndex {
	return &PgIndex{db: db, table: table}
}

func (r *PgIndex) Name() string { return r.table }

func (r *PgIndex) ident() string {
	return pgx.Identifier{r.table}.Sanitize()
}

func (r *PgIndex) Exists(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, pgx.Identifier{name}.Sanitize()).Scan(&ok)
	return ok, err
}

func (r *PgIndex) Create(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dim)
	}

	if _, err := r.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         BIGSERIAL PRIMARY KEY,
			content    TEXT NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding  VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, r.ident(), dim))
	return err
}

func (r *PgIndex) Add(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d documents", len(vectors), len(docs))
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (content, metadata, embedding)
		VALUES ($1, $2, $3)
	`, r.ident())

	batch := &pgx.Batch{}
	for i, d := range docs {
		meta := d.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		batch.Queue(query, d.Content, meta, pgvector.NewVector(vectors[i]))
	}

	return r.db.SendBatch(ctx, batch).Close()
}

// Search ordena por distância de cosseno; score = 1 - distância.
func (r *PgIndex) Search(ctx context.Context, vector []float32, k int) ([]rag.RetrievedDocument, error) {
	vec := pgvector.NewVector(vector)

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, r.ident()), vec, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []rag.RetrievedDocument
	for rows.Next() {
		var d rag.RetrievedDocument
		if err := rows.Scan(&d.Content, &d.Metadata, &d.Score); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}

	return docs, rows.Err()
}

func (r *PgIndex) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PgIndex) Close() error {
	r.db.Close()
	return nil
}

var _ Index = (*PgIndex)(nil)
