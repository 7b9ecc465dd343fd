package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yuanqii/feishu-rag/internal/core"
	"github.com/yuanqii/feishu-rag/internal/models"
)

// PgvectorStore is the Postgres-backed alternative to ChromemStore for
// deployments that already run pgvector. Same capability surface,
// cosine distance.
type PgvectorStore struct {
	db  *sql.DB
	emb core.EmbeddingProvider
	dim int
}

func NewPgvectorStore(ctx context.Context, databaseURL string, emb core.EmbeddingProvider, dim int) (*PgvectorStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &PgvectorStore{db: db, emb: emb, dim: dim}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return s, nil
}

func (s *PgvectorStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS knowledge_chunks (
				id               text PRIMARY KEY,
				page_content     text NOT NULL,
				original_content text NOT NULL,
				category         text NOT NULL DEFAULT '',
				embedding        vector(%d),
				created_at       timestamptz NOT NULL DEFAULT now()
			)`, s.dim),
		`CREATE INDEX IF NOT EXISTS knowledge_chunks_embedding_idx
			ON knowledge_chunks USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *PgvectorStore) AddDocuments(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.PageContent)
	}
	vecs, err := s.emb.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vecs), len(docs))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO knowledge_chunks (id, page_content, original_content, category, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	for i, d := range docs {
		original, err := d.Original.Serialize()
		if err != nil {
			return fmt.Errorf("serialize original content: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q,
			d.ID, d.PageContent, original, d.Category, pgvector.NewVector(vecs[i])); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SimilaritySearch finds the top-k chunks by cosine distance to the query.
func (s *PgvectorStore) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Document, error) {
	vecs, err := s.emb.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}

	const q = `
		SELECT id, page_content, original_content, category
		FROM knowledge_chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, q, pgvector.NewVector(vecs[0]), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var (
			d   models.Document
			raw string
		)
		if err := rows.Scan(&d.ID, &d.PageContent, &raw, &d.Category); err != nil {
			return nil, err
		}
		if original, err := models.ParseOriginalContent(raw); err == nil {
			d.Original = original
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PgvectorStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ core.VectorStore = (*PgvectorStore)(nil)
