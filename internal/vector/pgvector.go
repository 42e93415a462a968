// Package vector implements the rag.Index interface on Postgres with the
// pgvector extension.
package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	errx "github.com/waflow/server/internal/core/error"
	"github.com/waflow/server/internal/llm"
	"github.com/waflow/server/internal/rag"
)

// Store persists chunk embeddings in a flow_chunks table and answers
// similarity searches with the cosine distance operator.
type Store struct {
	pool     *pgxpool.Pool
	embedder llm.Embedder
}

func NewStore(pool *pgxpool.Pool, embedder llm.Embedder) *Store {
	return &Store{pool: pool, embedder: embedder}
}

// Migrate creates the pgvector extension and chunk table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS flow_chunks (
			id        BIGSERIAL PRIMARY KEY,
			user_id   TEXT NOT NULL,
			bot_id    TEXT NOT NULL,
			flow_id   TEXT NOT NULL,
			file_id   TEXT NOT NULL DEFAULT '',
			link      TEXT NOT NULL DEFAULT '',
			content   TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, llm.EmbeddingDimensions),
		`CREATE INDEX IF NOT EXISTS flow_chunks_scope_idx
			ON flow_chunks (user_id, bot_id, flow_id, file_id, link)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return errx.WrapPostgres(err)
		}
	}
	return nil
}

func (s *Store) SimilaritySearch(ctx context.Context, query string, scope rag.Scope, k int) ([]string, error) {
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT content FROM flow_chunks
		 WHERE user_id = $1 AND bot_id = $2 AND flow_id = $3 AND file_id = $4 AND link = $5
		 ORDER BY embedding <=> $6
		 LIMIT $7`,
		scope.UserID, scope.BotID, scope.FlowID, scope.FileID, scope.Link,
		pgvector.NewVector(emb), k)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

// Upsert replaces the scope's chunks: old rows are dropped in the same
// transaction so a changed document never leaves stale chunks behind.
func (s *Store) Upsert(ctx context.Context, scope rag.Scope, chunks []string) error {
	embs := make([]pgvector.Vector, len(chunks))
	for i, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		embs[i] = pgvector.NewVector(vec)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteScopeSQL,
			scope.UserID, scope.BotID, scope.FlowID, scope.FileID, scope.Link); err != nil {
			return errx.WrapPostgres(err)
		}
		for i, chunk := range chunks {
			if _, err := tx.Exec(ctx,
				`INSERT INTO flow_chunks (user_id, bot_id, flow_id, file_id, link, content, embedding)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				scope.UserID, scope.BotID, scope.FlowID, scope.FileID, scope.Link,
				chunk, embs[i]); err != nil {
				return errx.WrapPostgres(err)
			}
		}
		return nil
	})
}

const deleteScopeSQL = `DELETE FROM flow_chunks
	WHERE user_id = $1 AND bot_id = $2 AND flow_id = $3 AND file_id = $4 AND link = $5`

func (s *Store) Delete(ctx context.Context, scope rag.Scope) error {
	_, err := s.pool.Exec(ctx, deleteScopeSQL,
		scope.UserID, scope.BotID, scope.FlowID, scope.FileID, scope.Link)
	return errx.WrapPostgres(err)
}

var _ rag.Index = (*Store)(nil)
