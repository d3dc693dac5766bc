// Package pgvector provides a Postgres-backed vector index using the
// pgvector extension. It suits deployments where the embedded backend's
// single-process limit does not.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/poiesic/docreview/core"
	"github.com/poiesic/docreview/index"
)

// Index stores chunk points in a chunk_points table with a vector column.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ index.Index = (*Index)(nil)

// Open connects to Postgres with the given DSN.
func Open(ctx context.Context, dsn string) (*Index, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &Index{
		db:     db,
		logger: slog.Default().With("component", "pgvector-index"),
	}, nil
}

// Close closes the connection pool.
func (i *Index) Close() error {
	return i.db.Close()
}

// EnsureCollection creates the extension, table and indexes, and verifies
// the vector dimension of an existing table.
func (i *Index) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", index.ErrDimensionMismatch, dim)
	}

	if _, err := i.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunk_points (
			id          text PRIMARY KEY,
			chat_id     text NOT NULL,
			document_id text NOT NULL,
			blob_key    text NOT NULL DEFAULT '',
			file_name   text NOT NULL DEFAULT '',
			page_number int  NOT NULL DEFAULT 0,
			chunk_index int  NOT NULL DEFAULT 0,
			text        text NOT NULL,
			embedding   vector(%d) NOT NULL
		)`, dim)
	if _, err := i.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	// pgvector keeps the declared dimension in atttypmod.
	var existing int
	err := i.db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'chunk_points'::regclass AND attname = 'embedding'`).
		Scan(&existing)
	if err != nil {
		return fmt.Errorf("dimension check: %w", err)
	}
	if existing != dim {
		return fmt.Errorf("%w: collection has %d, requested %d", index.ErrDimensionMismatch, existing, dim)
	}

	if _, err := i.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS chunk_points_chat_doc_idx
		ON chunk_points (chat_id, document_id)`); err != nil {
		return fmt.Errorf("create filter index: %w", err)
	}
	if _, err := i.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS chunk_points_embedding_idx
		ON chunk_points USING hnsw (embedding vector_cosine_ops)`); err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}

	return nil
}

// Upsert writes points, replacing any with the same ID.
func (i *Index) Upsert(ctx context.Context, points []core.ChunkPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO chunk_points
			(id, chat_id, document_id, blob_key, file_name, page_number, chunk_index, text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			document_id = EXCLUDED.document_id,
			blob_key = EXCLUDED.blob_key,
			file_name = EXCLUDED.file_name,
			page_number = EXCLUDED.page_number,
			chunk_index = EXCLUDED.chunk_index,
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding`
	for _, p := range points {
		if _, err := tx.ExecContext(ctx, q,
			p.ID, p.Payload.ChatID, p.Payload.DocumentID, p.Payload.BlobKey,
			p.Payload.FileName, p.Payload.PageNumber, p.Payload.ChunkIndex,
			p.Payload.Text, pgvector.NewVector(p.Vector)); err != nil {
			return fmt.Errorf("upsert point %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns up to limit points ordered by cosine similarity.
func (i *Index) Search(ctx context.Context, vector []float32, filter index.Filter, limit int) ([]index.ScoredPoint, error) {
	if limit <= 0 {
		limit = 10
	}
	where, args := filterClause(filter, 2)
	q := fmt.Sprintf(`
		SELECT id, chat_id, document_id, blob_key, file_name, page_number, chunk_index, text, embedding,
			1 - (embedding <=> $1) AS score
		FROM chunk_points
		%s
		ORDER BY embedding <=> $1
		LIMIT %d`, where, limit)

	all := append([]any{pgvector.NewVector(vector)}, args...)
	rows, err := i.db.QueryContext(ctx, q, all...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []index.ScoredPoint
	for rows.Next() {
		var (
			p     core.ChunkPoint
			emb   pgvector.Vector
			score float64
		)
		if err := rows.Scan(&p.ID, &p.Payload.ChatID, &p.Payload.DocumentID,
			&p.Payload.BlobKey, &p.Payload.FileName, &p.Payload.PageNumber,
			&p.Payload.ChunkIndex, &p.Payload.Text, &emb, &score); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		p.Vector = emb.Slice()
		results = append(results, index.ScoredPoint{Point: p, Score: float32(score)})
	}
	return results, rows.Err()
}

// Delete removes all points matching the filter.
func (i *Index) Delete(ctx context.Context, filter index.Filter) error {
	where, args := filterClause(filter, 1)
	q := "DELETE FROM chunk_points " + where

	res, err := i.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		i.logger.Debug("deleted points", "count", n)
	}
	return nil
}

// Iterate streams all points with keyset pagination on the primary key.
func (i *Index) Iterate(ctx context.Context, batchSize int, fn func(points []core.ChunkPoint) error) error {
	if batchSize < 1 {
		batchSize = 100
	}

	lastID := ""
	for {
		q := fmt.Sprintf(`
			SELECT id, chat_id, document_id, blob_key, file_name, page_number, chunk_index, text, embedding
			FROM chunk_points
			WHERE id > $1
			ORDER BY id
			LIMIT %d`, batchSize)

		rows, err := i.db.QueryContext(ctx, q, lastID)
		if err != nil {
			return fmt.Errorf("iterate: %w", err)
		}

		var batch []core.ChunkPoint
		for rows.Next() {
			var (
				p   core.ChunkPoint
				emb pgvector.Vector
			)
			if err := rows.Scan(&p.ID, &p.Payload.ChatID, &p.Payload.DocumentID,
				&p.Payload.BlobKey, &p.Payload.FileName, &p.Payload.PageNumber,
				&p.Payload.ChunkIndex, &p.Payload.Text, &emb); err != nil {
				rows.Close()
				return fmt.Errorf("scan: %w", err)
			}
			p.Vector = emb.Slice()
			batch = append(batch, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		lastID = batch[len(batch)-1].ID
	}
}

// filterClause builds a WHERE clause from the filter, numbering placeholders
// from firstArg.
func filterClause(filter index.Filter, firstArg int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.ChatID != "" {
		conds = append(conds, fmt.Sprintf("chat_id = $%d", firstArg+len(args)))
		args = append(args, filter.ChatID)
	}
	if filter.DocumentID != "" {
		conds = append(conds, fmt.Sprintf("document_id = $%d", firstArg+len(args)))
		args = append(args, filter.DocumentID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
