// Package postgres provides a pgvector-backed driven.VectorIndex.
//
// Vectors of every knowledge base share one table keyed by knowledge base,
// document and chunk. The embedding column is an unsized vector so knowledge
// bases with different pinned dimensions can coexist; nearest-neighbour
// search is an exact scan ordered by cosine distance.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS citekit_vectors (
    kb_name TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    chunk_id TEXT NOT NULL,
    embedding vector NOT NULL,
    PRIMARY KEY (kb_name, chunk_id)
);

CREATE INDEX IF NOT EXISTS citekit_vectors_doc_idx ON citekit_vectors (kb_name, doc_id);
`

// VectorIndex stores chunk vectors in PostgreSQL with the pgvector extension.
type VectorIndex struct {
	pool *pgxpool.Pool
}

// NewVectorIndex connects to dsn and ensures the schema exists.
func NewVectorIndex(ctx context.Context, dsn string) (*VectorIndex, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating vector schema: %w", err)
	}
	return &VectorIndex{pool: pool}, nil
}

// ReplaceDocument swaps every vector of docID in one transaction.
func (v *VectorIndex) ReplaceDocument(ctx context.Context, kb, docID string, entries []driven.VectorEntry) error {
	tx, err := v.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM citekit_vectors WHERE kb_name = $1 AND doc_id = $2", kb, docID); err != nil {
		return fmt.Errorf("deleting previous vectors: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO citekit_vectors (kb_name, doc_id, chunk_id, embedding)
			VALUES ($1, $2, $3, $4::vector)`, kb, docID, e.ChunkID, vectorLiteral(e.Embedding))
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting vectors: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing vectors: %w", err)
	}
	return nil
}

// DeleteDocument removes every vector of docID in kb.
func (v *VectorIndex) DeleteDocument(ctx context.Context, kb, docID string) error {
	if _, err := v.pool.Exec(ctx, "DELETE FROM citekit_vectors WHERE kb_name = $1 AND doc_id = $2", kb, docID); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// DropKnowledgeBase removes every vector of kb.
func (v *VectorIndex) DropKnowledgeBase(ctx context.Context, kb string) error {
	if _, err := v.pool.Exec(ctx, "DELETE FROM citekit_vectors WHERE kb_name = $1", kb); err != nil {
		return fmt.Errorf("dropping vectors: %w", err)
	}
	return nil
}

// Search returns the k nearest chunks by cosine similarity, ties by chunk id.
// Rows whose dimension differs from the query are skipped.
func (v *VectorIndex) Search(ctx context.Context, kb string, query []float32, k int) ([]domain.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}
	rows, err := v.pool.Query(ctx, `
		SELECT chunk_id, 1 - (embedding <=> $2::vector) AS similarity
		FROM citekit_vectors
		WHERE kb_name = $1 AND vector_dims(embedding) = $3
		ORDER BY embedding <=> $2::vector, chunk_id
		LIMIT $4
	`, kb, vectorLiteral(query), len(query), k)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.VectorHit, error) {
		var hit domain.VectorHit
		var sim *float64
		if err := row.Scan(&hit.ChunkID, &sim); err != nil {
			return hit, err
		}
		// Zero vectors have no defined cosine distance.
		if sim != nil {
			hit.Similarity = clampSimilarity(*sim)
		}
		return hit, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning vector hits: %w", err)
	}
	return hits, nil
}

// Close releases the connection pool.
func (v *VectorIndex) Close() error {
	if v.pool == nil {
		return errors.New("vector index already closed")
	}
	v.pool.Close()
	v.pool = nil
	return nil
}

// vectorLiteral formats v in pgvector's text input format, e.g. "[1,0.5,-2]".
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*8 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func clampSimilarity(sim float64) float64 {
	switch {
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	default:
		return sim
	}
}
