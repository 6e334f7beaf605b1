package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/domenicocinque/web-rag/internal/domain"
)

const uniqueViolation = "23505"

// PostgresStore keeps a run's chunks in rag_chunks, keyed by run ID.
type PostgresStore struct {
	pool       *pgxpool.Pool
	runID      string
	dimensions int
}

func NewPostgresStore(pool *pgxpool.Pool, runID string, dimensions int) (*PostgresStore, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	return &PostgresStore{pool: pool, runID: runID, dimensions: dimensions}, nil
}

// Write inserts the batch in one transaction; a duplicate ID rolls back the
// whole batch.
func (s *PostgresStore) Write(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateBatch(chunks, s.dimensions, nil); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO rag_chunks (run_id, id, source_url, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			s.runID, c.ID, c.SourceURL, c.Index, c.Content, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return domain.NewInvalidChunkError(fmt.Sprintf("duplicate chunk id %s", c.ID))
			}
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// Search orders by cosine similarity, then by insertion sequence. Zero
// vectors score 0 instead of the NaN pgvector returns for them.
func (s *PostgresStore) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if err := checkQuery(query, s.dimensions); err != nil {
		return nil, err
	}

	zeroQuery := true
	for _, v := range query {
		if v != 0 {
			zeroQuery = false
			break
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, source_url, chunk_index, content,
		       CASE WHEN $3 OR vector_norm(embedding) = 0 THEN 0
		            ELSE 1 - (embedding <=> $2) END AS score
		FROM rag_chunks
		WHERE run_id = $1
		ORDER BY score DESC, seq ASC
		LIMIT $4`,
		s.runID, pgvector.NewVector(query), zeroQuery, k,
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	results := []domain.ScoredChunk{}
	for rows.Next() {
		var sc domain.ScoredChunk
		if err := rows.Scan(&sc.ID, &sc.SourceURL, &sc.Index, &sc.Content, &sc.Score); err != nil {
			return nil, err
		}
		results = append(results, sc)
	}

	return results, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rag_chunks WHERE run_id = $1`, s.runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// Close deletes the run's rows.
func (s *PostgresStore) Close(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rag_chunks WHERE run_id = $1`, s.runID)
	if err != nil {
		return fmt.Errorf("discard run %s: %w", s.runID, err)
	}
	return nil
}

// PostgresFactory creates run-scoped stores sharing one pool.
type PostgresFactory struct {
	pool       *pgxpool.Pool
	dimensions int
}

func NewPostgresFactory(pool *pgxpool.Pool, dimensions int) *PostgresFactory {
	return &PostgresFactory{pool: pool, dimensions: dimensions}
}

func (f *PostgresFactory) New(_ context.Context, runID string) (Store, error) {
	return NewPostgresStore(f.pool, runID, f.dimensions)
}

// Sweep deletes rows of runs older than ttl that were never closed, for
// example after a crash. It returns the number of rows removed.
func (f *PostgresFactory) Sweep(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := f.pool.Exec(ctx,
		`DELETE FROM rag_chunks WHERE created_at < $1`,
		time.Now().UTC().Add(-ttl),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep stale chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}
