// Package vectorstore holds the embedded chunks of a single pipeline run and
// answers nearest-neighbour queries over them by cosine similarity.
package vectorstore

import (
	"context"
	"fmt"
	"math"

	"github.com/domenicocinque/web-rag/internal/domain"
)

// Store is scoped to one run. Close discards everything written to it.
type Store interface {
	Write(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, query []float32, k int) ([]domain.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// Factory creates a fresh store for each run.
type Factory interface {
	New(ctx context.Context, runID string) (Store, error)
}

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 when either norm is zero
// or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// validateBatch checks a write batch against the store's dimensionality and
// the IDs already present. exists may be nil.
func validateBatch(chunks []domain.Chunk, dimensions int, exists func(id string) bool) error {
	seen := make(map[string]bool, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			return domain.NewInvalidChunkError(fmt.Sprintf("chunk %d has no id", i))
		}
		if !c.HasEmbedding() {
			return domain.NewInvalidChunkError(fmt.Sprintf("chunk %s has no embedding", c.ID))
		}
		if dimensions > 0 && len(c.Embedding) != dimensions {
			return domain.NewInvalidChunkError(fmt.Sprintf("chunk %s has %d dimensions, expected %d", c.ID, len(c.Embedding), dimensions))
		}
		if seen[c.ID] || (exists != nil && exists(c.ID)) {
			return domain.NewInvalidChunkError(fmt.Sprintf("duplicate chunk id %s", c.ID))
		}
		seen[c.ID] = true
	}
	return nil
}

func checkQuery(query []float32, dimensions int) error {
	if dimensions > 0 && len(query) != dimensions {
		return domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("query has %d dimensions, expected %d", len(query), dimensions))
	}
	return nil
}
