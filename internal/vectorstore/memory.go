package vectorstore

import (
	"context"
	"slices"
	"sync"

	"github.com/domenicocinque/web-rag/internal/domain"
)

// MemoryStore keeps chunks in insertion order and scans them linearly.
type MemoryStore struct {
	mu         sync.RWMutex
	dimensions int
	chunks     []domain.Chunk
	ids        map[string]bool
}

// NewMemoryStore returns an empty store. A dimensions of 0 accepts the
// dimensionality of the first write.
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{
		dimensions: dimensions,
		ids:        make(map[string]bool),
	}
}

func (s *MemoryStore) Write(_ context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims := s.dimensions
	if dims == 0 {
		dims = len(chunks[0].Embedding)
	}
	if err := validateBatch(chunks, dims, func(id string) bool { return s.ids[id] }); err != nil {
		return err
	}

	s.dimensions = dims
	for _, c := range chunks {
		c.Embedding = slices.Clone(c.Embedding)
		s.chunks = append(s.chunks, c)
		s.ids[c.ID] = true
	}
	return nil
}

// Search ranks every chunk by cosine similarity. The sort is stable so equal
// scores keep insertion order.
func (s *MemoryStore) Search(_ context.Context, query []float32, k int) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || len(s.chunks) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if err := checkQuery(query, s.dimensions); err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredChunk, len(s.chunks))
	for i, c := range s.chunks {
		scored[i] = domain.ScoredChunk{Chunk: c, Score: CosineSimilarity(query, c.Embedding)}
	}

	slices.SortStableFunc(scored, func(a, b domain.ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	return scored[:min(k, len(scored))], nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.ids = make(map[string]bool)
	return nil
}

// MemoryFactory hands out independent memory stores.
type MemoryFactory struct {
	Dimensions int
}

func (f MemoryFactory) New(_ context.Context, _ string) (Store, error) {
	return NewMemoryStore(f.Dimensions), nil
}
