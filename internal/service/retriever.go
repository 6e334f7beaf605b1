package service

import (
	"context"

	"github.com/domenicocinque/web-rag/internal/domain"
	"github.com/domenicocinque/web-rag/internal/vectorstore"
)

const DefaultRetrievalTopK = 10

// QueryEmbedder embeds a single text.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// RetrievalService finds the chunks of a run most similar to a question.
type RetrievalService struct {
	embedder QueryEmbedder
	topK     int
}

func NewRetrievalService(embedder QueryEmbedder, topK int) *RetrievalService {
	if topK < 0 {
		topK = DefaultRetrievalTopK
	}
	return &RetrievalService{embedder: embedder, topK: topK}
}

// Retrieve returns up to topK chunks ordered by similarity. An empty store
// yields an empty result without embedding the question.
func (s *RetrievalService) Retrieve(ctx context.Context, store vectorstore.Store, question string) ([]domain.ScoredChunk, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 || s.topK == 0 {
		return []domain.ScoredChunk{}, nil
	}

	embedding, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, err
	}

	return store.Search(ctx, embedding, s.topK)
}
