package service

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/domenicocinque/web-rag/internal/domain"
	"github.com/domenicocinque/web-rag/internal/openai"
)

const (
	DefaultEmbeddingBatchSize = 32
	DefaultCallTimeout        = 60 * time.Second
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// CallConfig bounds every external call made by a component.
type CallConfig struct {
	Timeout time.Duration
	Retry   []retry.Option
}

func (c CallConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultCallTimeout
	}
	return c.Timeout
}

// callWithRetry runs fn under a per-attempt timeout, retrying transient failures.
func callWithRetry[T any](ctx context.Context, cfg CallConfig, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	opts := append([]retry.Option{
		retry.Attempts(1),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(openai.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			ctxzap.Warn(ctx, "retrying external call",
				zap.String("call", name),
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	}, cfg.Retry...)

	return retry.DoWithData(func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, cfg.timeout())
		defer cancel()
		return fn(callCtx)
	}, opts...)
}

// EmbeddingService attaches vectors to chunks and embeds query text.
type EmbeddingService struct {
	client    EmbeddingClient
	batchSize int
	call      CallConfig
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, batchSize int, call CallConfig) *EmbeddingService {
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}
	return &EmbeddingService{
		client:    client,
		batchSize: batchSize,
		call:      call,
	}
}

// EmbedChunks returns copies of chunks with embeddings attached, in input
// order. Batches are sent one after another.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.Chunk, error) {
	embedded := make([]domain.Chunk, len(chunks))
	copy(embedded, chunks)

	for start := 0; start < len(embedded); start += s.batchSize {
		end := min(start+s.batchSize, len(embedded))

		texts := make([]string, 0, end-start)
		for _, c := range embedded[start:end] {
			texts = append(texts, c.Content)
		}

		vectors, err := s.embedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}

		for i, vector := range vectors {
			embedded[start+i].Embedding = vector
		}

		ctxzap.Debug(ctx, "embedded batch",
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("total", len(embedded)),
		)
	}

	return embedded, nil
}

// EmbedText embeds a single text, such as the user's question.
func (s *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *EmbeddingService) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := callWithRetry(ctx, s.call, "embeddings", func(ctx context.Context) ([][]float32, error) {
		return s.client.GenerateEmbeddings(ctx, texts)
	})
	if err != nil {
		return nil, domain.NewEmbeddingError(err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.NewEmbeddingError(fmt.Errorf("expected %d vectors, got %d", len(texts), len(vectors)))
	}
	return vectors, nil
}
