package service

import (
	"context"

	"github.com/domenicocinque/web-rag/internal/domain"
)

// Policies applied when retrieval returns no chunks
const (
	NoContextGenerate = "generate"
	NoContextFallback = "fallback"
)

// FallbackAnswer is returned under the fallback policy when nothing was retrieved.
const FallbackAnswer = "I could not find relevant information to answer this question."

// AnswerService renders the answer prompt and runs one generation call.
type AnswerService struct {
	client          GenerationClient
	call            CallConfig
	noContextPolicy string
}

func NewAnswerService(client GenerationClient, call CallConfig, noContextPolicy string) *AnswerService {
	if noContextPolicy == "" {
		noContextPolicy = NoContextGenerate
	}
	return &AnswerService{client: client, call: call, noContextPolicy: noContextPolicy}
}

// Answer generates the reply to question from the retrieved chunks.
func (s *AnswerService) Answer(ctx context.Context, question string, chunks []domain.ScoredChunk) (string, error) {
	if len(chunks) == 0 && s.noContextPolicy == NoContextFallback {
		return FallbackAnswer, nil
	}

	prompt, err := BuildAnswerPrompt(question, chunks)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to render answer prompt", err)
	}

	reply, err := callWithRetry(ctx, s.call, "generate", func(ctx context.Context) (string, error) {
		return s.client.Generate(ctx, prompt)
	})
	if err != nil {
		return "", domain.NewUpstreamGenerationError(err)
	}

	return reply, nil
}

// BuildAnswerPrompt renders the fixed answer template. With no chunks the
// Context section is empty.
func BuildAnswerPrompt(question string, chunks []domain.ScoredChunk) (string, error) {
	return renderPrompt(answerTemplate, struct {
		Question string
		Chunks   []domain.ScoredChunk
	}{
		Question: question,
		Chunks:   chunks,
	})
}
