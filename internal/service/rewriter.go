package service

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/domenicocinque/web-rag/internal/domain"
)

// rewriteLabel is sometimes echoed back by the model ahead of the query.
const rewriteLabel = "rewritten question for web search:"

// RewriteService turns a user question into a web search query.
type RewriteService struct {
	client GenerationClient
	call   CallConfig
}

func NewRewriteService(client GenerationClient, call CallConfig) *RewriteService {
	return &RewriteService{client: client, call: call}
}

// Rewrite returns the search query for question. An empty reply falls back
// to the question itself.
func (s *RewriteService) Rewrite(ctx context.Context, question string) (string, error) {
	prompt, err := renderPrompt(rewriteTemplate, struct{ Query string }{Query: question})
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to render rewrite prompt", err)
	}

	reply, err := callWithRetry(ctx, s.call, "rewrite", func(ctx context.Context) (string, error) {
		return s.client.Generate(ctx, prompt)
	})
	if err != nil {
		return "", domain.NewUpstreamGenerationError(err)
	}

	rewritten := cleanRewrite(reply)
	if rewritten == "" {
		ctxzap.Info(ctx, "empty rewrite, searching with the original question")
		return question, nil
	}

	ctxzap.Debug(ctx, "query rewritten", zap.String("rewritten", rewritten))
	return rewritten, nil
}

// cleanRewrite keeps the first non-empty line of reply without list
// markers, a leading label or surrounding quotes.
func cleanRewrite(reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), rewriteLabel) {
			line = strings.TrimSpace(line[len(rewriteLabel):])
		}
		line = strings.TrimLeft(line, "-*• ")
		line = trimOrdinal(line)
		line = strings.Trim(line, "\"'`“” ")
		if line != "" {
			return line
		}
	}
	return ""
}

// trimOrdinal drops a leading "1." or "1)" marker.
func trimOrdinal(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
