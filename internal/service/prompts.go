package service

import (
	"context"
	"strings"
	"text/template"
)

// GenerationClient runs one text generation call.
type GenerationClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var rewriteTemplate = template.Must(template.New("rewrite").Parse(
	`Rewrite the following user question for an optimized web search.

Original User Question: {{ .Query }}

Instructions:
- Identify the main topic and key details in the user question.
- Rewrite the question in a clear, concise format suitable for web search queries.
- Ensure the rewritten question maintains the original intent and context of the user question.
- Avoid ambiguous or overly broad terms that might lead to irrelevant search results.
- Break down complex or multi-part questions into simpler queries if necessary.

Rewritten Question for Web Search:
`))

var answerTemplate = template.Must(template.New("answer").Parse(
	`Given the following information, answer the question.

Context:
{{- range .Chunks }}
    {{ .Content }}
{{- end }}

Question: {{ .Question }}
Answer:
`))

func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
