package service

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/domenicocinque/web-rag/internal/vectorstore"
)

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockGenerationClient is a mock implementation of GenerationClient
type MockGenerationClient struct {
	mock.Mock
}

func (m *MockGenerationClient) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockSearchProvider is a mock implementation of SearchProvider
type MockSearchProvider struct {
	mock.Mock
}

func (m *MockSearchProvider) Resolve(ctx context.Context, query string, topK int, lang string) ([]string, error) {
	args := m.Called(ctx, query, topK, lang)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockRunArchiver is a mock implementation of RunArchiver
type MockRunArchiver struct {
	mock.Mock
}

func (m *MockRunArchiver) ArchiveRun(ctx context.Context, report *RunReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// keywordEmbedder embeds text as keyword counts over a fixed vocabulary.
type keywordEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

var vocabulary = []string{"paris", "capital", "france", "berlin", "germany", "seine"}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, len(vocabulary))
	for i, word := range vocabulary {
		vec[i] = float32(strings.Count(lower, word))
	}
	return vec
}

func (e *keywordEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batches = append(e.batches, texts)
	e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = keywordVector(text)
	}
	return vectors, nil
}

func (e *keywordEmbedder) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.batches)
}

// scriptedGenerator rewrites to a fixed query and answers from the prompt.
type scriptedGenerator struct {
	mu      sync.Mutex
	prompts []string
	rewrite string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if strings.HasPrefix(prompt, "Rewrite the following user question") {
		return g.rewrite, nil
	}
	if strings.Contains(prompt, "Paris is the capital of France") {
		return "Paris.", nil
	}
	return "I don't know.", nil
}

func (g *scriptedGenerator) answerPrompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, p := range g.prompts {
		if strings.HasPrefix(p, "Given the following information") {
			out = append(out, p)
		}
	}
	return out
}

// recordingFactory hands out memory stores and remembers them.
type recordingFactory struct {
	mu     sync.Mutex
	stores []*closeTracker
}

type closeTracker struct {
	*vectorstore.MemoryStore
	runID  string
	closed bool
}

func (c *closeTracker) Close(ctx context.Context) error {
	c.closed = true
	return c.MemoryStore.Close(ctx)
}

func (f *recordingFactory) New(_ context.Context, runID string) (vectorstore.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	store := &closeTracker{MemoryStore: vectorstore.NewMemoryStore(0), runID: runID}
	f.stores = append(f.stores, store)
	return store, nil
}
