package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// FakeVocabulary drives the keyword embeddings returned by NewFakeOpenAI.
// Each text gets one dimension per word, set to the number of occurrences.
var FakeVocabulary = []string{"paris", "capital", "france", "berlin"}

// KeywordEmbedding counts vocabulary words in text.
func KeywordEmbedding(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, len(FakeVocabulary))
	for i, word := range FakeVocabulary {
		vec[i] = float32(strings.Count(lower, word))
	}
	return vec
}

// FakeOpenAIOption adjusts the behaviour of NewFakeOpenAI.
type FakeOpenAIOption func(*fakeOpenAI)

type fakeOpenAI struct {
	completionDelay time.Duration
}

// WithCompletionDelay holds every chat completion for d before any header is
// written, the way a slow non-streaming completion behaves.
func WithCompletionDelay(d time.Duration) FakeOpenAIOption {
	return func(f *fakeOpenAI) {
		f.completionDelay = d
	}
}

// NewFakeOpenAI serves /v1/embeddings and /v1/chat/completions. Rewrite
// prompts get rewrite back, answer prompts mentioning Paris get "Paris."
// and everything else gets "I don't know.".
func NewFakeOpenAI(t *testing.T, rewrite string, opts ...FakeOpenAIOption) *httptest.Server {
	t.Helper()

	fake := &fakeOpenAI{}
	for _, opt := range opts {
		opt(fake)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, 0, len(req.Input))
		for i, text := range req.Input {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": KeywordEmbedding(text),
			})
		}
		writeJSON(w, map[string]any{"object": "list", "data": data, "model": "fake-embedding"})
	})
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if fake.completionDelay > 0 {
			select {
			case <-time.After(fake.completionDelay):
			case <-r.Context().Done():
				return
			}
		}

		prompt := req.Messages[len(req.Messages)-1].Content
		reply := "I don't know."
		switch {
		case strings.Contains(prompt, "Rewritten Question for Web Search"):
			reply = rewrite
		case strings.Contains(prompt, "Paris"):
			reply = "Paris."
		}

		writeJSON(w, map[string]any{
			"id":     "chatcmpl-fake",
			"object": "chat.completion",
			"model":  "fake-chat",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// NewFakeGoogle answers Custom Search requests with links, ignoring the query.
func NewFakeGoogle(t *testing.T, links ...string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items := make([]map[string]string, 0, len(links))
		for _, link := range links {
			items = append(items, map[string]string{"link": link})
		}
		writeJSON(w, map[string]any{"items": items})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// NewFakeWeb serves each page body as text/html at its path.
func NewFakeWeb(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	for path, body := range pages {
		mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(body))
		})
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
