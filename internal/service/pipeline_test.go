package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/domenicocinque/web-rag/internal/document"
	"github.com/domenicocinque/web-rag/internal/domain"
	"github.com/domenicocinque/web-rag/internal/fetcher"
	"github.com/domenicocinque/web-rag/internal/httpclient"
)

const (
	francePage = `<html><head><title>France</title></head><body>
<nav>Home | About</nav>
<main><p>Paris is the capital of France.</p><p>The Seine flows through Paris.</p></main>
<footer>© 2024 Example</footer>
</body></html>`
	germanyPage = `<html><body><article><p>Berlin is the capital of Germany.</p></article></body></html>`
)

type pipelineFixture struct {
	search    *MockSearchProvider
	embedder  *keywordEmbedder
	generator *scriptedGenerator
	stores    *recordingFactory
	archiver  *MockRunArchiver
	server    *httptest.Server

	splitLength int
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/france", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(francePage))
	})
	mux.HandleFunc("/germany", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(germanyPage))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &pipelineFixture{
		search:    new(MockSearchProvider),
		embedder:  &keywordEmbedder{},
		generator: &scriptedGenerator{rewrite: "capital of France"},
		stores:    &recordingFactory{},
		archiver:  new(MockRunArchiver),
		server:    server,

		splitLength: 100,
	}
}

func (f *pipelineFixture) pipeline(t *testing.T, policy string) *Pipeline {
	t.Helper()

	cleaner, err := document.NewCleaner()
	require.NoError(t, err)
	splitter, err := document.NewSplitter(document.SplitterConfig{By: document.SplitByWord, Length: f.splitLength})
	require.NoError(t, err)

	embedder := NewEmbeddingService(f.embedder, 32, testCallConfig())

	return NewPipeline(PipelineDeps{
		Rewriter:   NewRewriteService(f.generator, testCallConfig()),
		Search:     f.search,
		Fetcher:    fetcher.New(httpclient.NewConnector(httpclient.ConnectorConfig{}), fetcher.Config{Workers: 2, Timeout: 2 * time.Second}),
		Normalizer: document.NewNormalizer(),
		Cleaner:    cleaner,
		Splitter:   splitter,
		Embedder:   embedder,
		Stores:     f.stores,
		Retriever:  NewRetrievalService(embedder, 10),
		Generator:  NewAnswerService(f.generator, testCallConfig(), policy),
		Archiver:   f.archiver,
	}, PipelineConfig{SearchTopK: 10, SearchLang: "en"})
}

func TestPipeline_AnswersFromWebContent(t *testing.T) {
	f := newPipelineFixture(t)
	f.search.On("Resolve", mock.Anything, "capital of France", 10, "en").Return([]string{
		f.server.URL + "/france",
		f.server.URL + "/germany",
		f.server.URL + "/france",
		f.server.URL + "/missing",
	}, nil)
	f.archiver.On("ArchiveRun", mock.Anything, mock.AnythingOfType("*service.RunReport")).Return(nil)

	report, err := f.pipeline(t, NoContextGenerate).Run(context.Background(), "  What is the capital of France?  ")
	require.NoError(t, err)

	assert.Equal(t, "Paris.", report.Answer)
	assert.Equal(t, "What is the capital of France?", report.Query)
	assert.Equal(t, "capital of France", report.RewrittenQuery)
	assert.Len(t, report.URLs, 3, "duplicate URLs are fetched once")
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 2, report.Chunks)
	require.NotEmpty(t, report.Sources)
	assert.Equal(t, f.server.URL+"/france", report.Sources[0].URL)
	assert.NotEmpty(t, report.RunID)

	require.Len(t, report.Stages, len(domain.Stages))
	for i, stage := range report.Stages {
		assert.Equal(t, domain.Stages[i], stage.Stage)
	}

	prompts := f.generator.answerPrompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Question: What is the capital of France?")
	assert.NotContains(t, prompts[0], "Home | About")
	assert.NotContains(t, prompts[0], "© 2024")

	require.Len(t, f.stores.stores, 1)
	assert.True(t, f.stores.stores[0].closed)
	assert.Equal(t, report.RunID, f.stores.stores[0].runID)
	f.archiver.AssertExpectations(t)
}

func TestPipeline_SingleShortPageIsOneChunk(t *testing.T) {
	f := newPipelineFixture(t)
	f.splitLength = 50
	f.search.On("Resolve", mock.Anything, "capital of France", 10, "en").
		Return([]string{f.server.URL + "/france"}, nil)
	f.archiver.On("ArchiveRun", mock.Anything, mock.Anything).Return(nil)

	report, err := f.pipeline(t, NoContextGenerate).Run(context.Background(), "capital of France")
	require.NoError(t, err)

	assert.Equal(t, "Paris.", report.Answer)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 1, report.Chunks)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, f.server.URL+"/france", report.Sources[0].URL)
	assert.Equal(t, 0, report.Sources[0].ChunkIndex)
}

func TestPipeline_ZeroSearchResults(t *testing.T) {
	t.Run("generate policy calls the generator with empty context", func(t *testing.T) {
		f := newPipelineFixture(t)
		f.search.On("Resolve", mock.Anything, mock.Anything, 10, "en").Return([]string{}, nil)
		f.archiver.On("ArchiveRun", mock.Anything, mock.Anything).Return(nil)

		report, err := f.pipeline(t, NoContextGenerate).Run(context.Background(), "obscure question")
		require.NoError(t, err)

		assert.Equal(t, "I don't know.", report.Answer)
		assert.Empty(t, report.Sources)
		assert.Zero(t, f.embedder.calls(), "nothing to embed")

		prompts := f.generator.answerPrompts()
		require.Len(t, prompts, 1)
		assert.Contains(t, prompts[0], "Context:\n\nQuestion: obscure question")
	})

	t.Run("fallback policy returns the fixed answer", func(t *testing.T) {
		f := newPipelineFixture(t)
		f.search.On("Resolve", mock.Anything, mock.Anything, 10, "en").Return([]string{}, nil)
		f.archiver.On("ArchiveRun", mock.Anything, mock.Anything).Return(nil)

		report, err := f.pipeline(t, NoContextFallback).Run(context.Background(), "obscure question")
		require.NoError(t, err)

		assert.Equal(t, FallbackAnswer, report.Answer)
		assert.Empty(t, f.generator.answerPrompts())
	})
}

func TestPipeline_IsIdempotentAcrossRuns(t *testing.T) {
	f := newPipelineFixture(t)
	f.search.On("Resolve", mock.Anything, mock.Anything, 10, "en").Return([]string{
		f.server.URL + "/france",
		f.server.URL + "/germany",
	}, nil)
	f.archiver.On("ArchiveRun", mock.Anything, mock.Anything).Return(nil)

	p := f.pipeline(t, NoContextGenerate)

	first, err := p.Run(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	second, err := p.Run(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, first.Sources, second.Sources)
	assert.Equal(t, first.Chunks, second.Chunks)
	assert.NotEqual(t, first.RunID, second.RunID)

	require.Len(t, f.stores.stores, 2)
	count, err := f.stores.stores[1].Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "second store was discarded")
}

func TestPipeline_Answer(t *testing.T) {
	f := newPipelineFixture(t)
	f.search.On("Resolve", mock.Anything, mock.Anything, 10, "en").Return([]string{f.server.URL + "/france"}, nil)
	f.archiver.On("ArchiveRun", mock.Anything, mock.Anything).Return(nil)

	answer, err := f.pipeline(t, NoContextGenerate).Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)
}

func TestPipeline_Failures(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		f := newPipelineFixture(t)

		_, err := f.pipeline(t, NoContextGenerate).Run(context.Background(), "   ")
		assert.ErrorIs(t, err, domain.ErrEmptyQuery)
		assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))
		assert.Empty(t, f.stores.stores)
	})

	t.Run("search unavailable", func(t *testing.T) {
		f := newPipelineFixture(t)
		f.search.On("Resolve", mock.Anything, mock.Anything, 10, "en").
			Return(nil, domain.NewSearchUnavailableError(errors.New("503")))

		_, err := f.pipeline(t, NoContextGenerate).Run(context.Background(), "question")
		require.Error(t, err)
		assert.Equal(t, domain.StageSearching, domain.StageOf(err))
		assert.True(t, domain.IsCode(err, domain.ErrCodeSearchUnavailable))
		assert.True(t, f.stores.stores[0].closed)
		f.archiver.AssertNotCalled(t, "ArchiveRun", mock.Anything, mock.Anything)
	})

	t.Run("embedding failure", func(t *testing.T) {
		f := newPipelineFixture(t)
		f.embedder.err = errors.New("embedding backend down")
		f.search.On("Resolve", mock.Anything, mock.Anything, 10, "en").Return([]string{f.server.URL + "/france"}, nil)

		_, err := f.pipeline(t, NoContextGenerate).Run(context.Background(), "question")
		require.Error(t, err)
		assert.Equal(t, domain.StageEmbedding, domain.StageOf(err))
		assert.True(t, domain.IsCode(err, domain.ErrCodeEmbedding))
		assert.True(t, f.stores.stores[0].closed)
	})

	t.Run("canceled context", func(t *testing.T) {
		f := newPipelineFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.pipeline(t, NoContextGenerate).Run(ctx, "question")
		require.Error(t, err)
		assert.Equal(t, domain.StageRewriting, domain.StageOf(err))
		assert.True(t, domain.IsCode(err, domain.ErrCodeCanceled))
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, f.stores.stores[0].closed)
	})

	t.Run("expired deadline is a timeout", func(t *testing.T) {
		f := newPipelineFixture(t)
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		_, err := f.pipeline(t, NoContextGenerate).Run(ctx, "question")
		require.Error(t, err)
		assert.Equal(t, domain.StageRewriting, domain.StageOf(err))
		assert.True(t, domain.IsCode(err, domain.ErrCodeTimeout))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, f.stores.stores[0].closed)
	})

	t.Run("archive failure does not fail the run", func(t *testing.T) {
		f := newPipelineFixture(t)
		f.search.On("Resolve", mock.Anything, mock.Anything, 10, "en").Return([]string{}, nil)
		f.archiver.On("ArchiveRun", mock.Anything, mock.Anything).Return(errors.New("bucket missing"))

		report, err := f.pipeline(t, NoContextFallback).Run(context.Background(), "question")
		require.NoError(t, err)
		assert.Equal(t, FallbackAnswer, report.Answer)
	})
}

func TestDedupeURLs(t *testing.T) {
	got := dedupeURLs([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Empty(t, dedupeURLs(nil))
}
