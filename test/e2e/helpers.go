//go:build e2e

package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap/zaptest"

	"github.com/domenicocinque/web-rag/internal/api/handlers"
	"github.com/domenicocinque/web-rag/internal/app"
	"github.com/domenicocinque/web-rag/internal/config"
	"github.com/domenicocinque/web-rag/internal/document"
	"github.com/domenicocinque/web-rag/internal/server"
	"github.com/domenicocinque/web-rag/internal/service"
	"github.com/domenicocinque/web-rag/internal/testutil"
)

const (
	s3AccessKey = "rustfsadmin"
	s3SecretKey = "rustfsadmin"
	s3Bucket    = "web-rag-runs"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	Config     *config.Config
	Runtime    *app.Runtime
	Pool       *pgxpool.Pool
	ServerURL  string
	HTTPClient *http.Client
}

// SetupE2EEnv starts PostgreSQL and RustFS, fakes the model and search
// providers, and serves the real router.
func SetupE2EEnv(t *testing.T, pages map[string]string) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	s3C := testutil.NewRustFSContainer(ctx, t)
	t.Cleanup(func() { _ = s3C.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pgC)
	t.Cleanup(pool.Close)

	web := testutil.NewFakeWeb(t, pages)
	links := make([]string, 0, len(pages))
	for path := range pages {
		links = append(links, web.URL+path)
	}

	openai := testutil.NewFakeOpenAI(t, "capital of France")
	google := testutil.NewFakeGoogle(t, links...)

	cfg := &config.Config{
		APIPrefix:           "/api/v1",
		RequestTimeout:      time.Minute,
		OpenAIAPIKey:        "sk-test",
		OpenAIBaseURL:       openai.URL + "/v1",
		EmbeddingDimensions: len(testutil.FakeVocabulary),
		EmbeddingBatchSize:  8,
		SearchProvider:      config.SearchProviderGoogle,
		SearchBaseURL:       google.URL,
		GoogleAPIKey:        "key",
		GoogleEngineID:      "cx",
		SearchTopK:          10,
		SearchLang:          "en",
		FetchWorkers:        4,
		FetchTimeout:        5 * time.Second,
		FetchMaxBytes:       1 << 20,
		UserAgent:           "web-rag-e2e",
		SplitBy:             document.SplitBySentence,
		SplitLength:         2,
		RetrievalTopK:       3,
		NoContextPolicy:     service.NoContextGenerate,
		CallTimeout:         10 * time.Second,
		Retry:               config.DefaultRetryConfig(),
		VectorStore:         config.VectorStorePostgres,
		DatabaseURL:         pgC.ConnectionString(),
		S3Endpoint:          s3C.Endpoint(),
		S3AccessKey:         s3AccessKey,
		S3SecretKey:         s3SecretKey,
		S3Bucket:            s3Bucket,
		S3Region:            "us-east-1",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid e2e config: %v", err)
	}

	logger := zaptest.NewLogger(t)
	rt, err := app.Build(ctx, cfg, logger, app.Options{Migrate: true, Archive: true})
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	t.Cleanup(rt.Close)

	routerCfg := server.RouterConfig{
		Logger:         logger,
		APIPrefix:      cfg.APIPrefix,
		RequestTimeout: cfg.RequestTimeout,
		AnswerHandler:  handlers.NewAnswerHandler(rt.Pipeline),
	}
	if rt.Archive != nil {
		routerCfg.RunsHandler = handlers.NewRunsHandler(rt.Archive)
	}
	router := server.NewRouter(routerCfg)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		Config:     cfg,
		Runtime:    rt,
		Pool:       pool,
		ServerURL:  srv.URL,
		HTTPClient: srv.Client(),
	}
}

// CountChunks returns the number of rows left in the chunk table.
func (e *E2ETestEnv) CountChunks() int {
	var n int
	if err := e.Pool.QueryRow(e.Ctx, "SELECT COUNT(*) FROM rag_chunks").Scan(&n); err != nil {
		e.T.Fatalf("failed to count chunks: %v", err)
	}
	return n
}
