// Package app wires configuration into a runnable pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/domenicocinque/web-rag/internal/config"
	"github.com/domenicocinque/web-rag/internal/database"
	"github.com/domenicocinque/web-rag/internal/document"
	"github.com/domenicocinque/web-rag/internal/fetcher"
	"github.com/domenicocinque/web-rag/internal/httpclient"
	"github.com/domenicocinque/web-rag/internal/openai"
	"github.com/domenicocinque/web-rag/internal/search"
	"github.com/domenicocinque/web-rag/internal/service"
	"github.com/domenicocinque/web-rag/internal/storage"
	"github.com/domenicocinque/web-rag/internal/vectorstore"
)

const (
	modelConnectTimeout      = 10 * time.Second
	modelIdleConnTimeout     = 5 * time.Minute
	modelMaxIdleConnsPerHost = 4
)

// ErrOpenAINotConfigured is returned when no API key is available for the model provider.
var ErrOpenAINotConfigured = errors.New("OPENAI_API_KEY not set: embeddings and generation require it")

// Options selects the optional startup steps.
type Options struct {
	Migrate bool
	Archive bool
}

// Runtime holds the pipeline and the resources that outlive a single run.
type Runtime struct {
	Pipeline *service.Pipeline
	// Sweeper is set when chunks live in PostgreSQL.
	Sweeper *vectorstore.PostgresFactory
	// Archive is set when runs are archived to S3.
	Archive *storage.RunArchive

	pool *pgxpool.Pool
}

// Close releases the database pool.
func (r *Runtime) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Build wires every stage component from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Runtime, error) {
	if !cfg.HasOpenAI() {
		return nil, ErrOpenAINotConfigured
	}

	rt := &Runtime{}
	retryOpts := cfg.Retry.ToRetryOptions()
	call := service.CallConfig{Timeout: cfg.CallTimeout, Retry: retryOpts}

	connector := httpclient.NewConnector(
		httpclient.ConnectorConfig{MaxBodyBytes: cfg.FetchMaxBytes},
		httpclient.WithUserAgent(cfg.UserAgent),
		httpclient.WithRequestLogging(),
	)

	provider, err := search.NewProvider(search.Config{
		Provider:       cfg.SearchProvider,
		BaseURL:        cfg.SearchBaseURL,
		GoogleAPIKey:   cfg.GoogleAPIKey,
		GoogleEngineID: cfg.GoogleEngineID,
		Retry:          retryOpts,
	}, connector)
	if err != nil {
		return nil, fmt.Errorf("failed to create search provider: %w", err)
	}

	cleaner, err := document.NewCleaner(cfg.BoilerplatePatterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cleaner: %w", err)
	}

	splitter, err := document.NewSplitter(document.SplitterConfig{
		By:      cfg.SplitBy,
		Length:  cfg.SplitLength,
		Overlap: cfg.SplitOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create splitter: %w", err)
	}

	model := newModelClient(cfg)
	embedder := service.NewEmbeddingService(model, cfg.EmbeddingBatchSize, call)

	var stores vectorstore.Factory
	switch cfg.VectorStore {
	case config.VectorStorePostgres:
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.pool = pool
		logger.Info("connected to database")

		if opts.Migrate {
			if _, err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
				rt.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		factory := vectorstore.NewPostgresFactory(pool, model.Dimensions())
		rt.Sweeper = factory
		stores = factory
	default:
		stores = &vectorstore.MemoryFactory{Dimensions: model.Dimensions()}
	}

	deps := service.PipelineDeps{
		Rewriter: service.NewRewriteService(model, call),
		Search:   provider,
		Fetcher: fetcher.New(connector, fetcher.Config{
			Workers:    cfg.FetchWorkers,
			Timeout:    cfg.FetchTimeout,
			Retries:    cfg.FetchRetries,
			RetryDelay: cfg.Retry.Delay,
		}),
		Normalizer: document.NewNormalizer(),
		Cleaner:    cleaner,
		Splitter:   splitter,
		Embedder:   embedder,
		Stores:     stores,
		Retriever:  service.NewRetrievalService(embedder, cfg.RetrievalTopK),
		Generator:  service.NewAnswerService(model, call, cfg.NoContextPolicy),
	}

	if opts.Archive && cfg.HasS3() {
		archive, err := newRunArchive(ctx, cfg, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		deps.Archiver = archive
		rt.Archive = archive
	}

	rt.Pipeline = service.NewPipeline(deps, service.PipelineConfig{
		SearchTopK: cfg.SearchTopK,
		SearchLang: cfg.SearchLang,
	})

	return rt, nil
}

// newModelClient builds the OpenAI client. Chat completions send no headers
// until the whole reply is generated, so the transport sets no response or
// client deadline of its own and each call is bounded by CALL_TIMEOUT.
func newModelClient(cfg *config.Config) *openai.Client {
	return openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		GenerationModel:     cfg.GenerationModel,
		HTTPClient: httpclient.New(
			httpclient.WithRequestTimeout(0),
			httpclient.WithResponseHeaderTimeout(0),
			httpclient.WithConnectTimeout(modelConnectTimeout),
			httpclient.WithIdleConnTimeout(modelIdleConnTimeout),
			httpclient.WithMaxIdleConnsPerHost(modelMaxIdleConnsPerHost),
			httpclient.WithRequestLogging(),
		),
	})
}

func newRunArchive(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage.RunArchive, error) {
	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s3Client.EnsureBucket(ensureCtx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	logger.Info("run archive ready", zap.String("bucket", cfg.S3Bucket))

	return storage.NewRunArchive(s3Client), nil
}
