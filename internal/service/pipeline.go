package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/domenicocinque/web-rag/internal/domain"
	"github.com/domenicocinque/web-rag/internal/telemetry"
	"github.com/domenicocinque/web-rag/internal/vectorstore"
)

const storeCloseTimeout = 10 * time.Second

// SearchProvider resolves a query into ranked candidate URLs.
type SearchProvider interface {
	Resolve(ctx context.Context, query string, topK int, lang string) ([]string, error)
}

// ContentFetcher downloads every URL and reports one result per input.
type ContentFetcher interface {
	FetchAll(ctx context.Context, urls []string) []domain.RawContent
}

type DocumentNormalizer interface {
	Normalize(ctx context.Context, raws []domain.RawContent) []domain.Document
}

type DocumentCleaner interface {
	CleanDocuments(docs []domain.Document) []domain.Document
}

type DocumentSplitter interface {
	SplitDocuments(docs []domain.Document) []domain.Chunk
}

type QueryRewriter interface {
	Rewrite(ctx context.Context, question string) (string, error)
}

type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.Chunk, error)
}

type ChunkRetriever interface {
	Retrieve(ctx context.Context, store vectorstore.Store, question string) ([]domain.ScoredChunk, error)
}

type AnswerGenerator interface {
	Answer(ctx context.Context, question string, chunks []domain.ScoredChunk) (string, error)
}

// RunArchiver persists finished run reports. Archiving failures never fail a run.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, report *RunReport) error
}

// PipelineDeps are the components a pipeline runs, in stage order.
type PipelineDeps struct {
	Rewriter   QueryRewriter
	Search     SearchProvider
	Fetcher    ContentFetcher
	Normalizer DocumentNormalizer
	Cleaner    DocumentCleaner
	Splitter   DocumentSplitter
	Embedder   ChunkEmbedder
	Stores     vectorstore.Factory
	Retriever  ChunkRetriever
	Generator  AnswerGenerator
	Archiver   RunArchiver
}

type PipelineConfig struct {
	SearchTopK int
	SearchLang string
}

// Pipeline answers a question from freshly searched web content. Each run
// gets its own vector store, discarded when the run ends.
type Pipeline struct {
	deps     PipelineDeps
	cfg      PipelineConfig
	newRunID func() string
	now      func() time.Time
}

func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		deps:     deps,
		cfg:      cfg,
		newRunID: uuid.NewString,
		now:      time.Now,
	}
}

// Answer runs the pipeline and returns only the generated reply.
func (p *Pipeline) Answer(ctx context.Context, query string) (string, error) {
	report, err := p.Run(ctx, query)
	if err != nil {
		return "", err
	}
	return report.Answer, nil
}

// Run executes every stage in order. A failure stops the run and is
// returned as a *domain.StageError naming the stage.
func (p *Pipeline) Run(ctx context.Context, query string) (*RunReport, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	runID := p.newRunID()
	startedAt := p.now()
	report := newRunReport(runID, query, startedAt)

	ctx = ctxzap.ToContext(ctx, ctxzap.Extract(ctx).With(zap.String("run_id", runID)))
	ctx, span := telemetry.StartSpan(ctx, "pipeline.run", telemetry.SpanAttributes{RunID: runID, Operation: "run"})
	defer span.End()

	ctxzap.Info(ctx, "pipeline run started", zap.String("query", query))

	err := p.run(ctx, report)
	report.DurationMS = p.now().Sub(startedAt).Milliseconds()

	if err != nil {
		code := domain.CodeOf(err)
		ctxzap.Error(ctx, "pipeline run failed",
			zap.String("stage", string(domain.StageOf(err))),
			zap.String("code", code),
			zap.Error(err),
		)
		if code != domain.ErrCodeCanceled {
			span.SetError(err)
			telemetry.CaptureError(ctx, err, map[string]string{
				"run_id": runID,
				"stage":  string(domain.StageOf(err)),
				"code":   code,
			})
		}
		return nil, err
	}

	ctxzap.Info(ctx, "pipeline run finished",
		zap.Int("urls", len(report.URLs)),
		zap.Int("chunks", report.Chunks),
		zap.Int("sources", len(report.Sources)),
		zap.Int64("duration_ms", report.DurationMS),
	)

	if p.deps.Archiver != nil {
		if err := p.deps.Archiver.ArchiveRun(ctx, report); err != nil {
			ctxzap.Warn(ctx, "failed to archive run report", zap.Error(err))
		}
	}

	return report, nil
}

func (p *Pipeline) run(ctx context.Context, report *RunReport) error {
	store, err := p.deps.Stores.New(ctx, report.RunID)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to create vector store", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeCloseTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			ctxzap.Warn(ctx, "failed to discard run store", zap.Error(err))
		}
	}()

	var (
		rewritten string
		urls      []string
		raws      []domain.RawContent
		docs      []domain.Document
		chunks    []domain.Chunk
		retrieved []domain.ScoredChunk
		answer    string
	)

	stages := []struct {
		stage domain.Stage
		fn    func(ctx context.Context) (int, error)
	}{
		{domain.StageRewriting, func(ctx context.Context) (int, error) {
			rewritten, err = p.deps.Rewriter.Rewrite(ctx, report.Query)
			report.RewrittenQuery = rewritten
			return 1, err
		}},
		{domain.StageSearching, func(ctx context.Context) (int, error) {
			found, err := p.deps.Search.Resolve(ctx, rewritten, p.cfg.SearchTopK, p.cfg.SearchLang)
			if err != nil {
				return 0, err
			}
			urls = dedupeURLs(found)
			report.URLs = urls
			return len(urls), nil
		}},
		{domain.StageFetching, func(ctx context.Context) (int, error) {
			raws = p.deps.Fetcher.FetchAll(ctx, urls)
			for _, raw := range raws {
				if raw.OK {
					report.Fetched++
				}
			}
			return report.Fetched, nil
		}},
		{domain.StageNormalizing, func(ctx context.Context) (int, error) {
			docs = p.deps.Normalizer.Normalize(ctx, raws)
			return len(docs), nil
		}},
		{domain.StageCleaning, func(ctx context.Context) (int, error) {
			docs = p.deps.Cleaner.CleanDocuments(docs)
			report.Documents = len(docs)
			return len(docs), nil
		}},
		{domain.StageSplitting, func(ctx context.Context) (int, error) {
			chunks = p.deps.Splitter.SplitDocuments(docs)
			report.Chunks = len(chunks)
			return len(chunks), nil
		}},
		{domain.StageEmbedding, func(ctx context.Context) (int, error) {
			chunks, err = p.deps.Embedder.EmbedChunks(ctx, chunks)
			return len(chunks), err
		}},
		{domain.StageWriting, func(ctx context.Context) (int, error) {
			return len(chunks), store.Write(ctx, chunks)
		}},
		{domain.StageRetrieving, func(ctx context.Context) (int, error) {
			retrieved, err = p.deps.Retriever.Retrieve(ctx, store, report.Query)
			report.Sources = sourcesOf(retrieved)
			return len(retrieved), err
		}},
		{domain.StageGenerating, func(ctx context.Context) (int, error) {
			answer, err = p.deps.Generator.Answer(ctx, report.Query, retrieved)
			report.Answer = answer
			return 1, err
		}},
	}

	for _, s := range stages {
		if err := p.runStage(ctx, report, s.stage, s.fn); err != nil {
			return err
		}
	}

	report.Stages = append(report.Stages, StageReport{Stage: domain.StageDone})
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, report *RunReport, stage domain.Stage, fn func(ctx context.Context) (int, error)) error {
	if err := ctx.Err(); err != nil {
		return &domain.StageError{Stage: stage, Err: domain.NewContextError(err)}
	}

	stageCtx := ctxzap.ToContext(ctx, ctxzap.Extract(ctx).With(zap.String("stage", string(stage))))
	stageCtx, span := telemetry.StartSpan(stageCtx, "pipeline."+string(stage), telemetry.SpanAttributes{
		RunID: report.RunID,
		Stage: string(stage),
	})
	defer span.End()

	start := p.now()
	count, err := fn(stageCtx)
	duration := p.now().Sub(start)

	span.SetData("count", count)
	report.Stages = append(report.Stages, StageReport{
		Stage:      stage,
		Count:      count,
		DurationMS: duration.Milliseconds(),
	})

	if ctxErr := ctx.Err(); ctxErr != nil && !isContextCode(err) {
		cause := ctxErr
		if err != nil && !errors.Is(err, ctxErr) {
			cause = errors.Join(ctxErr, err)
		}
		err = domain.NewContextError(cause)
	}
	if err != nil {
		return &domain.StageError{Stage: stage, Err: err}
	}

	telemetry.AddBreadcrumb(ctx, "pipeline", string(stage), map[string]any{
		"count":       count,
		"duration_ms": duration.Milliseconds(),
	})
	ctxzap.Debug(stageCtx, "stage completed",
		zap.Int("count", count),
		zap.Duration("duration", duration),
	)
	return nil
}

func isContextCode(err error) bool {
	return domain.IsCode(err, domain.ErrCodeCanceled) || domain.IsCode(err, domain.ErrCodeTimeout)
}
