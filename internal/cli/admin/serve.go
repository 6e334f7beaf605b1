package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/domenicocinque/web-rag/internal/api/handlers"
	"github.com/domenicocinque/web-rag/internal/app"
	"github.com/domenicocinque/web-rag/internal/config"
	"github.com/domenicocinque/web-rag/internal/jobs"
	"github.com/domenicocinque/web-rag/internal/logger"
	"github.com/domenicocinque/web-rag/internal/server"
	"github.com/domenicocinque/web-rag/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the web-rag API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides WEBRAG_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	log, err := logger.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	shutdownTelemetry := initTelemetry(cfg, log)
	defer shutdownTelemetry()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	rt, err := app.Build(ctx, cfg, log, app.Options{Migrate: !noMigrate, Archive: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	var sweepWorker *jobs.Worker
	if rt.Sweeper != nil {
		sweepWorker = jobs.NewWorker(jobs.NewSweepWorker(rt.Sweeper, cfg.StoreTTL, log), cfg.SweepInterval, log)
		go sweepWorker.Start(ctx)
	}

	routerCfg := server.RouterConfig{
		Logger:         log,
		APIPrefix:      cfg.APIPrefix,
		RequestTimeout: cfg.RequestTimeout,
		AnswerHandler:  handlers.NewAnswerHandler(rt.Pipeline),
	}
	if rt.Archive != nil {
		routerCfg.RunsHandler = handlers.NewRunsHandler(rt.Archive)
	}
	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.Port), zap.String("api_prefix", cfg.APIPrefix))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	if sweepWorker != nil {
		sweepWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

// initTelemetry starts Sentry when a DSN is configured. Failures only disable tracing.
func initTelemetry(cfg *config.Config, log *zap.Logger) func() {
	if !cfg.HasSentry() {
		return func() {}
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: telemetry.SampleRateFor(cfg.Environment),
		Debug:            cfg.Debug,
	}, log)
	if err != nil {
		log.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		return func() {}
	}
	return shutdown
}
