// Package logger builds the zap loggers used across the service and
// carries request and run scoped loggers through context.
package logger

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger, or a console development logger when debug is set.
func New(level string, debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// ToContext stores logger, extended with fields, in ctx.
func ToContext(ctx context.Context, logger *zap.Logger, fields ...zap.Field) context.Context {
	if len(fields) > 0 {
		logger = logger.With(fields...)
	}
	return ctxzap.ToContext(ctx, logger)
}

// FromContext returns the logger stored in ctx or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return ctxzap.Extract(ctx)
}
