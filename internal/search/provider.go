// Package search resolves a text query into ranked candidate URLs using a
// web search backend.
package search

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"

	"github.com/domenicocinque/web-rag/internal/config"
	"github.com/domenicocinque/web-rag/internal/httpclient"
)

const (
	DefaultTopK = 10
	DefaultLang = "en"
)

// Provider returns at most topK URLs in rank order. Zero results is not an error.
// Failures of the backend are reported as SEARCH_UNAVAILABLE domain errors.
type Provider interface {
	Resolve(ctx context.Context, query string, topK int, lang string) ([]string, error)
}

type Config struct {
	Provider       string
	BaseURL        string
	GoogleAPIKey   string
	GoogleEngineID string
	Retry          []retry.Option
}

// NewProvider builds the backend named by cfg.Provider.
func NewProvider(cfg Config, connector *httpclient.Connector) (Provider, error) {
	switch cfg.Provider {
	case "", config.SearchProviderDuckDuckGo:
		return NewDuckDuckGo(connector, cfg.BaseURL, cfg.Retry...), nil
	case config.SearchProviderGoogle:
		if cfg.GoogleAPIKey == "" || cfg.GoogleEngineID == "" {
			return nil, fmt.Errorf("google search requires an API key and engine ID")
		}
		return NewGoogle(connector, cfg.BaseURL, cfg.GoogleAPIKey, cfg.GoogleEngineID, cfg.Retry...), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}

func normalizeArgs(topK int, lang string) (int, string) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if lang == "" {
		lang = DefaultLang
	}
	return topK, lang
}

func retryOptions(ctx context.Context, opts []retry.Option) []retry.Option {
	return append([]retry.Option{
		retry.Attempts(1),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(httpclient.IsRetryable),
	}, opts...)
}
