// Package fetcher downloads candidate URLs concurrently. A failed URL never
// aborts the batch; it is reported as a RawContent with OK set to false.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/domenicocinque/web-rag/internal/domain"
	"github.com/domenicocinque/web-rag/internal/httpclient"
)

const (
	DefaultWorkers = 5
	DefaultTimeout = 10 * time.Second

	acceptHeader = "text/html,application/xhtml+xml,text/plain;q=0.9,text/markdown;q=0.9,application/pdf;q=0.8,*/*;q=0.1"
)

var (
	ErrInvalidURL             = errors.New("invalid url")
	ErrUnsupportedContentType = errors.New("unsupported content type")
)

// SupportedContentTypes lists the media types the normalizer can convert.
var SupportedContentTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
	"text/plain":            true,
	"text/markdown":         true,
	"application/pdf":       true,
}

type Config struct {
	Workers    int
	Timeout    time.Duration
	Retries    uint
	RetryDelay time.Duration
}

type Fetcher struct {
	connector *httpclient.Connector
	cfg       Config
}

func New(connector *httpclient.Connector, cfg Config) *Fetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	return &Fetcher{connector: connector, cfg: cfg}
}

// FetchAll returns one RawContent per input URL, in input order.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []domain.RawContent {
	results := make([]domain.RawContent, len(urls))

	var g errgroup.Group
	g.SetLimit(f.cfg.Workers)

	for i, u := range urls {
		g.Go(func() error {
			results[i] = f.Fetch(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Fetch downloads one URL within the configured timeout.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) domain.RawContent {
	result := domain.RawContent{URL: rawURL}

	if err := validateURL(rawURL); err != nil {
		result.Err = err
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	resp, err := retry.DoWithData(func() (*httpclient.Response, error) {
		return f.connector.Get(ctx, "",
			httpclient.WithURL(rawURL),
			httpclient.WithHeader("Accept", acceptHeader),
		)
	},
		retry.Attempts(f.cfg.Retries+1),
		retry.Delay(f.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(httpclient.IsRetryable),
	)
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			result.StatusCode = httpErr.StatusCode
		}
		result.Err = err
		ctxzap.Debug(ctx, "fetch failed", zap.String("url", rawURL), zap.Error(err))
		return result
	}

	result.StatusCode = resp.StatusCode
	result.ContentType = resp.ContentType
	if result.ContentType == "" {
		result.ContentType = http.DetectContentType(resp.Body)
	}

	mediaType, _, err := mime.ParseMediaType(result.ContentType)
	if err != nil || !SupportedContentTypes[mediaType] {
		result.Err = fmt.Errorf("%w: %q", ErrUnsupportedContentType, result.ContentType)
		ctxzap.Debug(ctx, "fetch skipped", zap.String("url", rawURL), zap.Error(result.Err))
		return result
	}

	result.Body = resp.Body
	result.OK = true
	return result
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
