package httpclient

import (
	"net/http"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type logTransport struct {
	transport http.RoundTripper
}

func (t *logTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", redactedURL(req)),
	}
	if req.ContentLength > 0 {
		fields = append(fields, zap.Int64("payload_bytes", req.ContentLength))
	}

	resp, err := t.transport.RoundTrip(req)

	fields = append(fields, zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		ctxzap.Debug(ctx, "HTTP outbound request failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	ctxzap.Debug(ctx, "HTTP outbound request", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}

// redactedURL drops the query string, which may carry API keys.
func redactedURL(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}

// WithRequestLogging logs method, URL, status and latency of each outbound request
// through the logger stored in the request context.
func WithRequestLogging() Option {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &logTransport{transport: rt}
	})
}
