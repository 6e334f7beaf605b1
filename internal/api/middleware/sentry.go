package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/domenicocinque/web-rag/internal/telemetry"
)

// SentryMiddleware opens one transaction per request on a cloned hub, so
// tags set while handling the request stay with it. Panics are reported and
// re-raised for the recoverer.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}
		ctx := sentry.SetHubOnContext(r.Context(), hub)

		var opts []sentry.SpanOption
		opts = append(opts, sentry.WithTransactionSource(sentry.SourceURL))
		if trace := r.Header.Get(sentry.SentryTraceHeader); trace != "" {
			opts = append(opts, sentry.ContinueFromHeaders(trace, r.Header.Get(sentry.SentryBaggageHeader)))
		}

		ctx, tx := telemetry.StartTransaction(ctx, r.Method+" "+r.URL.Path, "http.server", opts...)
		defer tx.End()
		r = r.WithContext(ctx)

		// The query string carries user questions, so only its presence is recorded.
		hub.Scope().SetContext("request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"has_query":   r.URL.RawQuery != "",
			"remote_addr": r.RemoteAddr,
		})

		if requestID := GetRequestID(ctx); requestID != "" {
			hub.Scope().SetTag("request_id", requestID)
			tx.SetTag("request_id", requestID)
		}
		if userAgent := r.UserAgent(); userAgent != "" {
			hub.Scope().SetTag("user_agent", userAgent)
		}

		defer func() {
			if err := recover(); err != nil {
				tx.SetStatus(sentry.SpanStatusInternalError)
				hub.RecoverWithContext(ctx, err)
				panic(err)
			}
		}()

		rec := &sentryResponseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		tx.SetStatus(httpStatusToSpanStatus(status))
		tx.SetData("http.response.status_code", status)

		// Pipeline failures are captured with their stage; this covers the rest.
		if status >= 500 {
			telemetry.CaptureMessage(ctx, fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)))
		}
	})
}

// httpStatusToSpanStatus converts HTTP status code to Sentry span status.
func httpStatusToSpanStatus(status int) sentry.SpanStatus {
	switch {
	case status >= 200 && status < 300:
		return sentry.SpanStatusOK
	case status == 400:
		return sentry.SpanStatusInvalidArgument
	case status == 404:
		return sentry.SpanStatusNotFound
	case status == 413:
		return sentry.SpanStatusResourceExhausted
	case status == 429:
		return sentry.SpanStatusResourceExhausted
	case status == 499:
		return sentry.SpanStatusCanceled
	case status >= 400 && status < 500:
		return sentry.SpanStatusInvalidArgument
	case status == 500:
		return sentry.SpanStatusInternalError
	case status == 502:
		return sentry.SpanStatusUnavailable
	case status == 503:
		return sentry.SpanStatusUnavailable
	case status == 504:
		return sentry.SpanStatusDeadlineExceeded
	case status >= 500:
		return sentry.SpanStatusInternalError
	default:
		return sentry.SpanStatusUnknown
	}
}

// sentryResponseRecorder wraps http.ResponseWriter to capture status code
type sentryResponseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *sentryResponseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *sentryResponseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
