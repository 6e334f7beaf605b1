package httpclient

import "net/http"

type headerTransport struct {
	key       string
	value     string
	transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(t.key) != "" {
		return t.transport.RoundTrip(req)
	}
	reqCopy := req.Clone(req.Context())
	reqCopy.Header.Set(t.key, t.value)
	return t.transport.RoundTrip(reqCopy)
}

// WithDefaultHeader sets a header on every request that does not already carry it.
func WithDefaultHeader(key, value string) Option {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &headerTransport{key: key, value: value, transport: rt}
	})
}

func WithUserAgent(userAgent string) Option {
	return WithDefaultHeader("User-Agent", userAgent)
}
