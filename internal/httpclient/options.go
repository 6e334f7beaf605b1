package httpclient

import (
	"net/http"
	"time"
)

type Option func(*config)

type TransportFunc func(http.RoundTripper) http.RoundTripper

type config struct {
	connectTimeout        time.Duration
	requestTimeout        time.Duration
	keepAlive             time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	idleConnTimeout       time.Duration
	maxIdleConns          int
	maxIdleConnsPerHost   int
	transports            []TransportFunc
}

func defaultConfig() *config {
	return &config{
		connectTimeout:        10 * time.Second,
		requestTimeout:        30 * time.Second,
		keepAlive:             90 * time.Second,
		tlsHandshakeTimeout:   10 * time.Second,
		responseHeaderTimeout: 10 * time.Second,
		idleConnTimeout:       90 * time.Second,
		maxIdleConns:          100,
		maxIdleConnsPerHost:   10,
	}
}

func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.connectTimeout = timeout
	}
}

// WithRequestTimeout sets http.Client.Timeout. Zero disables it and leaves
// deadlines to the request context.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.requestTimeout = timeout
	}
}

func WithResponseHeaderTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.responseHeaderTimeout = timeout
	}
}

func WithIdleConnTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.idleConnTimeout = timeout
	}
}

func WithMaxIdleConnsPerHost(maxConns int) Option {
	return func(c *config) {
		c.maxIdleConnsPerHost = maxConns
	}
}

func WithTransport(transport TransportFunc) Option {
	return func(c *config) {
		c.transports = append(c.transports, transport)
	}
}
