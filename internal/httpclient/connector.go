package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ErrBodyTooLarge is returned when a response exceeds the connector's byte limit.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

const maxErrorMessageBytes = 512

type Connector struct {
	baseURL      string
	httpClient   *http.Client
	maxBodyBytes int64
}

type ConnectorConfig struct {
	BaseURL string
	// MaxBodyBytes caps response bodies; zero means unlimited.
	MaxBodyBytes int64
}

func NewConnector(cfg ConnectorConfig, opts ...Option) *Connector {
	return NewConnectorWithClient(cfg, New(opts...))
}

func NewConnectorWithClient(cfg ConnectorConfig, client *http.Client) *Connector {
	return &Connector{
		baseURL:      cfg.BaseURL,
		httpClient:   client,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

type RequestOpt func(*requestConfig)

type requestConfig struct {
	headers     map[string]string
	query       url.Values
	overrideURL string
}

func WithHeader(key, value string) RequestOpt {
	return func(c *requestConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

func WithQuery(key, value string) RequestOpt {
	return func(c *requestConfig) {
		if c.query == nil {
			c.query = url.Values{}
		}
		c.query.Add(key, value)
	}
}

func WithURL(rawURL string) RequestOpt {
	return func(c *requestConfig) {
		c.overrideURL = rawURL
	}
}

// Response is a fully read HTTP response.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Get performs a GET and returns the raw body. Non-2xx statuses yield *HTTPError.
func (c *Connector) Get(ctx context.Context, endpoint string, opts ...RequestOpt) (*Response, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil, opts...)
}

// DoRequest sends reqBody as JSON and decodes a JSON response into respBody.
func (c *Connector) DoRequest(ctx context.Context, method, endpoint string, reqBody, respBody any, opts ...RequestOpt) error {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
		opts = append([]RequestOpt{WithHeader("Content-Type", "application/json")}, opts...)
	}
	opts = append([]RequestOpt{WithHeader("Accept", "application/json")}, opts...)

	resp, err := c.do(ctx, method, endpoint, bodyReader, opts...)
	if err != nil {
		return err
	}

	if respBody != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

func (c *Connector) do(ctx context.Context, method, endpoint string, body io.Reader, opts ...RequestOpt) (*Response, error) {
	cfg := &requestConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	target := c.baseURL + endpoint
	if cfg.overrideURL != "" {
		target = cfg.overrideURL
	}

	if len(cfg.query) > 0 {
		parsed, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}
		q := parsed.Query()
		for key, values := range cfg.query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		parsed.RawQuery = q.Encode()
		target = parsed.String()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, value := range cfg.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if c.maxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxBodyBytes+1)
	}

	bodyBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := bodyBytes
		if len(message) > maxErrorMessageBytes {
			message = message[:maxErrorMessageBytes]
		}
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(message),
		}
	}

	if c.maxBodyBytes > 0 && int64(len(bodyBytes)) > c.maxBodyBytes {
		return nil, ErrBodyTooLarge
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        bodyBytes,
	}, nil
}
