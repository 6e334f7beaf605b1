package search

import (
	"context"
	"net/http"
	"strconv"

	"github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/domenicocinque/web-rag/internal/domain"
	"github.com/domenicocinque/web-rag/internal/httpclient"
)

const (
	googleSearchURL = "https://www.googleapis.com/customsearch/v1"
	// The Custom Search API returns at most 10 items per page.
	googlePageSize = 10
)

// Google queries the Custom Search JSON API.
type Google struct {
	connector *httpclient.Connector
	baseURL   string
	apiKey    string
	engineID  string
	retry     []retry.Option
}

type googleResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
}

func NewGoogle(connector *httpclient.Connector, baseURL, apiKey, engineID string, opts ...retry.Option) *Google {
	if baseURL == "" {
		baseURL = googleSearchURL
	}
	return &Google{
		connector: connector,
		baseURL:   baseURL,
		apiKey:    apiKey,
		engineID:  engineID,
		retry:     opts,
	}
}

func (g *Google) Resolve(ctx context.Context, query string, topK int, lang string) ([]string, error) {
	topK, lang = normalizeArgs(topK, lang)

	urls := []string{}
	for start := 1; len(urls) < topK; start += googlePageSize {
		num := min(googlePageSize, topK-len(urls))

		page, err := g.page(ctx, query, lang, start, num)
		if err != nil {
			return nil, domain.NewSearchUnavailableError(err)
		}
		urls = append(urls, page...)

		if len(page) < num {
			break
		}
	}

	if len(urls) > topK {
		urls = urls[:topK]
	}

	ctxzap.Debug(ctx, "google search resolved",
		zap.String("query", query),
		zap.Int("results", len(urls)),
	)

	return urls, nil
}

func (g *Google) page(ctx context.Context, query, lang string, start, num int) ([]string, error) {
	var resp googleResponse
	err := retry.Do(func() error {
		return g.connector.DoRequest(ctx, http.MethodGet, "", nil, &resp,
			httpclient.WithURL(g.baseURL),
			httpclient.WithQuery("key", g.apiKey),
			httpclient.WithQuery("cx", g.engineID),
			httpclient.WithQuery("q", query),
			httpclient.WithQuery("num", strconv.Itoa(num)),
			httpclient.WithQuery("start", strconv.Itoa(start)),
			httpclient.WithQuery("lr", "lang_"+lang),
			httpclient.WithQuery("hl", lang),
		)
	}, retryOptions(ctx, g.retry)...)
	if err != nil {
		return nil, err
	}

	links := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Link != "" {
			links = append(links, item.Link)
		}
	}
	return links, nil
}
