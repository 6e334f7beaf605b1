package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/domenicocinque/web-rag/internal/domain"
	"github.com/domenicocinque/web-rag/internal/httpclient"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/"

// ErrUnrecognizedResultsPage is returned when a 200 page carries neither
// results nor a no-results notice, as with bot challenge pages.
var ErrUnrecognizedResultsPage = errors.New("duckduckgo returned an unrecognized results page")

// DuckDuckGo scrapes the key-less HTML results page.
type DuckDuckGo struct {
	connector *httpclient.Connector
	baseURL   string
	retry     []retry.Option
}

func NewDuckDuckGo(connector *httpclient.Connector, baseURL string, opts ...retry.Option) *DuckDuckGo {
	if baseURL == "" {
		baseURL = duckDuckGoURL
	}
	return &DuckDuckGo{connector: connector, baseURL: baseURL, retry: opts}
}

func (d *DuckDuckGo) Resolve(ctx context.Context, query string, topK int, lang string) ([]string, error) {
	topK, lang = normalizeArgs(topK, lang)

	resp, err := retry.DoWithData(func() (*httpclient.Response, error) {
		return d.connector.Get(ctx, "",
			httpclient.WithURL(d.baseURL),
			httpclient.WithQuery("q", query),
			httpclient.WithQuery("kl", duckDuckGoRegion(lang)),
		)
	}, retryOptions(ctx, d.retry)...)
	if err != nil {
		return nil, domain.NewSearchUnavailableError(err)
	}
	// Rate-limited requests get 202 with a challenge page instead of results.
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewSearchUnavailableError(fmt.Errorf("duckduckgo answered with status %d", resp.StatusCode))
	}

	urls, err := parseDuckDuckGoResults(resp.Body)
	if err != nil {
		return nil, domain.NewSearchUnavailableError(err)
	}

	if len(urls) > topK {
		urls = urls[:topK]
	}

	ctxzap.Debug(ctx, "duckduckgo search resolved",
		zap.String("query", query),
		zap.Int("results", len(urls)),
	)

	return urls, nil
}

func duckDuckGoRegion(lang string) string {
	if lang == "en" {
		return "us-en"
	}
	return lang + "-" + lang
}

// parseDuckDuckGoResults extracts organic result links in page order. A page
// is only trusted when it has result links or an explicit no-results notice.
func parseDuckDuckGoResults(body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	urls := []string{}
	results, noResults := false, false
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				results = true
				if link := resolveDuckDuckGoLink(attr(n, "href")); link != "" {
					urls = append(urls, link)
				}
			case hasClass(n, "no-results"):
				noResults = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if !results && !noResults {
		return nil, ErrUnrecognizedResultsPage
	}
	return urls, nil
}

// resolveDuckDuckGoLink unwraps //duckduckgo.com/l/?uddg=<target> redirects
// and drops sponsored links.
func resolveDuckDuckGoLink(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	if strings.HasSuffix(parsed.Host, "duckduckgo.com") {
		if parsed.Path == "/y.js" {
			return ""
		}
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}

	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
