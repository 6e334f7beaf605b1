package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domenicocinque/web-rag/internal/domain"
	"github.com/domenicocinque/web-rag/internal/httpclient"
)

const duckDuckGoPage = `<!DOCTYPE html>
<html><body>
<div class="result results_links_deep result--ad">
  <a class="result__a" href="//duckduckgo.com/y.js?ad_provider=x&u3=https%3A%2F%2Fads.example.com">Ad</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fen.wikipedia.org%2Fwiki%2FParis&amp;rut=abc">Paris - Wikipedia</a>
  <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fen.wikipedia.org%2Fwiki%2FParis">snippet</a>
</div>
<div class="result">
  <a class="result__a" href="https://www.britannica.com/place/Paris">Paris | Britannica</a>
</div>
<div class="result">
  <a class="result__a" href="https://en.wikipedia.org/wiki/Paris">Duplicate</a>
</div>
</body></html>`

func TestParseDuckDuckGoResults(t *testing.T) {
	urls, err := parseDuckDuckGoResults([]byte(duckDuckGoPage))

	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://en.wikipedia.org/wiki/Paris",
		"https://www.britannica.com/place/Paris",
		"https://en.wikipedia.org/wiki/Paris",
	}, urls, "ads dropped, order kept, no de-duplication")
}

func TestParseDuckDuckGoResults_NoResults(t *testing.T) {
	urls, err := parseDuckDuckGoResults([]byte(`<html><body><div class="no-results">No results.</div></body></html>`))

	require.NoError(t, err)
	assert.NotNil(t, urls)
	assert.Empty(t, urls)
}

func TestDuckDuckGo_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "capital of France", r.URL.Query().Get("q"))
		assert.Equal(t, "us-en", r.URL.Query().Get("kl"))
		w.Write([]byte(duckDuckGoPage))
	}))
	defer srv.Close()

	provider := NewDuckDuckGo(httpclient.NewConnector(httpclient.ConnectorConfig{}), srv.URL)

	urls, err := provider.Resolve(context.Background(), "capital of France", 2, "en")

	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://en.wikipedia.org/wiki/Paris",
		"https://www.britannica.com/place/Paris",
	}, urls)
}

func TestParseDuckDuckGoResults_ChallengePage(t *testing.T) {
	page := `<html><body><div class="anomaly-modal__title">Unfortunately, bots use DuckDuckGo too.</div>
<form id="challenge-form" action="/anomaly.js"></form></body></html>`

	urls, err := parseDuckDuckGoResults([]byte(page))

	assert.Nil(t, urls)
	assert.ErrorIs(t, err, ErrUnrecognizedResultsPage)
}

func TestDuckDuckGo_Resolve_NoResultsIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="results"><div class="no-results">No results.</div></div></body></html>`))
	}))
	defer srv.Close()

	provider := NewDuckDuckGo(httpclient.NewConnector(httpclient.ConnectorConfig{}), srv.URL)

	urls, err := provider.Resolve(context.Background(), "zzqxv", 10, "en")

	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestDuckDuckGo_Resolve_Blocked(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{
			name:   "202 rate limit",
			status: http.StatusAccepted,
			body:   `<html><body><div class="results"><div class="no-results">No results.</div></div></body></html>`,
		},
		{
			name:   "challenge page",
			status: http.StatusOK,
			body:   `<html><body><div class="anomaly-modal__title">Select all squares containing a duck</div></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			provider := NewDuckDuckGo(httpclient.NewConnector(httpclient.ConnectorConfig{}), srv.URL)

			urls, err := provider.Resolve(context.Background(), "capital of France", 10, "en")

			assert.Nil(t, urls)
			require.Error(t, err)
			assert.True(t, domain.IsCode(err, domain.ErrCodeSearchUnavailable))
		})
	}
}

func TestDuckDuckGo_Resolve_Unavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	provider := NewDuckDuckGo(
		httpclient.NewConnector(httpclient.ConnectorConfig{}),
		srv.URL,
		retry.Attempts(2), retry.Delay(time.Millisecond),
	)

	urls, err := provider.Resolve(context.Background(), "anything", 10, "en")

	assert.Nil(t, urls)
	assert.True(t, domain.IsCode(err, domain.ErrCodeSearchUnavailable))
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolveDuckDuckGoLink(t *testing.T) {
	assert.Equal(t, "", resolveDuckDuckGoLink(""))
	assert.Equal(t, "https://go.dev/", resolveDuckDuckGoLink("https://go.dev/"))
	assert.Equal(t, "https://go.dev/doc", resolveDuckDuckGoLink("//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc"))
	assert.Equal(t, "", resolveDuckDuckGoLink("//duckduckgo.com/y.js?u3=x"))
	assert.Equal(t, "", resolveDuckDuckGoLink("https://duckduckgo.com/about"))
}

func TestDuckDuckGoRegion(t *testing.T) {
	assert.Equal(t, "us-en", duckDuckGoRegion("en"))
	assert.Equal(t, "it-it", duckDuckGoRegion("it"))
}
