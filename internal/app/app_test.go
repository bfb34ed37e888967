package app_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"stocktracker/internal/app"
	"stocktracker/internal/config"
	"stocktracker/internal/provider/scrape"
	"stocktracker/internal/sentiment"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := app.NewLogger(config.Log{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "symbol", "AAPL")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
	require.Contains(t, buf.String(), `"symbol":"AAPL"`)
}

func TestNewLogger_TextFallsBackToInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := app.NewLogger(config.Log{Level: "loud", Format: "text"}, &buf)

	logger.Debug("hidden")
	logger.Info("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "msg=shown")
}

func TestBuild_WithoutKeys(t *testing.T) {
	t.Parallel()

	orch, err := app.Build(config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, err)
	require.NotNil(t, orch)
}

func TestBuild_WithKeys(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Market.AlphaVantageAPIKey = "av-key"
	cfg.News.NewsAPIKey = "news-key"
	cfg.Market.Recommendations = false

	orch, err := app.Build(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, err)
	require.NotNil(t, orch)
}

const yahooNewsPage = `<html><body><ul>
<li class="js-stream-content"><a href="/news/apple-earnings.html"><h3>Apple stock climbs after earnings</h3></a><p>Shares rose.</p></li>
</ul></body></html>`

const googleNewsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>AAPL</title>
<item><title>Apple shares hit a record</title><link>https://example.com/apple-record</link><pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate></item>
<item><title>Investors weigh Apple outlook</title><link>https://example.com/apple-outlook</link><pubDate>Mon, 01 Jan 2024 09:00:00 GMT</pubDate></item>
</channel></rss>`

func TestBuildNews_WithoutKeyConsultsEveryScraper(t *testing.T) {
	t.Parallel()

	// Arrange
	var yahooHits, googleHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/quote/AAPL/news", func(w http.ResponseWriter, _ *http.Request) {
		yahooHits.Add(1)
		_, _ = w.Write([]byte(yahooNewsPage))
	})
	mux.HandleFunc("/rss/search", func(w http.ResponseWriter, _ *http.Request) {
		googleHits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(googleNewsFeed))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.Default().News
	cfg.ExtractText = false
	cfg.ScrapeMinInterval = 0
	agg, err := app.BuildNews(cfg, sentiment.NewScorer(), slog.New(slog.NewTextHandler(io.Discard, nil)), scrape.WithBaseURL(srv.URL))
	require.NoError(t, err)

	// Act
	articles, err := agg.Fetch(t.Context(), "AAPL", "Apple Inc.", 3)

	// Assert
	require.NoError(t, err)
	require.EqualValues(t, 1, yahooHits.Load())
	require.EqualValues(t, 1, googleHits.Load())
	require.Len(t, articles, 3)
	require.Equal(t, srv.URL+"/news/apple-earnings.html", articles[0].URL)
	require.Equal(t, "https://example.com/apple-record", articles[1].URL)
}

func TestBuildNews_WithoutKeyFallsThroughFailingScraper(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/quote/AAPL/news", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/rss/search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(googleNewsFeed))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.Default().News
	cfg.ExtractText = false
	cfg.ScrapeMinInterval = 0
	agg, err := app.BuildNews(cfg, sentiment.NewScorer(), slog.New(slog.NewTextHandler(io.Discard, nil)), scrape.WithBaseURL(srv.URL))
	require.NoError(t, err)

	articles, err := agg.Fetch(t.Context(), "AAPL", "Apple Inc.", 5)

	require.NoError(t, err)
	require.Len(t, articles, 2)
}
