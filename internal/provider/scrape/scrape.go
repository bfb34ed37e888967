// Package scrape holds the keyless news sources and the article text
// extractor. They read public pages, so every failure is best effort.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"stocktracker/internal/httpx"
	"stocktracker/internal/model"
)

const maxPageBytes = 4 << 20

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type options struct {
	baseURL    string
	httpClient HTTPClient
	userAgent  string
}

// Option configures a scraper.
type Option func(*options)

// WithBaseURL overrides the site root (tests point it at httptest).
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithUserAgent overrides the browser user agent.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

func newOptions(baseURL string, opts []Option) options {
	o := options{baseURL: baseURL, httpClient: http.DefaultClient, userAgent: httpx.BrowserUserAgent}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// fetch GETs u and returns the open body. Callers must close it.
func (o options) fetch(ctx context.Context, provider, op, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", o.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	res, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Provider: provider, Op: op, Err: fmt.Errorf("performing request: %w", err)}
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, &model.ProviderError{Provider: provider, Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("unexpected status code")}
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(res.Body, maxPageBytes), res.Body}, nil
}
