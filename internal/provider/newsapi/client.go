package newsapi

import (
	"errors"
	"net/http"
)

const baseURL = "https://newsapi.org"

// ErrMissingKey is returned when the client is built without an API key.
var ErrMissingKey = errors.New("newsapi: missing api key")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=newsapi_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the NewsAPI v2 REST API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header carries the api key.
	header http.Header
	// language and pageSize are sent with every search.
	language string
	pageSize int
}

// ClientOption is a configuration option for the NewsAPI client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithPageSize sets how many candidates one search asks for.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLanguage sets the article language filter.
func WithLanguage(lang string) ClientOption {
	return func(c *Client) {
		c.language = lang
	}
}

// NewClient creates a new NewsAPI client.
func NewClient(key string, options ...ClientOption) (*Client, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		language:   "en",
		pageSize:   20,
	}
	c.header.Set("X-Api-Key", key)
	for _, option := range options {
		option(c)
	}
	return c, nil
}
