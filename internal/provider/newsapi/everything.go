package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stocktracker/internal/model"
	"stocktracker/internal/provider"
)

// Name is the provider name used in errors and records.
const Name = "newsapi"

type everythingResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Provider is the keyed primary news source.
type Provider struct {
	client *Client
}

func New(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string { return Name }

// SearchTerms renders the query: the quoted company name OR the symbol.
func SearchTerms(q provider.NewsQuery) string {
	name := strings.TrimSpace(strings.ReplaceAll(q.CompanyName, `"`, ""))
	if name == "" || strings.EqualFold(name, string(q.Symbol)) {
		return string(q.Symbol)
	}
	return fmt.Sprintf("%q OR %s", name, q.Symbol)
}

// Search queries /v2/everything. Removed articles are skipped.
func (p *Provider) Search(ctx context.Context, q provider.NewsQuery) ([]model.NewsArticle, error) {
	c := p.client
	query := url.Values{}
	query.Set("q", SearchTerms(q))
	query.Set("language", c.language)
	query.Set("sortBy", "publishedAt")
	query.Set("pageSize", strconv.Itoa(c.pageSize))

	u := fmt.Sprintf("%s/v2/everything?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: "search", Err: fmt.Errorf("performing request: %w", err)}
	}
	defer res.Body.Close()

	var body everythingResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 8<<20)).Decode(&body); err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: "search", StatusCode: res.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if res.StatusCode != http.StatusOK || body.Status != "ok" {
		return nil, &model.ProviderError{Provider: Name, Op: "search", StatusCode: res.StatusCode, Err: fmt.Errorf("%s: %s", body.Code, body.Message)}
	}

	out := make([]model.NewsArticle, 0, len(body.Articles))
	for _, a := range body.Articles {
		if a.URL == "" || a.Title == "" || a.Title == "[Removed]" {
			continue
		}
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		out = append(out, model.NewsArticle{
			Title:       strings.TrimSpace(a.Title),
			URL:         a.URL,
			Description: strings.TrimSpace(a.Description),
			SourceName:  a.Source.Name,
			PublishedAt: published.UTC(),
		})
	}
	return out, nil
}
