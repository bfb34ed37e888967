package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"stocktracker/internal/model"
	"stocktracker/internal/provider"
)

// GoogleNewsName is the provider name of the Google News RSS search.
const GoogleNewsName = "google-news"

// googleNewsMaxItems caps the items read from one feed.
const googleNewsMaxItems = 10

// GoogleNews searches the Google News RSS endpoint over the last week.
type GoogleNews struct {
	opts options
}

func NewGoogleNews(opts ...Option) *GoogleNews {
	return &GoogleNews{opts: newOptions("https://news.google.com", opts)}
}

func (g *GoogleNews) Name() string { return GoogleNewsName }

func (g *GoogleNews) Search(ctx context.Context, q provider.NewsQuery) ([]model.NewsArticle, error) {
	terms := string(q.Symbol)
	if name := strings.TrimSpace(q.CompanyName); name != "" {
		terms += " OR " + name
	}
	query := url.Values{}
	query.Set("q", terms+" when:7d")
	query.Set("hl", "en-US")
	query.Set("gl", "US")
	query.Set("ceid", "US:en")

	u := fmt.Sprintf("%s/rss/search?%s", g.opts.baseURL, query.Encode())
	body, err := g.opts.fetch(ctx, GoogleNewsName, "rss search", u)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	// gofeed parsers keep per-document state.
	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, &model.ProviderError{Provider: GoogleNewsName, Op: "rss search", Err: fmt.Errorf("parsing feed: %w", err)}
	}

	items := feed.Items
	if len(items) > googleNewsMaxItems {
		items = items[:googleNewsMaxItems]
	}
	out := make([]model.NewsArticle, 0, len(items))
	for _, item := range items {
		if item.Title == "" || item.Link == "" {
			continue
		}
		a := model.NewsArticle{
			Title:       collapse(item.Title),
			URL:         item.Link,
			Description: htmlText(item.Description),
			SourceName:  "Google News",
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = item.PublishedParsed.UTC()
		}
		out = append(out, a)
	}
	return out, nil
}

// htmlText flattens the HTML snippet Google puts in item descriptions.
func htmlText(s string) string {
	if !strings.ContainsRune(s, '<') {
		return collapse(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}
	return collapse(doc.Text())
}
