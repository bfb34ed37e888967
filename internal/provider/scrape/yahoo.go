package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stocktracker/internal/model"
	"stocktracker/internal/provider"
)

// YahooNewsName is the provider name of the quote news page scraper.
const YahooNewsName = "yahoo-news"

// YahooNews scrapes the stream on finance.yahoo.com/quote/<SYM>/news.
type YahooNews struct {
	opts options
}

func NewYahooNews(opts ...Option) *YahooNews {
	return &YahooNews{opts: newOptions("https://finance.yahoo.com", opts)}
}

func (y *YahooNews) Name() string { return YahooNewsName }

func (y *YahooNews) Search(ctx context.Context, q provider.NewsQuery) ([]model.NewsArticle, error) {
	u := fmt.Sprintf("%s/quote/%s/news", y.opts.baseURL, url.PathEscape(string(q.Symbol)))
	body, err := y.opts.fetch(ctx, YahooNewsName, "news page", u)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &model.ProviderError{Provider: YahooNewsName, Op: "news page", Err: fmt.Errorf("parsing html: %w", err)}
	}

	var out []model.NewsArticle
	doc.Find("li.js-stream-content, li.stream-item").Each(func(_ int, item *goquery.Selection) {
		title := collapse(item.Find("h3").First().Text())
		href, ok := item.Find("a[href]").First().Attr("href")
		if title == "" || !ok || href == "" {
			return
		}
		out = append(out, model.NewsArticle{
			Title:       title,
			URL:         y.absolute(href),
			Description: collapse(item.Find("p").First().Text()),
			SourceName:  "Yahoo Finance",
		})
	})
	return out, nil
}

func (y *YahooNews) absolute(href string) string {
	if strings.HasPrefix(href, "/") {
		return y.opts.baseURL + href
	}
	return href
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
