package scrape

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stocktracker/internal/model"
)

const extractorName = "article"

// minParagraphLen drops captions, bylines and buttons.
const minParagraphLen = 40

// Extractor downloads an article page and returns its paragraph text.
type Extractor struct {
	opts options
}

func NewExtractor(opts ...Option) *Extractor {
	return &Extractor{opts: newOptions("", opts)}
}

// Extract returns the paragraphs of the page's main content, joined by
// blank lines. A page with no usable paragraph yields ErrNoData.
func (e *Extractor) Extract(ctx context.Context, u string) (string, error) {
	body, err := e.opts.fetch(ctx, extractorName, "extract", u)
	if err != nil {
		return "", err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", &model.ProviderError{Provider: extractorName, Op: "extract", Err: fmt.Errorf("parsing html: %w", err)}
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	var paragraphs []string
	root.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := collapse(p.Text()); len(text) >= minParagraphLen {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return "", &model.ProviderError{Provider: extractorName, Op: "extract", Err: fmt.Errorf("%w: no article text", model.ErrNoData)}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
