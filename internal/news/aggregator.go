// Package news gathers candidate articles from a ranked provider chain,
// keeps the relevant ones, fills in their text and scores them.
package news

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"stocktracker/internal/model"
	"stocktracker/internal/provider"
	"stocktracker/internal/sentiment"
)

// Aggregator is the news sub-pipeline.
type Aggregator struct {
	primary     provider.NewsProvider
	fallbacks   []provider.NewsProvider
	extractor   provider.TextExtractor
	filter      *RelevanceFilter
	scorer      *sentiment.Scorer
	concurrency int
	logger      *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithPrimary sets the keyed provider. Without one the fallbacks run first.
func WithPrimary(p provider.NewsProvider) Option {
	return func(a *Aggregator) {
		a.primary = p
	}
}

// WithFallbacks sets the keyless providers, in order.
func WithFallbacks(ps ...provider.NewsProvider) Option {
	return func(a *Aggregator) {
		a.fallbacks = ps
	}
}

// WithTextExtractor enables full-text download for kept articles.
func WithTextExtractor(e provider.TextExtractor) Option {
	return func(a *Aggregator) {
		a.extractor = e
	}
}

func WithFilter(f *RelevanceFilter) Option {
	return func(a *Aggregator) {
		a.filter = f
	}
}

func WithScorer(s *sentiment.Scorer) Option {
	return func(a *Aggregator) {
		a.scorer = s
	}
}

// WithConcurrency bounds parallel text downloads.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		filter:      NewRelevanceFilter(HeuristicExtractor{}),
		concurrency: 4,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.scorer == nil {
		a.scorer = sentiment.NewScorer()
	}
	return a
}

// Fetch returns up to count relevant articles in provider order, each with
// text and sentiment filled in. Fewer than count is a normal outcome. It
// fails only when every provider it tried returned an error.
func (a *Aggregator) Fetch(ctx context.Context, symbol model.Symbol, companyName string, count int) ([]model.NewsArticle, error) {
	if count <= 0 {
		return []model.NewsArticle{}, nil
	}
	q := provider.NewsQuery{Symbol: symbol, CompanyName: companyName, Limit: count}
	logger := a.logger.With("symbol", string(symbol))

	var (
		candidates []model.NewsArticle
		attempted  int
		errs       []error
	)
	search := func(p provider.NewsProvider) {
		attempted++
		start := time.Now()
		arts, err := p.Search(ctx, q)
		if err != nil {
			logger.Warn("news provider failed", "provider", p.Name(), "error", err)
			errs = append(errs, err)
			return
		}
		logger.Debug("news provider answered", "provider", p.Name(), "articles", len(arts), "duration", time.Since(start))
		candidates = append(candidates, arts...)
	}

	if a.primary != nil {
		search(a.primary)
	}
	if len(candidates) == 0 && len(a.fallbacks) > 0 {
		if a.primary != nil {
			logger.Info("news falling back to keyless sources")
		}
		for _, fb := range a.fallbacks {
			if len(dedupe(candidates)) >= count || ctx.Err() != nil {
				break
			}
			search(fb)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if attempted > 0 && len(errs) == attempted {
		return nil, &model.Failure{Stage: "news", Reason: "all news providers failed", Err: errors.Join(errs...)}
	}

	kept := a.selectRelevant(dedupe(candidates), companyName, symbol, count)
	if err := a.enrich(ctx, kept); err != nil {
		return nil, err
	}
	for i := range kept {
		s := a.scorer.Score(kept[i].ScoringText())
		kept[i].Sentiment = &s
	}
	logger.Debug("news selected", "candidates", len(candidates), "kept", len(kept))
	return kept, nil
}

func (a *Aggregator) selectRelevant(candidates []model.NewsArticle, companyName string, symbol model.Symbol, count int) []model.NewsArticle {
	kept := make([]model.NewsArticle, 0, count)
	for _, c := range candidates {
		if len(kept) == count {
			break
		}
		if !a.filter.IsRelevant(c, companyName, symbol) {
			continue
		}
		c.Relevant = true
		kept = append(kept, c)
	}
	return kept
}

// enrich downloads article bodies. A failed download falls back to the
// description and is not reported.
func (a *Aggregator) enrich(ctx context.Context, articles []model.NewsArticle) error {
	if a.extractor == nil {
		for i := range articles {
			articles[i].FullText = articles[i].Description
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range articles {
		g.Go(func() error {
			text, err := a.extractor.Extract(gctx, articles[i].URL)
			if err != nil || text == "" {
				a.logger.Debug("article text unavailable", "url", articles[i].URL, "error", err)
				text = articles[i].Description
			}
			articles[i].FullText = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// dedupe keeps the first article per URL.
func dedupe(articles []model.NewsArticle) []model.NewsArticle {
	seen := make(map[string]struct{}, len(articles))
	out := make([]model.NewsArticle, 0, len(articles))
	for _, art := range articles {
		if _, dup := seen[art.URL]; dup {
			continue
		}
		seen[art.URL] = struct{}{}
		out = append(out, art)
	}
	return out
}
