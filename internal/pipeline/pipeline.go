// Package pipeline composes the market and news sub-pipelines behind the
// shared cache into one "everything for symbol X over range Y" call.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stocktracker/internal/cache"
	"stocktracker/internal/model"
	"stocktracker/internal/provider"
	"stocktracker/internal/sentiment"
)

// MarketFetcher is the market sub-pipeline.
type MarketFetcher interface {
	Fetch(ctx context.Context, symbol model.Symbol, r model.DateRange, maxAttempts int) (model.MarketData, error)
	Valuation(ctx context.Context, symbol model.Symbol, latestPrice float64) (model.Valuation, error)
	HasValuation() bool
}

// NewsFetcher is the news sub-pipeline.
type NewsFetcher interface {
	Fetch(ctx context.Context, symbol model.Symbol, companyName string, count int) ([]model.NewsArticle, error)
}

// TTLs are the cache lifetimes per key kind.
type TTLs struct {
	Market          time.Duration
	News            time.Duration
	Valuation       time.Duration
	Recommendations time.Duration
	Profile         time.Duration
}

// DefaultTTLs caches everything for an hour and company names for a day.
func DefaultTTLs() TTLs {
	return TTLs{
		Market:          time.Hour,
		News:            time.Hour,
		Valuation:       time.Hour,
		Recommendations: time.Hour,
		Profile:         24 * time.Hour,
	}
}

// Orchestrator runs both sub-pipelines concurrently through the cache.
type Orchestrator struct {
	market      MarketFetcher
	news        NewsFetcher
	sentiment   *sentiment.Aggregator
	names       provider.NameResolver
	recs        provider.RecommendationProvider
	cache       *cache.Store
	ttls        TTLs
	newsCount   int
	maxAttempts int
	timeout     time.Duration
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithCache(s *cache.Store) Option {
	return func(o *Orchestrator) {
		o.cache = s
	}
}

func WithTTLs(t TTLs) Option {
	return func(o *Orchestrator) {
		o.ttls = t
	}
}

// WithNameResolver resolves company names for requests that carry none.
func WithNameResolver(r provider.NameResolver) Option {
	return func(o *Orchestrator) {
		o.names = r
	}
}

// WithRecommendations adds the analyst recommendation trend to reports.
func WithRecommendations(p provider.RecommendationProvider) Option {
	return func(o *Orchestrator) {
		o.recs = p
	}
}

func WithSentiment(a *sentiment.Aggregator) Option {
	return func(o *Orchestrator) {
		o.sentiment = a
	}
}

// WithNewsCount sets how many relevant articles are collected.
func WithNewsCount(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.newsCount = n
		}
	}
}

// WithMaxAttempts sets the primary market provider's attempt budget.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		o.maxAttempts = n
	}
}

// WithTimeout bounds a whole request; both sub-pipelines share it.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func New(market MarketFetcher, news NewsFetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		market:    market,
		news:      news,
		ttls:      DefaultTTLs(),
		newsCount: 10,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = cache.New(cache.WithLogger(o.logger))
	}
	if o.sentiment == nil {
		o.sentiment = sentiment.NewAggregator(sentiment.NewScorer(), sentiment.DefaultThresholds())
	}
	return o
}

// Run validates the request, then fetches market data and news with
// sentiment concurrently. It returns an error only for invalid input
// (*model.InputError, before any cache or provider is touched) or when the
// request runs out of time (*model.Failure); sub-pipeline failures are
// reported inside the Report.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Report, error) {
	symbol, err := model.ParseSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	r, err := model.NewDateRange(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	logger := o.logger.With("request_id", uuid.NewString(), "symbol", string(symbol))
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	report := &Report{Symbol: symbol, Range: r}

	var g errgroup.Group
	g.Go(func() error {
		o.runMarket(ctx, logger, symbol, r, report)
		return nil
	})
	g.Go(func() error {
		o.runNews(ctx, logger, symbol, req.CompanyName, report)
		return nil
	})
	if o.recs != nil {
		g.Go(func() error {
			o.runRecommendations(ctx, logger, symbol, report)
			return nil
		})
	}
	_ = g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil && interrupted(report, ctxErr) {
		logger.Warn("request aborted", "error", ctxErr, "duration", time.Since(start))
		return nil, &model.Failure{Stage: "pipeline", Reason: "request deadline exceeded or canceled", Err: ctxErr}
	}
	logger.Info("request done",
		"range", r.Key(),
		"market_ok", report.Market.OK(),
		"news_ok", report.News.OK(),
		"articles", len(report.News.Value),
		"duration", time.Since(start),
	)
	return report, nil
}

func (o *Orchestrator) runMarket(ctx context.Context, logger *slog.Logger, symbol model.Symbol, r model.DateRange, report *Report) {
	md, err := cache.GetOrCompute(ctx, o.cache, cache.MarketKey(symbol, r), o.ttls.Market, func(ctx context.Context) (model.MarketData, error) {
		return o.market.Fetch(ctx, symbol, r, o.maxAttempts)
	})
	report.Market = Outcome[model.MarketData]{Value: md, Err: err}
	if err != nil {
		logger.Warn("market data failed", "error", err)
	}
	if !o.market.HasValuation() {
		return
	}

	var v model.Valuation
	switch {
	case err != nil:
		err = &model.Failure{Stage: "valuation", Reason: "market data unavailable", Err: err}
	case !md.Fundamentals.LatestPrice.Valid:
		err = &model.Failure{Stage: "valuation", Reason: "latest price unknown"}
	default:
		price := md.Fundamentals.LatestPrice.Float64
		v, err = cache.GetOrCompute(ctx, o.cache, cache.ValuationKey(symbol), o.ttls.Valuation, func(ctx context.Context) (model.Valuation, error) {
			return o.market.Valuation(ctx, symbol, price)
		})
		if err != nil {
			logger.Warn("valuation failed", "error", err)
		}
	}
	report.Valuation = &Outcome[model.Valuation]{Value: v, Err: err}
}

// newsEntry is cached as one value so the articles and their aggregate
// always describe the same set.
type newsEntry struct {
	CompanyName string
	Articles    []model.NewsArticle
	Sentiment   model.AggregateSentiment
}

func (o *Orchestrator) runNews(ctx context.Context, logger *slog.Logger, symbol model.Symbol, companyName string, report *Report) {
	entry, err := cache.GetOrCompute(ctx, o.cache, cache.NewsKey(symbol), o.ttls.News, func(ctx context.Context) (newsEntry, error) {
		name := companyName
		if name == "" {
			name = o.resolveName(ctx, logger, symbol)
		}
		articles, err := o.news.Fetch(ctx, symbol, name, o.newsCount)
		if err != nil {
			return newsEntry{}, err
		}
		return newsEntry{CompanyName: name, Articles: articles, Sentiment: o.sentiment.Aggregate(articles)}, nil
	})
	if err != nil {
		logger.Warn("news failed", "error", err)
		report.CompanyName = companyName
		if report.CompanyName == "" {
			report.CompanyName = string(symbol)
		}
		report.News = Outcome[[]model.NewsArticle]{Err: err}
		report.Sentiment = Outcome[model.AggregateSentiment]{Err: &model.Failure{Stage: "sentiment", Reason: "news unavailable", Err: err}}
		return
	}
	report.CompanyName = entry.CompanyName
	if companyName != "" {
		report.CompanyName = companyName
	}
	report.News = Outcome[[]model.NewsArticle]{Value: entry.Articles}
	report.Sentiment = Outcome[model.AggregateSentiment]{Value: entry.Sentiment}
}

func (o *Orchestrator) runRecommendations(ctx context.Context, logger *slog.Logger, symbol model.Symbol, report *Report) {
	recs, err := cache.GetOrCompute(ctx, o.cache, cache.RecommendationsKey(symbol), o.ttls.Recommendations, func(ctx context.Context) ([]model.RecommendationTrend, error) {
		recs, err := o.recs.FetchRecommendations(ctx, symbol)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &model.Failure{Stage: "recommendations", Reason: "recommendation provider failed", Err: err}
		}
		return recs, nil
	})
	if err != nil {
		logger.Warn("recommendations failed", "error", err)
	}
	report.Recommendations = &Outcome[[]model.RecommendationTrend]{Value: recs, Err: err}
}

// resolveName looks the company name up, falling back to the symbol. It
// runs only when the news entry is recomputed, so the result lives as long
// as that entry. Lookup failures are not cached.
func (o *Orchestrator) resolveName(ctx context.Context, logger *slog.Logger, symbol model.Symbol) string {
	if o.names == nil {
		return string(symbol)
	}
	name, err := cache.GetOrCompute(ctx, o.cache, cache.ProfileKey(symbol), o.ttls.Profile, func(ctx context.Context) (string, error) {
		return o.names.LookupName(ctx, symbol)
	})
	if err != nil || name == "" {
		logger.Debug("company name unresolved, using symbol", "error", err)
		return string(symbol)
	}
	return name
}

// interrupted reports whether any part failed because the request context
// ended, as opposed to finishing just before the deadline.
func interrupted(report *Report, ctxErr error) bool {
	errs := []error{report.Market.Err, report.News.Err, report.Sentiment.Err}
	if report.Valuation != nil {
		errs = append(errs, report.Valuation.Err)
	}
	if report.Recommendations != nil {
		errs = append(errs, report.Recommendations.Err)
	}
	for _, err := range errs {
		if err != nil && errors.Is(err, ctxErr) {
			return true
		}
	}
	return false
}
