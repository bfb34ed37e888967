// Package app builds the orchestrator and its providers from config. Both
// commands share it.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"stocktracker/internal/cache"
	"stocktracker/internal/config"
	"stocktracker/internal/httpx"
	"stocktracker/internal/marketdata"
	"stocktracker/internal/news"
	"stocktracker/internal/pipeline"
	"stocktracker/internal/provider"
	"stocktracker/internal/provider/alphavantage"
	"stocktracker/internal/provider/newsapi"
	"stocktracker/internal/provider/ratelimit"
	"stocktracker/internal/provider/scrape"
	"stocktracker/internal/provider/yahoo"
	"stocktracker/internal/sentiment"
)

// NewLogger returns a text or JSON slog logger at the configured level.
func NewLogger(cfg config.Log, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Build wires providers, rate limits, sub-pipelines and the cache into an
// Orchestrator. Providers whose API key is missing are left out.
func Build(cfg config.Config, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	scorer := sentiment.NewScorer()

	yh := yahoo.New(yahoo.NewClient(yahoo.WithHTTPClient(httpx.New(cfg.Market.HTTPTimeout)), yahoo.WithLogger(logger)))
	// Chart and recommendation calls share one Yahoo budget.
	yahooLimit := &ratelimit.MinInterval{Interval: cfg.Market.YahooMinInterval}

	market, err := buildMarket(cfg.Market, yh, yahooLimit, logger)
	if err != nil {
		return nil, err
	}
	newsAgg, err := BuildNews(cfg.News, scorer, logger)
	if err != nil {
		return nil, err
	}

	store := cache.New(cache.WithMaxItems(cfg.Cache.MaxItems), cache.WithLogger(logger))
	opts := []pipeline.Option{
		pipeline.WithCache(store),
		pipeline.WithTTLs(pipeline.TTLs{
			Market:          cfg.Cache.MarketTTL,
			News:            cfg.Cache.NewsTTL,
			Valuation:       cfg.Cache.ValuationTTL,
			Recommendations: cfg.Cache.RecommendationsTTL,
			Profile:         cfg.Cache.ProfileTTL,
		}),
		pipeline.WithNameResolver(yh),
		pipeline.WithSentiment(sentiment.NewAggregator(scorer, cfg.Sentiment.Thresholds)),
		pipeline.WithNewsCount(cfg.News.Count),
		pipeline.WithMaxAttempts(cfg.Market.MaxAttempts),
		pipeline.WithTimeout(cfg.Pipeline.Timeout),
		pipeline.WithLogger(logger),
	}
	if cfg.Market.Recommendations {
		opts = append(opts, pipeline.WithRecommendations(&ratelimit.Recommendations{P: yh, L: yahooLimit}))
	}
	return pipeline.New(market, newsAgg, opts...), nil
}

func buildMarket(cfg config.Market, yh *yahoo.Provider, yahooLimit ratelimit.Limiter, logger *slog.Logger) (*marketdata.Fetcher, error) {
	httpClient := httpx.New(cfg.HTTPTimeout)
	opts := []marketdata.Option{
		marketdata.WithRetry(cfg.MaxAttempts, cfg.BackoffBase, cfg.BackoffJitter),
		marketdata.WithLogger(logger),
	}

	if cfg.AlphaVantageAPIKey == "" {
		logger.Warn("alpha vantage api key not set; market fallback and valuation disabled")
	} else {
		client, err := alphavantage.NewClient(cfg.AlphaVantageAPIKey, alphavantage.WithHTTPClient(httpClient))
		if err != nil {
			return nil, fmt.Errorf("alpha vantage client: %w", err)
		}
		av := alphavantage.New(client)
		// The fallback and valuation endpoints share one free-tier budget.
		var limiter ratelimit.Limiter
		if cfg.AlphaVantageMaxRPM > 0 {
			limiter = ratelimit.PerMinute(cfg.AlphaVantageMaxRPM)
		}
		opts = append(opts, marketdata.WithFallback(&ratelimit.Market{P: av, L: limiter}))
		if cfg.Valuation {
			opts = append(opts, marketdata.WithValuation(&ratelimit.Valuation{P: av, L: limiter}))
		}
	}

	return marketdata.NewFetcher(&ratelimit.Market{P: yh, L: yahooLimit}, opts...), nil
}

// BuildNews wires the news sources. NewsAPI leads when keyed; otherwise
// both scrapers are fallbacks, consulted in order until count is met.
// scrapeOpts apply after the defaults.
func BuildNews(cfg config.News, scorer *sentiment.Scorer, logger *slog.Logger, scrapeOpts ...scrape.Option) (*news.Aggregator, error) {
	httpClient := httpx.New(cfg.HTTPTimeout)
	scrapeOpts = append([]scrape.Option{scrape.WithHTTPClient(httpClient)}, scrapeOpts...)
	scrapeLimit := &ratelimit.MinInterval{Interval: cfg.ScrapeMinInterval}

	scrapers := []provider.NewsProvider{
		&ratelimit.News{P: scrape.NewYahooNews(scrapeOpts...), L: scrapeLimit},
		&ratelimit.News{P: scrape.NewGoogleNews(scrapeOpts...), L: scrapeLimit},
	}

	var extractor news.EntityExtractor
	if cfg.Entities {
		extractor = news.HeuristicExtractor{}
	}
	opts := []news.Option{
		news.WithFilter(news.NewRelevanceFilter(extractor)),
		news.WithScorer(scorer),
		news.WithConcurrency(cfg.ExtractConcurrency),
		news.WithLogger(logger),
	}
	if cfg.ExtractText {
		opts = append(opts, news.WithTextExtractor(scrape.NewExtractor(scrapeOpts...)))
	}

	if cfg.NewsAPIKey == "" {
		logger.Warn("news api key not set; using scraped sources only")
		opts = append(opts, news.WithFallbacks(scrapers...))
		return news.NewAggregator(opts...), nil
	}

	client, err := newsapi.NewClient(cfg.NewsAPIKey,
		newsapi.WithHTTPClient(httpClient),
		newsapi.WithPageSize(cfg.PageSize),
		newsapi.WithLanguage(cfg.Language),
	)
	if err != nil {
		return nil, fmt.Errorf("news api client: %w", err)
	}
	var limiter ratelimit.Limiter
	if cfg.NewsAPIMaxRPM > 0 {
		limiter = ratelimit.PerMinute(cfg.NewsAPIMaxRPM)
	}
	opts = append(opts,
		news.WithPrimary(&ratelimit.News{P: newsapi.New(client), L: limiter}),
		news.WithFallbacks(scrapers...),
	)
	return news.NewAggregator(opts...), nil
}
