package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Validate checks that values are usable. Missing API keys are not errors;
// they disable the matching provider.
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Server.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %q", c.Server.Port)
	}
	if c.Server.LookbackDays < 1 {
		return errors.New("server.lookback_days must be >= 1")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Market.MaxAttempts < 1 {
		return errors.New("market.max_attempts must be >= 1")
	}
	if c.Market.BackoffBase < 0 || c.Market.BackoffJitter < 0 {
		return errors.New("market.backoff_base and market.backoff_jitter must be >= 0")
	}
	if c.Market.AlphaVantageMaxRPM < 0 {
		return errors.New("market.alpha_vantage_max_rpm must be >= 0")
	}

	if c.News.Count < 1 {
		return errors.New("news.count must be >= 1")
	}
	if c.News.PageSize < c.News.Count {
		return fmt.Errorf("news.page_size (%d) must be >= news.count (%d)", c.News.PageSize, c.News.Count)
	}
	if c.News.ExtractConcurrency < 1 {
		return errors.New("news.extract_concurrency must be >= 1")
	}

	for name, ttl := range map[string]int64{
		"cache.market_ttl":          int64(c.Cache.MarketTTL),
		"cache.news_ttl":            int64(c.Cache.NewsTTL),
		"cache.valuation_ttl":       int64(c.Cache.ValuationTTL),
		"cache.recommendations_ttl": int64(c.Cache.RecommendationsTTL),
		"cache.profile_ttl":         int64(c.Cache.ProfileTTL),
	} {
		if ttl < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	if c.Cache.MaxItems < 0 {
		return errors.New("cache.max_items must be >= 0")
	}

	if err := c.Sentiment.Thresholds.Validate(); err != nil {
		return fmt.Errorf("sentiment.thresholds: %w", err)
	}
	if c.Pipeline.Timeout <= 0 {
		return errors.New("pipeline.timeout must be > 0")
	}

	if c.Prewarm.Enabled {
		if c.Prewarm.Schedule == "" {
			return errors.New("prewarm.schedule is required when prewarm is enabled")
		}
		if len(c.Prewarm.Symbols) == 0 {
			return errors.New("prewarm.symbols is required when prewarm is enabled")
		}
		if c.Prewarm.LookbackDays < 1 {
			return errors.New("prewarm.lookback_days must be >= 1")
		}
	}
	return nil
}
