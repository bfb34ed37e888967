package provider

import (
	"context"

	"stocktracker/internal/model"
)

// MarketProvider returns prices and fundamentals for one symbol and range,
// already normalized into the shared schema.
type MarketProvider interface {
	Name() string
	FetchMarket(ctx context.Context, symbol model.Symbol, r model.DateRange) (model.MarketData, error)
}

// NewsQuery describes one news search.
type NewsQuery struct {
	Symbol      model.Symbol
	CompanyName string
	Limit       int
}

// NewsProvider returns candidate articles in provider order. Zero articles
// with a nil error is a legitimate empty result.
type NewsProvider interface {
	Name() string
	Search(ctx context.Context, q NewsQuery) ([]model.NewsArticle, error)
}

// TextExtractor downloads an article and returns its main body text.
type TextExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// NameResolver maps a symbol to a company display name.
type NameResolver interface {
	LookupName(ctx context.Context, symbol model.Symbol) (string, error)
}

// ValuationProvider returns valuation history derived from annual statements.
type ValuationProvider interface {
	Name() string
	FetchValuation(ctx context.Context, symbol model.Symbol, latestPrice float64) (model.Valuation, error)
}

// RecommendationProvider returns analyst rating counts, most recent period
// first.
type RecommendationProvider interface {
	Name() string
	FetchRecommendations(ctx context.Context, symbol model.Symbol) ([]model.RecommendationTrend, error)
}
