package cache

import "stocktracker/internal/model"

// Key kinds. Keys are "<kind>:<SYMBOL>" with the date range appended for
// market data. A news entry holds the articles and their sentiment.
const (
	KindMarket          = "market"
	KindNews            = "news"
	KindValuation       = "valuation"
	KindRecommendations = "recommendations"
	KindProfile         = "profile"
)

func MarketKey(symbol model.Symbol, r model.DateRange) string {
	return KindMarket + ":" + string(symbol) + ":" + r.Key()
}

func NewsKey(symbol model.Symbol) string { return KindNews + ":" + string(symbol) }

func RecommendationsKey(symbol model.Symbol) string {
	return KindRecommendations + ":" + string(symbol)
}

func ValuationKey(symbol model.Symbol) string { return KindValuation + ":" + string(symbol) }

func ProfileKey(symbol model.Symbol) string { return KindProfile + ":" + string(symbol) }
