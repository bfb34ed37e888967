package yahoo

import (
	"context"
	"fmt"

	"github.com/guregu/null/v6"

	"stocktracker/internal/model"
)

// Provider is the primary market-data provider: chart history plus the quote blob.
type Provider struct {
	client *Client
}

func New(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string { return Name }

// FetchMarket never fails on a missing quote blob; the chart meta carries
// enough to keep the snapshot partially known.
func (p *Provider) FetchMarket(ctx context.Context, symbol model.Symbol, r model.DateRange) (model.MarketData, error) {
	chart, err := p.client.GetChart(ctx, symbol, r)
	if err != nil {
		return model.MarketData{}, err
	}

	quote, err := p.client.GetQuote(ctx, symbol)
	if err != nil {
		p.client.logger.Warn("yahoo quote unavailable, using chart meta only",
			"symbol", symbol,
			"error", err,
		)
	}

	series := model.NewPriceSeries(symbol, r, chart.Points)
	fundamentals := NormalizeFundamentals(symbol, quote, chart.Meta)
	if latest, ok := series.Latest(); ok && !fundamentals.LatestPrice.Valid {
		fundamentals.LatestPrice = null.FloatFrom(latest.Close)
	}

	return model.MarketData{
		Series:       series,
		Fundamentals: fundamentals,
		Provider:     Name,
	}, nil
}

// LookupName resolves the company long name from the quote blob.
func (p *Provider) LookupName(ctx context.Context, symbol model.Symbol) (string, error) {
	quote, err := p.client.GetQuote(ctx, symbol)
	if err != nil {
		return "", err
	}
	name := text([]map[string]any{quote}, "longName", "shortName", "displayName")
	if !name.Valid {
		return "", &model.ProviderError{Provider: Name, Op: "lookup name", Err: fmt.Errorf("%w: no name for %s", model.ErrNoData, symbol)}
	}
	return name.String, nil
}

// FetchRecommendations returns the analyst recommendation trend.
func (p *Provider) FetchRecommendations(ctx context.Context, symbol model.Symbol) ([]model.RecommendationTrend, error) {
	return p.client.GetRecommendationTrend(ctx, symbol)
}
