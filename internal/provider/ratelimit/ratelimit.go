// Package ratelimit gates provider calls so free API tiers are not exceeded.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"stocktracker/internal/model"
	"stocktracker/internal/provider"
)

// Limiter blocks until one call may proceed.
type Limiter interface {
	Wait(ctx context.Context) error
}

// MinInterval spaces calls at least Interval apart. Each caller reserves
// the next free slot, so concurrent callers queue in arrival order.
type MinInterval struct {
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Wait(ctx context.Context) error {
	if m.Interval <= 0 {
		return nil
	}
	m.mu.Lock()
	now := time.Now()
	slot := m.next
	if slot.Before(now) {
		slot = now
	}
	m.next = slot.Add(m.Interval)
	m.mu.Unlock()

	if wait := time.Until(slot); wait > 0 {
		return sleep(ctx, wait)
	}
	return nil
}

// Market gates a MarketProvider.
type Market struct {
	P provider.MarketProvider
	L Limiter
}

func (m *Market) Name() string { return m.P.Name() }

func (m *Market) FetchMarket(ctx context.Context, symbol model.Symbol, r model.DateRange) (model.MarketData, error) {
	if m.L != nil {
		if err := m.L.Wait(ctx); err != nil {
			return model.MarketData{}, err
		}
	}
	return m.P.FetchMarket(ctx, symbol, r)
}

// News gates a NewsProvider.
type News struct {
	P provider.NewsProvider
	L Limiter
}

func (n *News) Name() string { return n.P.Name() }

func (n *News) Search(ctx context.Context, q provider.NewsQuery) ([]model.NewsArticle, error) {
	if n.L != nil {
		if err := n.L.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return n.P.Search(ctx, q)
}

// Valuation gates a ValuationProvider. One valuation costs two upstream
// calls, so it waits twice.
type Valuation struct {
	P provider.ValuationProvider
	L Limiter
}

func (v *Valuation) Name() string { return v.P.Name() }

func (v *Valuation) FetchValuation(ctx context.Context, symbol model.Symbol, latestPrice float64) (model.Valuation, error) {
	if v.L != nil {
		for range 2 {
			if err := v.L.Wait(ctx); err != nil {
				return model.Valuation{}, err
			}
		}
	}
	return v.P.FetchValuation(ctx, symbol, latestPrice)
}

// Recommendations gates a RecommendationProvider.
type Recommendations struct {
	P provider.RecommendationProvider
	L Limiter
}

func (r *Recommendations) Name() string { return r.P.Name() }

func (r *Recommendations) FetchRecommendations(ctx context.Context, symbol model.Symbol) ([]model.RecommendationTrend, error) {
	if r.L != nil {
		if err := r.L.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return r.P.FetchRecommendations(ctx, symbol)
}
