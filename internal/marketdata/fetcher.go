// Package marketdata is the market sub-pipeline: the primary provider with
// retries, then one call to the fallback provider.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stocktracker/internal/model"
	"stocktracker/internal/provider"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = time.Second
	DefaultJitter      = time.Second
)

// Fetcher returns normalized prices and fundamentals for one symbol.
type Fetcher struct {
	primary     provider.MarketProvider
	fallback    provider.MarketProvider
	valuation   provider.ValuationProvider
	maxAttempts int
	base        time.Duration
	jitter      time.Duration
	sleep       func(context.Context, time.Duration) error
	rand        func() float64
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFallback sets the provider tried once after the primary is exhausted.
func WithFallback(p provider.MarketProvider) Option {
	return func(f *Fetcher) {
		f.fallback = p
	}
}

// WithValuation enables valuation history.
func WithValuation(p provider.ValuationProvider) Option {
	return func(f *Fetcher) {
		f.valuation = p
	}
}

// WithRetry sets the attempt budget of the primary and its backoff.
func WithRetry(maxAttempts int, base, jitter time.Duration) Option {
	return func(f *Fetcher) {
		if maxAttempts > 0 {
			f.maxAttempts = maxAttempts
		}
		f.base = base
		f.jitter = jitter
	}
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		f.sleep = sleep
	}
}

// WithRand replaces the jitter source. It must return values in [0, 1).
func WithRand(rnd func() float64) Option {
	return func(f *Fetcher) {
		f.rand = rnd
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

func NewFetcher(primary provider.MarketProvider, opts ...Option) *Fetcher {
	f := &Fetcher{
		primary:     primary,
		maxAttempts: DefaultMaxAttempts,
		base:        DefaultBackoffBase,
		jitter:      DefaultJitter,
		sleep:       SleepContext,
		rand:        defaultRand,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HasValuation reports whether a valuation provider is configured.
func (f *Fetcher) HasValuation() bool { return f.valuation != nil }

// Fetch tries the primary up to maxAttempts times (the configured budget
// when maxAttempts <= 0), sleeping with exponential backoff and jitter
// between attempts, then falls back once. An attempt fails on error, on an
// empty series or on fundamentals that are all unknown. The fallback's
// empty series is a valid result.
func (f *Fetcher) Fetch(ctx context.Context, symbol model.Symbol, r model.DateRange, maxAttempts int) (model.MarketData, error) {
	if maxAttempts <= 0 {
		maxAttempts = f.maxAttempts
	}
	logger := f.logger.With("symbol", string(symbol), "range", r.Key())

	var primaryErr error
	for attempt := range maxAttempts {
		md, err := f.primary.FetchMarket(ctx, symbol, r)
		if err == nil {
			err = usable(md)
		}
		if err == nil {
			return md, nil
		}
		primaryErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.MarketData{}, ctxErr
		}
		if attempt == maxAttempts-1 {
			break
		}
		delay := Backoff(attempt, f.base, f.jitter, f.rand())
		logger.Debug("market attempt failed, retrying", "provider", f.primary.Name(), "attempt", attempt+1, "backoff", delay, "error", err)
		if err := f.sleep(ctx, delay); err != nil {
			return model.MarketData{}, err
		}
	}
	logger.Warn("primary market provider exhausted", "provider", f.primary.Name(), "attempts", maxAttempts, "error", primaryErr)

	if f.fallback == nil {
		return model.MarketData{}, &model.Failure{Stage: "market", Reason: "primary provider exhausted, no fallback configured", Err: primaryErr}
	}
	logger.Info("market falling back", "provider", f.fallback.Name())
	md, err := f.fallback.FetchMarket(ctx, symbol, r)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.MarketData{}, ctxErr
		}
		logger.Warn("fallback market provider failed", "provider", f.fallback.Name(), "error", err)
		return model.MarketData{}, &model.Failure{Stage: "market", Reason: "primary and fallback providers failed", Err: errors.Join(primaryErr, err)}
	}
	md.Degraded = true
	return md, nil
}

// Valuation builds valuation history from the latest price.
func (f *Fetcher) Valuation(ctx context.Context, symbol model.Symbol, latestPrice float64) (model.Valuation, error) {
	if f.valuation == nil {
		return model.Valuation{}, &model.Failure{Stage: "valuation", Reason: "no valuation provider configured"}
	}
	v, err := f.valuation.FetchValuation(ctx, symbol, latestPrice)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Valuation{}, ctxErr
		}
		return model.Valuation{}, &model.Failure{Stage: "valuation", Reason: "valuation provider failed", Err: err}
	}
	return v, nil
}

func usable(md model.MarketData) error {
	switch {
	case md.Series.Empty():
		return fmt.Errorf("%w: empty price series", model.ErrNoData)
	case md.Fundamentals.AllUnknown():
		return fmt.Errorf("%w: all fundamentals unknown", model.ErrNoData)
	}
	return nil
}
