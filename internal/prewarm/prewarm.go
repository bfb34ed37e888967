// Package prewarm periodically runs the pipeline for a watchlist so the
// cache is warm when callers ask.
package prewarm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"stocktracker/internal/pipeline"
)

// Runner runs one orchestrated request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Report, error)
}

// Warmer manages the warm-up cron task.
type Warmer struct {
	cron     *cron.Cron
	runner   Runner
	symbols  []string
	lookback int
	now      func() time.Time
	logger   *slog.Logger
	ctx      context.Context
}

// Option configures a Warmer.
type Option func(*Warmer)

func WithClock(now func() time.Time) Option {
	return func(w *Warmer) {
		w.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Warmer) {
		w.logger = logger
	}
}

// New creates a Warmer for symbols over the last lookbackDays days. Runs
// stop early once ctx is done.
func New(ctx context.Context, runner Runner, symbols []string, lookbackDays int, opts ...Option) *Warmer {
	w := &Warmer{
		cron:     cron.New(cron.WithSeconds()),
		runner:   runner,
		symbols:  symbols,
		lookback: lookbackDays,
		now:      time.Now,
		logger:   slog.Default(),
		ctx:      ctx,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Register schedules the warm-up with a six-field cron spec.
func (w *Warmer) Register(spec string) error {
	if _, err := w.cron.AddFunc(spec, func() { w.RunNow() }); err != nil {
		return fmt.Errorf("register prewarm task: %w", err)
	}
	return nil
}

func (w *Warmer) Start() {
	w.cron.Start()
	w.logger.Info("prewarm scheduler started", "symbols", len(w.symbols))
}

// Stop stops the scheduler and waits for a running warm-up to finish.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("prewarm scheduler stopped")
}

// Window is the date range warmed for a run at now: the last lookback days
// ending today.
func Window(now time.Time, lookbackDays int) (time.Time, time.Time) {
	y, m, d := now.UTC().Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, 0, -lookbackDays), end
}

// RunNow warms every symbol once, in order, and returns how many succeeded.
// Symbols whose report has failed parts still count; only request errors
// do not.
func (w *Warmer) RunNow() int {
	start, end := Window(w.now(), w.lookback)
	ok := 0
	for _, sym := range w.symbols {
		if w.ctx.Err() != nil {
			break
		}
		t := time.Now()
		report, err := w.runner.Run(w.ctx, pipeline.Request{Symbol: sym, Start: start, End: end})
		if err != nil {
			w.logger.Warn("prewarm failed", "symbol", sym, "error", err)
			continue
		}
		ok++
		w.logger.Debug("prewarmed",
			"symbol", sym,
			"market_ok", report.Market.OK(),
			"news_ok", report.News.OK(),
			"duration", time.Since(t),
		)
	}
	w.logger.Info("prewarm run done", "symbols", len(w.symbols), "ok", ok)
	return ok
}
