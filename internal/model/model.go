// Package model holds the normalized records produced by the acquisition
// pipeline. Values are built fresh per request and are not mutated after
// construction; only the cache keeps them around.
package model

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DateLayout is the calendar date format used in keys, configs and provider payloads.
const DateLayout = "2006-01-02"

// Symbol is an uppercase, trimmed instrument identifier such as "AAPL" or "NAS.OL".
type Symbol string

// base ticker, optional exchange suffix of two to five letters
var symbolPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9^=\-]{0,14}(\.[A-Z]{2,5})?$`)

// ParseSymbol normalizes raw input into a Symbol.
func ParseSymbol(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", &InputError{Field: "symbol", Reason: "must not be empty"}
	}
	if !symbolPattern.MatchString(s) {
		return "", &InputError{Field: "symbol", Reason: "invalid format " + s}
	}
	return Symbol(s), nil
}

func (s Symbol) String() string { return string(s) }

// Base returns the symbol without its exchange suffix.
func (s Symbol) Base() string {
	if i := strings.LastIndex(string(s), "."); i > 0 {
		return string(s)[:i]
	}
	return string(s)
}

// DateRange is a half-open-free calendar range; Start is strictly before End.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange truncates both bounds to UTC calendar dates and checks start < end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: truncateDate(start), End: truncateDate(end)}
	if !r.Start.Before(r.End) {
		return DateRange{}, &InputError{Field: "range", Reason: "start must be before end"}
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD dates.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return DateRange{}, &InputError{Field: "start", Reason: "expected YYYY-MM-DD"}
	}
	e, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return DateRange{}, &InputError{Field: "end", Reason: "expected YYYY-MM-DD"}
	}
	return NewDateRange(s, e)
}

// Contains reports whether t falls on a date within [Start, End].
func (r DateRange) Contains(t time.Time) bool {
	d := truncateDate(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Key renders the range for cache keys and logs.
func (r DateRange) Key() string {
	return r.Start.Format(DateLayout) + ":" + r.End.Format(DateLayout)
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PricePoint is one daily bar.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid checks finiteness, non-negativity and low <= {open, close} <= high.
func (p PricePoint) Valid() bool {
	for _, v := range []float64{p.Open, p.High, p.Low, p.Close, p.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	if p.Date.IsZero() {
		return false
	}
	return p.Low <= p.Open && p.Open <= p.High && p.Low <= p.Close && p.Close <= p.High
}

// PriceSeries is a date-ordered run of bars. An empty series is a valid "no data" result.
type PriceSeries struct {
	Symbol Symbol       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// NewPriceSeries keeps valid bars inside r, sorted by date, first bar per date wins.
func NewPriceSeries(symbol Symbol, r DateRange, points []PricePoint) PriceSeries {
	out := make([]PricePoint, 0, len(points))
	seen := make(map[time.Time]struct{}, len(points))
	for _, p := range points {
		p.Date = truncateDate(p.Date)
		if !p.Valid() || !r.Contains(p.Date) {
			continue
		}
		if _, dup := seen[p.Date]; dup {
			continue
		}
		seen[p.Date] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return PriceSeries{Symbol: symbol, Points: out}
}

// Empty reports a "no data" series.
func (s PriceSeries) Empty() bool { return len(s.Points) == 0 }

// Latest returns the most recent bar.
func (s PriceSeries) Latest() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// MarketData is the Market Data Fetcher's result.
type MarketData struct {
	Series       PriceSeries          `json:"series"`
	Fundamentals FundamentalsSnapshot `json:"fundamentals"`
	Provider     string               `json:"provider"`
	// Degraded is set when the data came from the fallback provider.
	Degraded bool `json:"degraded"`
}
