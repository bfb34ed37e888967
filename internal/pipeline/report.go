package pipeline

import (
	"encoding/json"
	"time"

	"stocktracker/internal/model"
)

// Request asks for everything about one symbol over one date range.
// CompanyName is optional; it is resolved from the symbol when empty.
type Request struct {
	Symbol      string
	Start       time.Time
	End         time.Time
	CompanyName string
}

// Outcome is one independently computed part of a report: a value or the
// error that prevented it.
type Outcome[T any] struct {
	Value T
	Err   error
}

func (o Outcome[T]) OK() bool { return o.Err == nil }

func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	if o.Err != nil {
		return json.Marshal(struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}{OK: false, Error: o.Err.Error()})
	}
	return json.Marshal(struct {
		OK    bool `json:"ok"`
		Value T    `json:"value"`
	}{OK: true, Value: o.Value})
}

// Report is the composite result. Each part is present or explicitly
// failed; the caller decides how to present partial results. Valuation and
// Recommendations are nil when their provider is not configured.
type Report struct {
	Symbol          model.Symbol                          `json:"symbol"`
	Range           model.DateRange                       `json:"range"`
	CompanyName     string                                `json:"company_name"`
	Market          Outcome[model.MarketData]             `json:"market"`
	Valuation       *Outcome[model.Valuation]             `json:"valuation,omitempty"`
	Recommendations *Outcome[[]model.RecommendationTrend] `json:"recommendations,omitempty"`
	News            Outcome[[]model.NewsArticle]          `json:"news"`
	Sentiment       Outcome[model.AggregateSentiment]     `json:"sentiment"`
}
