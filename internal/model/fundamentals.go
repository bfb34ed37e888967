package model

import (
	"github.com/guregu/null/v6"
)

// FundamentalsSnapshot is the normalized fundamentals schema. Every metric a
// provider did not supply stays invalid (unknown) and marshals as JSON null.
type FundamentalsSnapshot struct {
	Symbol Symbol `json:"symbol"`

	LongName null.String `json:"long_name"`
	Sector   null.String `json:"sector"`
	Industry null.String `json:"industry"`
	Country  null.String `json:"country"`
	Website  null.String `json:"website"`
	Currency null.String `json:"currency"`

	LatestPrice      null.Float `json:"latest_price"`
	MarketCap        null.Float `json:"market_cap"`
	ForwardPE        null.Float `json:"forward_pe"`
	TrailingPE       null.Float `json:"trailing_pe"`
	DividendYield    null.Float `json:"dividend_yield"` // fraction, 0.005 == 0.5%
	BookValue        null.Float `json:"book_value"`
	PriceToBook      null.Float `json:"price_to_book"`
	ReturnOnEquity   null.Float `json:"return_on_equity"`
	ReturnOnAssets   null.Float `json:"return_on_assets"`
	ProfitMargin     null.Float `json:"profit_margin"`
	DebtToEquity     null.Float `json:"debt_to_equity"`
	CurrentRatio     null.Float `json:"current_ratio"`
	QuickRatio       null.Float `json:"quick_ratio"`
	Beta             null.Float `json:"beta"`
	FiftyTwoWeekHigh null.Float `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  null.Float `json:"fifty_two_week_low"`
	AverageVolume    null.Float `json:"average_volume"`

	FullTimeEmployees null.Int `json:"full_time_employees"`
}

// Metrics lists the numeric metrics by name.
func (f FundamentalsSnapshot) Metrics() map[string]null.Float {
	return map[string]null.Float{
		"latest_price":        f.LatestPrice,
		"market_cap":          f.MarketCap,
		"forward_pe":          f.ForwardPE,
		"trailing_pe":         f.TrailingPE,
		"dividend_yield":      f.DividendYield,
		"book_value":          f.BookValue,
		"price_to_book":       f.PriceToBook,
		"return_on_equity":    f.ReturnOnEquity,
		"return_on_assets":    f.ReturnOnAssets,
		"profit_margin":       f.ProfitMargin,
		"debt_to_equity":      f.DebtToEquity,
		"current_ratio":       f.CurrentRatio,
		"quick_ratio":         f.QuickRatio,
		"beta":                f.Beta,
		"fifty_two_week_high": f.FiftyTwoWeekHigh,
		"fifty_two_week_low":  f.FiftyTwoWeekLow,
		"average_volume":      f.AverageVolume,
	}
}

// AllUnknown is true when no metric and no descriptive field is known.
func (f FundamentalsSnapshot) AllUnknown() bool {
	for _, v := range f.Metrics() {
		if v.Valid {
			return false
		}
	}
	return !f.LongName.Valid && !f.Sector.Valid && !f.Industry.Valid &&
		!f.Country.Valid && !f.Website.Valid && !f.FullTimeEmployees.Valid
}

// PEPoint is one fiscal year of the forward P/E history.
type PEPoint struct {
	FiscalDateEnding string  `json:"fiscal_date_ending"`
	EPS              float64 `json:"eps"`
	ForwardPE        float64 `json:"forward_pe"`
}

// Valuation is derived from annual income statements.
type Valuation struct {
	Symbol       Symbol     `json:"symbol"`
	PEHistory    []PEPoint  `json:"pe_history"`
	AveragePE    null.Float `json:"average_pe"`
	ProfitMargin null.Float `json:"profit_margin"`
	Provider     string     `json:"provider"`
}

// RecommendationTrend counts analyst ratings for one period. Period is
// relative to now: "0m" is the current month, "-1m" the month before.
type RecommendationTrend struct {
	Period     string `json:"period"`
	StrongBuy  int    `json:"strong_buy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strong_sell"`
}

// Total is the number of ratings in the period.
func (r RecommendationTrend) Total() int {
	return r.StrongBuy + r.Buy + r.Hold + r.Sell + r.StrongSell
}
