package yahoo

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"stocktracker/internal/model"
)

// NormalizeFundamentals maps a quote blob (and optionally the chart meta) to
// the shared schema. Keys are tried in order; the first usable value wins.
// Anything missing or mistyped stays unknown.
func NormalizeFundamentals(symbol model.Symbol, blobs ...map[string]any) model.FundamentalsSnapshot {
	f := model.FundamentalsSnapshot{Symbol: symbol}

	f.LongName = text(blobs, "longName", "shortName", "displayName")
	f.Sector = text(blobs, "sector")
	f.Industry = text(blobs, "industry")
	f.Country = text(blobs, "country")
	f.Website = text(blobs, "website")
	f.Currency = text(blobs, "currency", "financialCurrency")

	f.LatestPrice = number(blobs, "regularMarketPrice", "currentPrice")
	f.MarketCap = number(blobs, "marketCap")
	f.ForwardPE = number(blobs, "forwardPE")
	f.TrailingPE = number(blobs, "trailingPE")
	f.BookValue = number(blobs, "bookValue")
	f.PriceToBook = number(blobs, "priceToBook")
	f.ReturnOnEquity = number(blobs, "returnOnEquity")
	f.ReturnOnAssets = number(blobs, "returnOnAssets")
	f.ProfitMargin = number(blobs, "profitMargins")
	f.DebtToEquity = number(blobs, "debtToEquity")
	f.CurrentRatio = number(blobs, "currentRatio")
	f.QuickRatio = number(blobs, "quickRatio")
	f.Beta = number(blobs, "beta")
	f.FiftyTwoWeekHigh = number(blobs, "fiftyTwoWeekHigh")
	f.FiftyTwoWeekLow = number(blobs, "fiftyTwoWeekLow")
	f.AverageVolume = number(blobs, "averageVolume", "averageDailyVolume3Month")

	// the quote endpoint reports dividendYield in percent, the trailing
	// variant as a fraction
	if y := number(blobs, "dividendYield"); y.Valid {
		f.DividendYield = null.FloatFrom(percentToFraction(y.Float64))
	} else {
		f.DividendYield = number(blobs, "trailingAnnualDividendYield")
	}

	if n := number(blobs, "fullTimeEmployees"); n.Valid && n.Float64 >= 0 {
		f.FullTimeEmployees = null.IntFrom(int64(n.Float64))
	}
	return f
}

func percentToFraction(v float64) float64 {
	return decimal.NewFromFloat(v).Div(decimal.NewFromInt(100)).InexactFloat64()
}

func number(blobs []map[string]any, keys ...string) null.Float {
	for _, key := range keys {
		for _, blob := range blobs {
			v, ok := blob[key]
			if !ok || v == nil {
				continue
			}
			if f, ok := toFloat(v, true); ok {
				return null.FloatFrom(f)
			}
		}
	}
	return null.Float{}
}

func text(blobs []map[string]any, keys ...string) null.String {
	for _, key := range keys {
		for _, blob := range blobs {
			s, ok := blob[key].(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" || strings.EqualFold(s, "N/A") {
				continue
			}
			return null.StringFrom(s)
		}
	}
	return null.String{}
}

// toFloat accepts numbers, numeric strings and the {"raw": x, "fmt": "..."}
// wrapper used by some endpoints.
func toFloat(v any, unwrap bool) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = x
	case map[string]any:
		if !unwrap {
			return 0, false
		}
		raw, ok := n["raw"]
		if !ok || raw == nil {
			return 0, false
		}
		return toFloat(raw, false)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
