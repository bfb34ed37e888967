package alphavantage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stocktracker/internal/model"
)

// Name is the provider name used in errors and records.
const Name = "alphavantage"

// ErrMissingKey is returned when the client is built without an API key.
var ErrMissingKey = errors.New("alphavantage: missing api key")

// GetDailySeries retrieves the full daily history for symbol, oldest first.
// Rows whose date or numbers do not parse are dropped.
func (c *Client) GetDailySeries(ctx context.Context, symbol model.Symbol) ([]model.PricePoint, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", string(symbol))
	q.Set("outputsize", "full")
	body, err := c.do(ctx, "daily series", q)
	if err != nil {
		return nil, err
	}

	var res struct {
		Series map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: "daily series", Err: fmt.Errorf("decoding series: %w", err)}
	}
	if res.Series == nil {
		return nil, &model.ProviderError{Provider: Name, Op: "daily series", Err: fmt.Errorf("%w: missing time series", model.ErrNoData)}
	}

	bars := make([]model.PricePoint, 0, len(res.Series))
	for day, row := range res.Series {
		date, err := time.Parse(model.DateLayout, day)
		if err != nil {
			continue
		}
		bar, ok := parseRow(row)
		if !ok {
			continue
		}
		bar.Date = date
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func parseRow(row map[string]string) (model.PricePoint, bool) {
	var bar model.PricePoint
	fields := []struct {
		key string
		dst *float64
	}{
		{"1. open", &bar.Open},
		{"2. high", &bar.High},
		{"3. low", &bar.Low},
		{"4. close", &bar.Close},
		{"5. volume", &bar.Volume},
	}
	for _, f := range fields {
		v, ok := parseNumber(row[f.key])
		if !ok {
			return model.PricePoint{}, false
		}
		*f.dst = v
	}
	return bar, true
}

// parseNumber casts Alpha Vantage numeric strings; "None" and "-" are unknown.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "-" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// AnnualEarning is one fiscal year from the EARNINGS endpoint.
type AnnualEarning struct {
	FiscalDateEnding string
	ReportedEPS      *float64
}

// GetAnnualEarnings retrieves annual reported EPS, newest first.
func (c *Client) GetAnnualEarnings(ctx context.Context, symbol model.Symbol) ([]AnnualEarning, error) {
	q := url.Values{}
	q.Set("function", "EARNINGS")
	q.Set("symbol", string(symbol))
	body, err := c.do(ctx, "earnings", q)
	if err != nil {
		return nil, err
	}

	var res struct {
		AnnualEarnings []map[string]string `json:"annualEarnings"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: "earnings", Err: fmt.Errorf("decoding earnings: %w", err)}
	}
	out := make([]AnnualEarning, 0, len(res.AnnualEarnings))
	for _, row := range res.AnnualEarnings {
		e := AnnualEarning{FiscalDateEnding: row["fiscalDateEnding"]}
		if v, ok := parseNumber(row["reportedEPS"]); ok {
			e.ReportedEPS = &v
		}
		out = append(out, e)
	}
	return out, nil
}

// IncomeStatement is the subset of an annual report the pipeline uses.
type IncomeStatement struct {
	FiscalDateEnding string
	TotalRevenue     *float64
	NetIncome        *float64
}

// GetIncomeStatements retrieves annual income statements, newest first.
func (c *Client) GetIncomeStatements(ctx context.Context, symbol model.Symbol) ([]IncomeStatement, error) {
	q := url.Values{}
	q.Set("function", "INCOME_STATEMENT")
	q.Set("symbol", string(symbol))
	body, err := c.do(ctx, "income statement", q)
	if err != nil {
		return nil, err
	}

	var res struct {
		AnnualReports []map[string]string `json:"annualReports"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: "income statement", Err: fmt.Errorf("decoding statements: %w", err)}
	}
	out := make([]IncomeStatement, 0, len(res.AnnualReports))
	for _, row := range res.AnnualReports {
		s := IncomeStatement{FiscalDateEnding: row["fiscalDateEnding"]}
		if v, ok := parseNumber(row["totalRevenue"]); ok {
			s.TotalRevenue = &v
		}
		if v, ok := parseNumber(row["netIncome"]); ok {
			s.NetIncome = &v
		}
		out = append(out, s)
	}
	return out, nil
}

// do performs one GET against /query. Alpha Vantage answers throttling
// and bad symbols with HTTP 200 and a message key, so those are checked too.
func (c *Client) do(ctx context.Context, op string, q url.Values) ([]byte, error) {
	query := maps.Clone(c.query)
	for k, vs := range q {
		query[k] = vs
	}

	u := fmt.Sprintf("%s/query?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", redactKey(err))
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: op, Err: fmt.Errorf("performing request: %w", redactKey(err))}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &model.ProviderError{Provider: Name, Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("unexpected status code")}
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, 32<<20))
	if err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: op, Err: fmt.Errorf("reading body: %w", err)}
	}

	var msg struct {
		Error       string `json:"Error Message"`
		Note        string `json:"Note"`
		Information string `json:"Information"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&msg); err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	switch {
	case msg.Error != "":
		return nil, &model.ProviderError{Provider: Name, Op: op, Err: fmt.Errorf("%w: %s", model.ErrNoData, msg.Error)}
	case msg.Note != "":
		return nil, &model.ProviderError{Provider: Name, Op: op, Err: fmt.Errorf("rate limited: %s", msg.Note)}
	case msg.Information != "":
		return nil, &model.ProviderError{Provider: Name, Op: op, Err: fmt.Errorf("rejected: %s", msg.Information)}
	}
	return body, nil
}

// redactKey masks the apikey parameter in transport errors, which carry
// the request URL.
func redactKey(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	redacted := "<redacted>"
	if u, perr := url.Parse(ue.URL); perr == nil {
		q := u.Query()
		if q.Has("apikey") {
			q.Set("apikey", "REDACTED")
		}
		u.RawQuery = q.Encode()
		redacted = u.String()
	}
	return &url.Error{Op: ue.Op, URL: redacted, Err: ue.Err}
}
