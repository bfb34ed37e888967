package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stocktracker/internal/model"
)

// Name is the provider name used in errors and records.
const Name = "yahoo"

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       map[string]any `json:"meta"`
	Timestamp  []int64        `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// Chart is the raw daily history with the chart's meta blob.
type Chart struct {
	Points []model.PricePoint
	Meta   map[string]any
}

// GetChart retrieves daily bars covering r. Rows with null fields are skipped.
func (c *Client) GetChart(ctx context.Context, symbol model.Symbol, r model.DateRange) (Chart, error) {
	query := url.Values{}
	query.Set("period1", strconv.FormatInt(r.Start.Unix(), 10))
	// the end date is inclusive
	query.Set("period2", strconv.FormatInt(r.End.AddDate(0, 0, 1).Unix(), 10))
	query.Set("interval", "1d")
	query.Set("includePrePost", "false")

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(string(symbol)), query.Encode())
	body, err := c.get(ctx, "chart", u)
	if err != nil {
		return Chart{}, err
	}

	var res chartResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return Chart{}, &model.ProviderError{Provider: Name, Op: "chart", Err: fmt.Errorf("decoding chart: %w", err)}
	}
	if res.Chart.Error != nil {
		return Chart{}, &model.ProviderError{Provider: Name, Op: "chart", Err: fmt.Errorf("%s: %s", res.Chart.Error.Code, res.Chart.Error.Description)}
	}
	if len(res.Chart.Result) == 0 {
		return Chart{}, nil
	}

	result := res.Chart.Result[0]
	out := Chart{Meta: result.Meta}
	if len(result.Indicators.Quote) == 0 {
		return out, nil
	}
	q := result.Indicators.Quote[0]
	offset := gmtOffset(result.Meta)
	out.Points = make([]model.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, cl, v := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i), at(q.Volume, i)
		if o == nil || h == nil || l == nil || cl == nil {
			// holidays and halted sessions come back as null rows
			continue
		}
		vol := 0.0
		if v != nil {
			vol = *v
		}
		out.Points = append(out.Points, model.PricePoint{
			Date:   time.Unix(ts+offset, 0).UTC(),
			Open:   *o,
			High:   *h,
			Low:    *l,
			Close:  *cl,
			Volume: vol,
		})
	}
	return out, nil
}

// gmtOffset is the exchange's UTC offset in seconds. Bars are stamped at
// the session open, so shifting by it before truncating keeps the
// exchange's calendar date for markets that open before 00:00 UTC.
func gmtOffset(meta map[string]any) int64 {
	switch v := meta["gmtoffset"].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

func at(xs []*float64, i int) *float64 {
	if i < 0 || i >= len(xs) {
		return nil
	}
	return xs[i]
}

func (c *Client) get(ctx context.Context, op, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: op, Err: fmt.Errorf("performing request: %w", err)}
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
	case res.StatusCode == http.StatusNotFound:
		return nil, &model.ProviderError{Provider: Name, Op: op, StatusCode: res.StatusCode, Err: model.ErrNoData}
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, &model.ProviderError{Provider: Name, Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("rate limited")}
	default:
		return nil, &model.ProviderError{Provider: Name, Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("unexpected status code")}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
	if err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: op, Err: fmt.Errorf("reading body: %w", err)}
	}
	return body, nil
}
