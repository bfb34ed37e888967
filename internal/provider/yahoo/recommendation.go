package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"stocktracker/internal/model"
)

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			RecommendationTrend struct {
				Trend []struct {
					Period     string `json:"period"`
					StrongBuy  int    `json:"strongBuy"`
					Buy        int    `json:"buy"`
					Hold       int    `json:"hold"`
					Sell       int    `json:"sell"`
					StrongSell int    `json:"strongSell"`
				} `json:"trend"`
			} `json:"recommendationTrend"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// GetRecommendationTrend retrieves analyst rating counts per month, most
// recent first. A symbol without coverage yields an empty slice.
func (c *Client) GetRecommendationTrend(ctx context.Context, symbol model.Symbol) ([]model.RecommendationTrend, error) {
	query := url.Values{}
	query.Set("modules", "recommendationTrend")
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", c.baseURL, url.PathEscape(string(symbol)), query.Encode())

	body, err := c.get(ctx, "recommendations", u)
	if err != nil {
		return nil, err
	}

	var res quoteSummaryResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: "recommendations", Err: fmt.Errorf("decoding quote summary: %w", err)}
	}
	if e := res.QuoteSummary.Error; e != nil {
		return nil, &model.ProviderError{Provider: Name, Op: "recommendations", Err: fmt.Errorf("%s: %s", e.Code, e.Description)}
	}

	out := []model.RecommendationTrend{}
	for _, r := range res.QuoteSummary.Result {
		for _, t := range r.RecommendationTrend.Trend {
			rec := model.RecommendationTrend{
				Period:     t.Period,
				StrongBuy:  t.StrongBuy,
				Buy:        t.Buy,
				Hold:       t.Hold,
				Sell:       t.Sell,
				StrongSell: t.StrongSell,
			}
			if rec.Total() == 0 {
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}
