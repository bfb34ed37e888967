package yahoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"stocktracker/internal/model"
)

// GetQuote retrieves the loosely-typed quote blob for symbol. The blob keys
// vary by instrument type, so it is returned undecoded.
func (c *Client) GetQuote(ctx context.Context, symbol model.Symbol) (map[string]any, error) {
	query := url.Values{}
	query.Set("symbols", string(symbol))
	u := fmt.Sprintf("%s/v7/finance/quote?%s", c.baseURL, query.Encode())

	body, err := c.get(ctx, "quote", u)
	if err != nil {
		return nil, err
	}

	var res struct {
		QuoteResponse struct {
			Result []map[string]any `json:"result"`
			Error  any              `json:"error"`
		} `json:"quoteResponse"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&res); err != nil {
		return nil, &model.ProviderError{Provider: Name, Op: "quote", Err: fmt.Errorf("decoding quote: %w", err)}
	}
	if res.QuoteResponse.Error != nil {
		return nil, &model.ProviderError{Provider: Name, Op: "quote", Err: fmt.Errorf("%v", res.QuoteResponse.Error)}
	}
	if len(res.QuoteResponse.Result) == 0 {
		return nil, &model.ProviderError{Provider: Name, Op: "quote", Err: model.ErrNoData}
	}
	return res.QuoteResponse.Result[0], nil
}
