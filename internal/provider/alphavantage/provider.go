package alphavantage

import (
	"context"
	"errors"
	"sort"

	"github.com/guregu/null/v6"

	"stocktracker/internal/model"
)

// Provider is the secondary market-data provider. Its fundamentals are
// degraded: only the symbol and the latest price are ever known.
type Provider struct {
	client *Client
}

func New(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) FetchMarket(ctx context.Context, symbol model.Symbol, r model.DateRange) (model.MarketData, error) {
	bars, err := p.client.GetDailySeries(ctx, symbol)
	if err != nil {
		return model.MarketData{}, err
	}

	fundamentals := model.FundamentalsSnapshot{Symbol: symbol}
	if n := len(bars); n > 0 {
		fundamentals.LatestPrice = null.FloatFrom(bars[n-1].Close)
	}
	return model.MarketData{
		Series:       model.NewPriceSeries(symbol, r, bars),
		Fundamentals: fundamentals,
		Provider:     Name,
		Degraded:     true,
	}, nil
}

// FetchValuation builds the forward P/E history (latestPrice / annual EPS,
// positive EPS only) and the latest profit margin. It fails only when both
// endpoints fail.
func (p *Provider) FetchValuation(ctx context.Context, symbol model.Symbol, latestPrice float64) (model.Valuation, error) {
	v := model.Valuation{Symbol: symbol, Provider: Name, PEHistory: []model.PEPoint{}}

	earnings, earningsErr := p.client.GetAnnualEarnings(ctx, symbol)
	statements, statementsErr := p.client.GetIncomeStatements(ctx, symbol)
	if earningsErr != nil && statementsErr != nil {
		return model.Valuation{}, errors.Join(earningsErr, statementsErr)
	}

	if latestPrice > 0 {
		sum := 0.0
		for _, e := range earnings {
			if e.ReportedEPS == nil || *e.ReportedEPS <= 0 {
				continue
			}
			pe := latestPrice / *e.ReportedEPS
			sum += pe
			v.PEHistory = append(v.PEHistory, model.PEPoint{
				FiscalDateEnding: e.FiscalDateEnding,
				EPS:              *e.ReportedEPS,
				ForwardPE:        pe,
			})
		}
		sort.Slice(v.PEHistory, func(i, j int) bool {
			return v.PEHistory[i].FiscalDateEnding < v.PEHistory[j].FiscalDateEnding
		})
		if n := len(v.PEHistory); n > 0 {
			v.AveragePE = null.FloatFrom(sum / float64(n))
		}
	}

	if len(statements) > 0 {
		latest := statements[0]
		if latest.TotalRevenue != nil && latest.NetIncome != nil && *latest.TotalRevenue > 0 {
			v.ProfitMargin = null.FloatFrom(*latest.NetIncome / *latest.TotalRevenue)
		}
	}
	return v, nil
}
