package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/require"

	"stocktracker/internal/cache"
	"stocktracker/internal/marketdata"
	"stocktracker/internal/model"
	"stocktracker/internal/news"
	"stocktracker/internal/pipeline"
	"stocktracker/internal/provider"
)

type stubMarket struct {
	calls atomic.Int32
	err   error
	block bool
}

func (s *stubMarket) Name() string { return "stub-market" }

func (s *stubMarket) FetchMarket(ctx context.Context, symbol model.Symbol, r model.DateRange) (model.MarketData, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return model.MarketData{}, ctx.Err()
	}
	if s.err != nil {
		return model.MarketData{}, s.err
	}
	points := []model.PricePoint{
		{Date: r.Start.AddDate(0, 0, 1), Open: 10, High: 12, Low: 9, Close: 11, Volume: 1000},
		{Date: r.Start.AddDate(0, 0, 2), Open: 11, High: 13, Low: 10, Close: 12, Volume: 1200},
	}
	return model.MarketData{
		Series:       model.NewPriceSeries(symbol, r, points),
		Fundamentals: model.FundamentalsSnapshot{Symbol: symbol, LatestPrice: null.FloatFrom(12), MarketCap: null.FloatFrom(1e9)},
		Provider:     "stub-market",
	}, nil
}

type stubNews struct {
	calls     atomic.Int32
	mu        sync.Mutex
	lastQuery provider.NewsQuery
	articles  []model.NewsArticle
}

func (s *stubNews) setArticles(articles []model.NewsArticle) {
	s.mu.Lock()
	s.articles = articles
	s.mu.Unlock()
}

func (s *stubNews) Name() string { return "stub-news" }

func (s *stubNews) Search(_ context.Context, q provider.NewsQuery) ([]model.NewsArticle, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastQuery = q
	articles := s.articles
	s.mu.Unlock()
	if articles != nil {
		return articles, nil
	}
	return []model.NewsArticle{
		{Title: "Apple shares climb on strong earnings", URL: "https://n/1", Description: "Great quarter."},
		{Title: "Apple faces lawsuit over patents", URL: "https://n/2", Description: "Bad news for investors."},
	}, nil
}

type stubNames struct {
	calls atomic.Int32
	err   error
}

func (s *stubNames) LookupName(context.Context, model.Symbol) (string, error) {
	s.calls.Add(1)
	return "Apple Inc.", s.err
}

type stubRecommendations struct {
	calls atomic.Int32
	err   error
}

func (s *stubRecommendations) Name() string { return "stub-recs" }

func (s *stubRecommendations) FetchRecommendations(context.Context, model.Symbol) ([]model.RecommendationTrend, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []model.RecommendationTrend{{Period: "0m", StrongBuy: 5, Buy: 10, Hold: 3}}, nil
}

type stubValuation struct{ calls atomic.Int32 }

func (s *stubValuation) Name() string { return "stub-valuation" }

func (s *stubValuation) FetchValuation(_ context.Context, symbol model.Symbol, latestPrice float64) (model.Valuation, error) {
	s.calls.Add(1)
	return model.Valuation{
		Symbol:    symbol,
		PEHistory: []model.PEPoint{{FiscalDateEnding: "2023-09-30", EPS: 2, ForwardPE: latestPrice / 2}},
		AveragePE: null.FloatFrom(latestPrice / 2),
		Provider:  "stub-valuation",
	}, nil
}

type fixture struct {
	market    *stubMarket
	news      *stubNews
	names     *stubNames
	valuation *stubValuation
	now       time.Time
	mu        sync.Mutex
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fixture) providerCalls() int32 {
	return f.market.calls.Load() + f.news.calls.Load() + f.names.calls.Load() + f.valuation.calls.Load()
}

func newFixture(t *testing.T, opts ...pipeline.Option) (*fixture, *pipeline.Orchestrator) {
	t.Helper()
	f := &fixture{
		market:    &stubMarket{},
		news:      &stubNews{},
		names:     &stubNames{},
		valuation: &stubValuation{},
		now:       time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
	}
	fetcher := marketdata.NewFetcher(f.market,
		marketdata.WithValuation(f.valuation),
		marketdata.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	agg := news.NewAggregator(news.WithPrimary(f.news))
	opts = append([]pipeline.Option{
		pipeline.WithCache(cache.New(cache.WithClock(f.clock), cache.WithComputeTimeout(5*time.Second))),
		pipeline.WithNameResolver(f.names),
		pipeline.WithMaxAttempts(2),
	}, opts...)
	return f, pipeline.New(fetcher, agg, opts...)
}

func request(symbol string) pipeline.Request {
	return pipeline.Request{
		Symbol: symbol,
		Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestRun_InvalidInputTouchesNothing(t *testing.T) {
	t.Parallel()

	f, o := newFixture(t)

	backwards := request("AAPL")
	backwards.Start, backwards.End = backwards.End, backwards.Start
	sameDay := request("AAPL")
	sameDay.End = sameDay.Start

	for _, req := range []pipeline.Request{backwards, sameDay, request(""), request("NOT A SYMBOL")} {
		report, err := o.Run(t.Context(), req)
		require.Nil(t, report)
		require.True(t, model.IsInputError(err), "request %+v", req)
	}
	require.Zero(t, f.providerCalls())
}

func TestRun_FullReport(t *testing.T) {
	t.Parallel()

	// Arrange
	f, o := newFixture(t)

	// Act
	report, err := o.Run(t.Context(), request(" aapl "))

	// Assert
	require.NoError(t, err)
	require.Equal(t, model.Symbol("AAPL"), report.Symbol)
	require.Equal(t, "Apple Inc.", report.CompanyName)
	require.Equal(t, "Apple Inc.", f.news.lastQuery.CompanyName)

	require.True(t, report.Market.OK())
	require.Len(t, report.Market.Value.Series.Points, 2)

	require.NotNil(t, report.Valuation)
	require.True(t, report.Valuation.OK())
	require.Equal(t, 6.0, report.Valuation.Value.AveragePE.Float64)

	require.True(t, report.News.OK())
	require.Len(t, report.News.Value, 2)
	require.True(t, report.Sentiment.OK())
	require.True(t, report.Sentiment.Value.Available)
	require.Equal(t, 2, report.Sentiment.Value.ArticleCount)
}

func TestRun_IdempotentWithinTTL(t *testing.T) {
	t.Parallel()

	f, o := newFixture(t)

	first, err := o.Run(t.Context(), request("AAPL"))
	require.NoError(t, err)
	calls := f.providerCalls()
	require.Positive(t, calls)

	second, err := o.Run(t.Context(), request("AAPL"))
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, calls, f.providerCalls())

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, firstJSON, secondJSON)

	// After the TTL elapses the providers are asked again.
	f.advance(pipeline.DefaultTTLs().Market + time.Second)
	_, err = o.Run(t.Context(), request("AAPL"))
	require.NoError(t, err)
	require.Greater(t, f.providerCalls(), calls)
}

func TestRun_MarketFailureDoesNotBlockNews(t *testing.T) {
	t.Parallel()

	f, o := newFixture(t)
	f.market.err = errors.New("upstream down")

	report, err := o.Run(t.Context(), request("AAPL"))

	require.NoError(t, err)
	var failure *model.Failure
	require.ErrorAs(t, report.Market.Err, &failure)
	require.Equal(t, "market", failure.Stage)
	require.NotNil(t, report.Valuation)
	require.False(t, report.Valuation.OK())
	require.Zero(t, f.valuation.calls.Load())
	require.True(t, report.News.OK())
	require.True(t, report.Sentiment.OK())

	// Failures are not cached.
	before := f.market.calls.Load()
	_, err = o.Run(t.Context(), request("AAPL"))
	require.NoError(t, err)
	require.Greater(t, f.market.calls.Load(), before)
}

func TestRun_NameLookupFailureFallsBackToSymbol(t *testing.T) {
	t.Parallel()

	f, o := newFixture(t)
	f.names.err = errors.New("quote unavailable")

	report, err := o.Run(t.Context(), request("AAPL"))
	require.NoError(t, err)
	require.Equal(t, "AAPL", report.CompanyName)

	// The fallback name is stored with the news entry, so a repeat request
	// asks no provider again and reports the same name.
	calls := f.providerCalls()
	again, err := o.Run(t.Context(), request("AAPL"))
	require.NoError(t, err)
	require.Equal(t, calls, f.providerCalls())
	require.EqualValues(t, 1, f.names.calls.Load())
	require.Equal(t, report.CompanyName, again.CompanyName)

	// A caller supplied name skips the lookup.
	f2, o2 := newFixture(t)
	req := request("AAPL")
	req.CompanyName = "Apple"
	report, err = o2.Run(t.Context(), req)
	require.NoError(t, err)
	require.Equal(t, "Apple", report.CompanyName)
	require.Zero(t, f2.names.calls.Load())
}

func TestRun_TimeoutIsFailure(t *testing.T) {
	t.Parallel()

	f, o := newFixture(t, pipeline.WithTimeout(30*time.Millisecond))
	f.market.block = true

	start := time.Now()
	report, err := o.Run(t.Context(), request("AAPL"))

	require.Nil(t, report)
	var failure *model.Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "pipeline", failure.Stage)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestOutcome_MarshalJSON(t *testing.T) {
	t.Parallel()

	ok, err := json.Marshal(pipeline.Outcome[int]{Value: 7})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true,"value":7}`, string(ok))

	failed, err := json.Marshal(pipeline.Outcome[int]{Err: &model.Failure{Stage: "news", Reason: "all news providers failed"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":false,"error":"news failed: all news providers failed"}`, string(failed))
}

func TestRun_SentimentFollowsNewsEntry(t *testing.T) {
	t.Parallel()

	// Arrange: news expires well before everything else.
	ttls := pipeline.DefaultTTLs()
	ttls.News = time.Minute
	f, o := newFixture(t, pipeline.WithTTLs(ttls))

	first, err := o.Run(t.Context(), request("AAPL"))
	require.NoError(t, err)
	require.Equal(t, 2, first.Sentiment.Value.ArticleCount)

	// Act: the news entry expires and the provider now has one article.
	f.news.setArticles([]model.NewsArticle{
		{Title: "Apple stock rallies on great results", URL: "https://n/3", Description: "Investors cheer."},
	})
	f.advance(2 * time.Minute)
	second, err := o.Run(t.Context(), request("AAPL"))

	// Assert
	require.NoError(t, err)
	require.Len(t, second.News.Value, 1)
	require.Equal(t, 1, second.Sentiment.Value.ArticleCount)
	require.Equal(t, second.News.Value[0].Sentiment.Compound, second.Sentiment.Value.Average.Compound)
}

func TestRun_Recommendations(t *testing.T) {
	t.Parallel()

	recs := &stubRecommendations{}
	_, o := newFixture(t, pipeline.WithRecommendations(recs))

	report, err := o.Run(t.Context(), request("AAPL"))
	require.NoError(t, err)
	require.NotNil(t, report.Recommendations)
	require.True(t, report.Recommendations.OK())
	require.Equal(t, 18, report.Recommendations.Value[0].Total())

	_, err = o.Run(t.Context(), request("AAPL"))
	require.NoError(t, err)
	require.EqualValues(t, 1, recs.calls.Load())

	// Without a provider the part is absent.
	_, plain := newFixture(t)
	report, err = plain.Run(t.Context(), request("AAPL"))
	require.NoError(t, err)
	require.Nil(t, report.Recommendations)
}

func TestRun_RecommendationFailureIsIsolated(t *testing.T) {
	t.Parallel()

	recs := &stubRecommendations{err: errors.New("401 unauthorized")}
	_, o := newFixture(t, pipeline.WithRecommendations(recs))

	report, err := o.Run(t.Context(), request("AAPL"))

	require.NoError(t, err)
	var failure *model.Failure
	require.ErrorAs(t, report.Recommendations.Err, &failure)
	require.Equal(t, "recommendations", failure.Stage)
	require.True(t, report.Market.OK())
	require.True(t, report.News.OK())
}
