package sentiment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stocktracker/internal/model"
	"stocktracker/internal/sentiment"
)

func TestScore_EmptyTextIsAllZero(t *testing.T) {
	t.Parallel()

	s := sentiment.NewScorer()
	require.Equal(t, model.SentimentScores{}, s.Score(""))
	require.Equal(t, model.SentimentScores{}, s.Score("   \n\t  "))
	require.Equal(t, model.SentimentScores{}, s.Score("! ? ."))
}

func TestScore_Polarity(t *testing.T) {
	t.Parallel()

	s := sentiment.NewScorer()

	pos := s.Score("Apple posts strong earnings and a great quarter")
	require.Greater(t, pos.Compound, 0.5)
	require.Greater(t, pos.Positive, pos.Negative)

	neg := s.Score("Terrible quarter: shares crash as the company reports awful losses")
	require.Less(t, neg.Compound, -0.3)
	require.Greater(t, neg.Negative, neg.Positive)

	neu := s.Score("The company will hold its annual meeting on Tuesday")
	require.InDelta(t, 0.0, neu.Compound, 0.05)
	require.Greater(t, neu.Neutral, 0.9)
}

func TestScore_ProportionsAndRange(t *testing.T) {
	t.Parallel()

	s := sentiment.NewScorer()
	for _, text := range []string{
		"Great quarter, but the outlook is weak and risky.",
		"TERRIBLE results!!! Investors are not happy.",
		"Growth, growth, growth. Best year ever, truly amazing!",
	} {
		got := s.Score(text)
		require.InDelta(t, 1.0, got.Positive+got.Neutral+got.Negative, 0.002, text)
		require.GreaterOrEqual(t, got.Compound, -1.0)
		require.LessOrEqual(t, got.Compound, 1.0)
	}
}

func TestScore_Modifiers(t *testing.T) {
	t.Parallel()

	s := sentiment.NewScorer()
	base := s.Score("results were good").Compound

	require.Greater(t, s.Score("results were very good").Compound, base)
	require.Less(t, s.Score("results were not good").Compound, 0.0)
	require.Greater(t, s.Score("results were GOOD today").Compound, base)
	require.Greater(t, s.Score("results were good!!").Compound, base)
	// The clause after "but" dominates.
	require.Less(t, s.Score("the product is good but sales are terrible").Compound, 0.0)
}

func TestScore_Deterministic(t *testing.T) {
	t.Parallel()

	s := sentiment.NewScorer()
	text := "Analysts upgraded the stock despite concerns about debt."
	require.Equal(t, s.Score(text), s.Score(text))
}

func TestThresholds_Label(t *testing.T) {
	t.Parallel()

	th := sentiment.DefaultThresholds()
	require.NoError(t, th.Validate())
	for _, tc := range []struct {
		compound float64
		label    string
	}{
		{0.41, model.LabelVeryPositive},
		{0.4, model.LabelPositive},
		{0.1, model.LabelPositive},
		{0.099, model.LabelNeutral},
		{0, model.LabelNeutral},
		{-0.099, model.LabelNeutral},
		{-0.1, model.LabelNegative},
		{-0.4, model.LabelNegative},
		{-0.41, model.LabelVeryNegative},
	} {
		require.Equal(t, tc.label, th.Label(tc.compound), "compound %v", tc.compound)
	}

	bad := sentiment.Thresholds{VeryPositive: 0.1, Positive: 0.4, Negative: -0.1, VeryNegative: -0.4}
	require.Error(t, bad.Validate())
}

func TestAggregate_EmptyIsNotAvailable(t *testing.T) {
	t.Parallel()

	agg := sentiment.NewAggregator(sentiment.NewScorer(), sentiment.DefaultThresholds())

	empty := agg.Aggregate(nil)
	require.False(t, empty.Available)
	require.Equal(t, model.LabelNotAvailable, empty.Label)

	// One neutral article averages to zero but is a real result.
	one := agg.Aggregate([]model.NewsArticle{{Title: "Company schedules annual meeting"}})
	require.True(t, one.Available)
	require.Equal(t, model.LabelNeutral, one.Label)
	require.Equal(t, 1, one.ArticleCount)
	require.NotEqual(t, empty, one)
}

func TestAggregate_AveragesComponents(t *testing.T) {
	t.Parallel()

	agg := sentiment.NewAggregator(sentiment.NewScorer(), sentiment.DefaultThresholds())
	got := agg.Aggregate([]model.NewsArticle{
		{Sentiment: &model.SentimentScores{Positive: 0.6, Neutral: 0.4, Compound: 0.8}},
		{Sentiment: &model.SentimentScores{Negative: 0.2, Neutral: 0.8, Compound: -0.2}},
	})

	require.True(t, got.Available)
	require.Equal(t, 2, got.ArticleCount)
	require.InDelta(t, 0.3, got.Average.Compound, 1e-12)
	require.InDelta(t, 0.3, got.Average.Positive, 1e-12)
	require.InDelta(t, 0.6, got.Average.Neutral, 1e-12)
	require.InDelta(t, 0.1, got.Average.Negative, 1e-12)
	require.Equal(t, model.LabelPositive, got.Label)
}
