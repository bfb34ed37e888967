package sentiment

import (
	"fmt"

	"stocktracker/internal/model"
)

// Thresholds classify an averaged compound score:
//
//	c > VeryPositive           Very Positive
//	Positive <= c <= VeryPositive  Positive
//	Negative < c < Positive    Neutral
//	VeryNegative <= c <= Negative  Negative
//	otherwise                  Very Negative
type Thresholds struct {
	VeryPositive float64 `yaml:"very_positive"`
	Positive     float64 `yaml:"positive"`
	Negative     float64 `yaml:"negative"`
	VeryNegative float64 `yaml:"very_negative"`
}

// DefaultThresholds is the 0.4 / 0.1 table.
func DefaultThresholds() Thresholds {
	return Thresholds{VeryPositive: 0.4, Positive: 0.1, Negative: -0.1, VeryNegative: -0.4}
}

// Validate checks the cutoffs are strictly ordered inside [-1, 1].
func (t Thresholds) Validate() error {
	if !(-1 <= t.VeryNegative && t.VeryNegative < t.Negative && t.Negative < t.Positive && t.Positive < t.VeryPositive && t.VeryPositive <= 1) {
		return fmt.Errorf("sentiment thresholds must satisfy -1 <= very_negative < negative < positive < very_positive <= 1, got %+v", t)
	}
	return nil
}

// Label maps a compound score to its label.
func (t Thresholds) Label(compound float64) string {
	switch {
	case compound > t.VeryPositive:
		return model.LabelVeryPositive
	case compound >= t.Positive:
		return model.LabelPositive
	case compound > t.Negative:
		return model.LabelNeutral
	case compound >= t.VeryNegative:
		return model.LabelNegative
	default:
		return model.LabelVeryNegative
	}
}

// Aggregator averages per-article scores and labels the result.
type Aggregator struct {
	Scorer     *Scorer
	Thresholds Thresholds
}

func NewAggregator(scorer *Scorer, t Thresholds) *Aggregator {
	return &Aggregator{Scorer: scorer, Thresholds: t}
}

// Aggregate returns the "not available" sentinel for no articles. Articles
// that already carry scores are not rescored.
func (a *Aggregator) Aggregate(articles []model.NewsArticle) model.AggregateSentiment {
	if len(articles) == 0 {
		return model.NotAvailable()
	}
	var sum model.SentimentScores
	for _, art := range articles {
		s := art.Sentiment
		if s == nil {
			scored := a.Scorer.Score(art.ScoringText())
			s = &scored
		}
		sum.Positive += s.Positive
		sum.Neutral += s.Neutral
		sum.Negative += s.Negative
		sum.Compound += s.Compound
	}
	n := float64(len(articles))
	avg := model.SentimentScores{
		Positive: sum.Positive / n,
		Neutral:  sum.Neutral / n,
		Negative: sum.Negative / n,
		Compound: sum.Compound / n,
	}
	return model.AggregateSentiment{
		Available:    true,
		Label:        a.Thresholds.Label(avg.Compound),
		Average:      avg,
		ArticleCount: len(articles),
	}
}
