// Package sentiment scores free text with VADER and folds per-article
// scores into one labelled aggregate.
package sentiment

import (
	"math"
	"strings"
	"unicode"

	"github.com/jonreiter/govader"

	"stocktracker/internal/model"
)

// Scorer wraps a VADER analyzer. The analyzer only reads its lexicons
// after construction, so a Scorer is safe for concurrent use.
type Scorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewScorer() *Scorer {
	return &Scorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score returns the polarity of text. Text without a letter or digit
// scores all zero.
func (s *Scorer) Score(text string) model.SentimentScores {
	if strings.IndexFunc(text, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
		return model.SentimentScores{}
	}
	p := s.analyzer.PolarityScores(text)
	return model.SentimentScores{
		Positive: finite(p.Positive),
		Neutral:  finite(p.Neutral),
		Negative: finite(p.Negative),
		Compound: math.Max(-1, math.Min(1, finite(p.Compound))),
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
