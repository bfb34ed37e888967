package model

import "time"

// NewsArticle is one candidate or kept news item. URL is the identity key.
type NewsArticle struct {
	Title       string           `json:"title"`
	URL         string           `json:"url"`
	Description string           `json:"description"`
	FullText    string           `json:"full_text,omitempty"`
	SourceName  string           `json:"source_name"`
	PublishedAt time.Time        `json:"published_at"`
	Relevant    bool             `json:"relevant"`
	Sentiment   *SentimentScores `json:"sentiment,omitempty"`
}

// ScoringText is the title, description and full text joined for scoring.
func (a NewsArticle) ScoringText() string {
	return a.Title + " " + a.Description + " " + a.FullText
}

// SentimentScores are proportions in [0,1] summing to about 1, plus a compound score in [-1,1].
type SentimentScores struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
	Compound float64 `json:"compound"`
}

// Sentiment labels.
const (
	LabelVeryPositive = "Very Positive"
	LabelPositive     = "Positive"
	LabelNeutral      = "Neutral"
	LabelNegative     = "Negative"
	LabelVeryNegative = "Very Negative"
	LabelNotAvailable = "N/A"
)

// AggregateSentiment folds per-article scores. Available is false for the
// "not available" sentinel produced from zero articles.
type AggregateSentiment struct {
	Available    bool            `json:"available"`
	Label        string          `json:"label"`
	Average      SentimentScores `json:"average"`
	ArticleCount int             `json:"article_count"`
}

// NotAvailable is the sentinel for an empty article set.
func NotAvailable() AggregateSentiment {
	return AggregateSentiment{Available: false, Label: LabelNotAvailable}
}
