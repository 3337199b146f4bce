package models

import (
	"fmt"
	"strings"
	"time"
)

type Sentiment string

const (
	SentimentUnset    Sentiment = ""
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment accepts the three labels case-insensitively; empty input is SentimentUnset.
func ParseSentiment(raw string) (Sentiment, error) {
	switch s := Sentiment(strings.ToLower(strings.TrimSpace(raw))); s {
	case SentimentUnset, SentimentPositive, SentimentNeutral, SentimentNegative:
		return s, nil
	default:
		return SentimentUnset, fmt.Errorf("%w: unknown sentiment %q", ErrInvalidQuery, raw)
	}
}

// Bucket coerces an unset label to neutral for aggregation.
func (s Sentiment) Bucket() Sentiment {
	if s == SentimentPositive || s == SentimentNegative {
		return s
	}
	return SentimentNeutral
}

// Post is one forum submission. Sentiment and SentimentScore are set together,
// once, by classification.
type Post struct {
	RowID          int64      `json:"-"`
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Body           string     `json:"selftext"`
	Author         string     `json:"author"`
	Score          int        `json:"score"`
	Ups            int        `json:"ups"`
	Downs          int        `json:"downs"`
	NumComments    int        `json:"num_comments"`
	CreatedAt      time.Time  `json:"created_utc"`
	Permalink      string     `json:"permalink"`
	URL            string     `json:"url"`
	Forum          string     `json:"subreddit"`
	Sentiment      Sentiment  `json:"sentiment,omitempty"`
	SentimentScore *float64   `json:"sentiment_score,omitempty"`
	AnalyzedAt     *time.Time `json:"analyzed_at,omitempty"`
	FetchedAt      time.Time  `json:"fetched_at"`
}

func (p Post) Classified() bool {
	return p.Sentiment != SentimentUnset && p.SentimentScore != nil
}

// WithVerdict returns a copy of p carrying the classification.
func (p Post) WithVerdict(label Sentiment, score float64, at time.Time) Post {
	p.Sentiment = label
	p.SentimentScore = &score
	p.AnalyzedAt = &at
	return p
}

// Query is a free-text search plus optional filters. Empty Forums means all forums.
type Query struct {
	Text      string
	Forums    []string
	Sentiment Sentiment
	Limit     int
}

// ResultSet is ordered by score desc, then creation time desc.
type ResultSet []Post
