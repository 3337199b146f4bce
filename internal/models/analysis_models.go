package models

// SentimentSummary holds the counts and percentages for one ResultSet.
// The three percentages always add up to 100 for a non-empty set.
type SentimentSummary struct {
	Total           int     `json:"total"`
	Positive        int     `json:"positive"`
	Neutral         int     `json:"neutral"`
	Negative        int     `json:"negative"`
	PositivePercent float64 `json:"positive_percent"`
	NegativePercent float64 `json:"negative_percent"`
	NeutralPercent  float64 `json:"neutral_percent"`
	OverallTone     string  `json:"overall_tone"`
}

type Citation struct {
	Title     string    `json:"title"`
	Subreddit string    `json:"subreddit"`
	Author    string    `json:"author"`
	Sentiment Sentiment `json:"sentiment"`
	Score     int       `json:"score"`
	URL       string    `json:"url"`
}

// Examples are the representative citations per sentiment class.
type Examples struct {
	Positive []Citation `json:"positive_examples"`
	Negative []Citation `json:"negative_examples"`
	Neutral  []Citation `json:"neutral_examples"`
}

// SearchAnalysis is the terminal payload of an analysis request.
type SearchAnalysis struct {
	Query            string           `json:"query,omitempty"`
	Summary          string           `json:"summary"`
	SentimentSummary SentimentSummary `json:"sentiment_summary"`
	Examples
}

// SearchResult is the plain search response.
type SearchResult struct {
	Query        string `json:"query"`
	TotalResults int    `json:"total_results"`
	Positive     int    `json:"positive"`
	Neutral      int    `json:"neutral"`
	Negative     int    `json:"negative"`
	Posts        []Post `json:"posts"`
}

type SentimentDistribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

type TimelineData struct {
	Labels   []string `json:"labels"`
	Positive []int    `json:"positive"`
	Neutral  []int    `json:"neutral"`
	Negative []int    `json:"negative"`
}

type Stats struct {
	TotalPosts          int                   `json:"total_posts"`
	Sentiment           SentimentDistribution `json:"sentiment"`
	Subreddits          map[string]int        `json:"subreddits"`
	LastUpdated         *string               `json:"last_updated"`
	MonitoredSubreddits int                   `json:"monitored_subreddits"`
}
