package models

// Event is one message of an analysis stream. The concrete types below are the
// only implementations; EventName is the SSE event tag.
type Event interface {
	EventName() string
}

type StatusEvent struct {
	Message string `json:"message"`
}

type SentimentEvent struct {
	Total           int     `json:"total"`
	Positive        int     `json:"positive"`
	Neutral         int     `json:"neutral"`
	Negative        int     `json:"negative"`
	PositivePercent float64 `json:"positive_percent"`
	NegativePercent float64 `json:"negative_percent"`
	OverallTone     string  `json:"overall_tone"`
}

// SummaryChunkEvent carries the whole summary accumulated so far, not a delta.
type SummaryChunkEvent struct {
	Accumulated string `json:"accumulated"`
}

type CompleteEvent struct {
	SearchAnalysis
}

type ErrorEvent struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (StatusEvent) EventName() string       { return "status" }
func (SentimentEvent) EventName() string    { return "sentiment" }
func (SummaryChunkEvent) EventName() string { return "summary_chunk" }
func (CompleteEvent) EventName() string     { return "complete" }
func (ErrorEvent) EventName() string        { return "error" }

func NewSentimentEvent(s SentimentSummary) SentimentEvent {
	return SentimentEvent{
		Total:           s.Total,
		Positive:        s.Positive,
		Neutral:         s.Neutral,
		Negative:        s.Negative,
		PositivePercent: s.PositivePercent,
		NegativePercent: s.NegativePercent,
		OverallTone:     s.OverallTone,
	}
}
