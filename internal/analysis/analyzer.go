package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/forumpulse/internal/models"
	"github.com/spacesedan/forumpulse/internal/sentiment"
)

const DefaultSummaryTimeout = 60 * time.Second

type Retriever interface {
	Retrieve(ctx context.Context, q models.Query) (models.ResultSet, error)
}

// Streamer is the streaming half of the model client. The delta channel and
// the error channel both close when the call ends.
type Streamer interface {
	Stream(ctx context.Context, p models.Prompt) (<-chan string, <-chan error)
}

// State is the position of one analysis request.
type State int

const (
	StateStarted State = iota
	StateSearching
	StateComputed
	StateSummarizing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateSearching:
		return "searching"
	case StateComputed:
		return "computed"
	case StateSummarizing:
		return "summarizing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Analyzer struct {
	retriever        Retriever
	model            Streamer
	summaryTimeout   time.Duration
	examplesPerClass int
}

func NewAnalyzer(retriever Retriever, model Streamer, summaryTimeout time.Duration, examplesPerClass int) *Analyzer {
	if summaryTimeout <= 0 {
		summaryTimeout = DefaultSummaryTimeout
	}
	if examplesPerClass <= 0 {
		examplesPerClass = sentiment.DefaultExamplesPerClass
	}
	return &Analyzer{
		retriever:        retriever,
		model:            model,
		summaryTimeout:   summaryTimeout,
		examplesPerClass: examplesPerClass,
	}
}

// Stream runs one analysis and returns its events in order:
// status* sentiment summary_chunk* complete, or a single error in place of the
// remainder. The channel closes after the terminal event. Cancelling ctx stops
// emission and aborts the model call; the channel then closes without a
// terminal event.
func (a *Analyzer) Stream(ctx context.Context, q models.Query) <-chan models.Event {
	events := make(chan models.Event)
	go func() {
		defer close(events)
		run := &request{a: a, ctx: ctx, q: q, events: events, start: time.Now()}
		run.execute()
	}()
	return events
}

// Analyze is the blocking form of Stream: it returns the complete payload or
// the error that ended the stream.
func (a *Analyzer) Analyze(ctx context.Context, q models.Query) (models.SearchAnalysis, error) {
	for ev := range a.Stream(ctx, q) {
		switch e := ev.(type) {
		case models.CompleteEvent:
			return e.SearchAnalysis, nil
		case models.ErrorEvent:
			if e.Err != nil {
				return models.SearchAnalysis{}, e.Err
			}
			return models.SearchAnalysis{}, errors.New(e.Message)
		}
	}
	if err := ctx.Err(); err != nil {
		return models.SearchAnalysis{}, err
	}
	return models.SearchAnalysis{}, errors.New("analysis ended without a result")
}

// request owns the emission order for one Stream call.
type request struct {
	a      *Analyzer
	ctx    context.Context
	q      models.Query
	events chan<- models.Event
	state  State
	start  time.Time
}

func (r *request) emit(ev models.Event) bool {
	if r.ctx.Err() != nil {
		return false
	}
	select {
	case r.events <- ev:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *request) transition(s State) {
	slog.Debug("[Analyzer] State change",
		slog.String("query", r.q.Text),
		slog.String("from", r.state.String()),
		slog.String("to", s.String()))
	r.state = s
}

func (r *request) fail(err error) {
	from := r.state
	r.transition(StateFailed)
	if r.ctx.Err() != nil {
		return
	}
	slog.Warn("[Analyzer] Analysis failed",
		slog.String("query", r.q.Text),
		slog.String("state", from.String()),
		slog.Any("error", err))
	r.emit(models.ErrorEvent{Message: ErrorMessage(err), Err: err})
}

func (r *request) execute() {
	r.q.Text = strings.TrimSpace(r.q.Text)
	if r.q.Text == "" {
		r.fail(fmt.Errorf("%w: empty query", models.ErrInvalidQuery))
		return
	}

	r.transition(StateSearching)
	if !r.emit(models.StatusEvent{Message: "Searching posts..."}) {
		return
	}
	rs, err := r.a.retriever.Retrieve(r.ctx, r.q)
	if err != nil {
		r.fail(err)
		return
	}
	if !r.emit(models.StatusEvent{Message: fmt.Sprintf("Found %d posts", len(rs))}) {
		return
	}

	r.transition(StateComputed)
	summary, examples := sentiment.Aggregate(rs, r.a.examplesPerClass)
	if !r.emit(models.NewSentimentEvent(summary)) {
		return
	}

	r.transition(StateSummarizing)
	text := EmptySummary
	if len(rs) > 0 {
		var ok bool
		if text, ok = r.summarize(rs, summary); !ok {
			return
		}
	}

	r.transition(StateCompleted)
	if r.emit(models.CompleteEvent{SearchAnalysis: models.SearchAnalysis{
		Query:            r.q.Text,
		Summary:          text,
		SentimentSummary: summary,
		Examples:         examples,
	}}) {
		slog.Info("[Analyzer] Analysis complete",
			slog.String("query", r.q.Text),
			slog.Int("posts", summary.Total),
			slog.String("tone", summary.OverallTone),
			slog.Duration("took", time.Since(r.start)))
	}
}

// summarize streams the model summary, emitting the accumulated visible text
// as it grows. ok is false when the request ended (failure or cancellation).
func (r *request) summarize(rs models.ResultSet, s models.SentimentSummary) (string, bool) {
	ctx, cancel := context.WithTimeout(r.ctx, r.a.summaryTimeout)
	defer cancel()

	deltas, errc := r.a.model.Stream(ctx, SummaryPrompt(r.q.Text, rs, s))

	var raw strings.Builder
	last := ""
	for delta := range deltas {
		raw.WriteString(delta)
		text := visibleText(raw.String())
		if len(text) <= len(last) || !strings.HasPrefix(text, last) {
			continue
		}
		last = text
		if !r.emit(models.SummaryChunkEvent{Accumulated: text}) {
			return "", false
		}
	}

	if err := <-errc; err != nil {
		if r.ctx.Err() != nil {
			return "", false
		}
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			err = fmt.Errorf("%w: no summary after %s", models.ErrModelTimeout, r.a.summaryTimeout)
		}
		r.fail(err)
		return "", false
	}

	if text := visibleText(raw.String()); text != "" {
		return text, true
	}
	return FallbackSummary(r.q.Text, s), true
}

// ErrorMessage is the client-facing text for an analysis failure.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		return err.Error()
	case errors.Is(err, models.ErrIndexUnavailable):
		return "Search is temporarily unavailable, please retry."
	case errors.Is(err, models.ErrModelTimeout):
		return "The summary model took too long to respond."
	case errors.Is(err, models.ErrModelUnavailable):
		return "The summary model is unavailable."
	default:
		return "Analysis failed: " + err.Error()
	}
}
