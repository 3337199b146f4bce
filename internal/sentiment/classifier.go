package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/forumpulse/internal/models"
)

const (
	bodyBudget         = 400
	classifyMaxTokens  = 30
	classifyTemp       = 0.1
	DefaultClassifyTTL = 30 * time.Second
)

// Classifier labels one post. Implementations never fail: any problem yields
// neutral with a zero score.
type Classifier interface {
	Classify(ctx context.Context, title, body string) (models.Sentiment, float64)
}

// Completer is the blocking half of the model client.
type Completer interface {
	Complete(ctx context.Context, prompt models.Prompt) (string, error)
}

type LLMClassifier struct {
	model   Completer
	timeout time.Duration
}

func NewLLMClassifier(model Completer, timeout time.Duration) *LLMClassifier {
	if timeout <= 0 {
		timeout = DefaultClassifyTTL
	}
	return &LLMClassifier{model: model, timeout: timeout}
}

const classifySystem = `You classify the sentiment of forum posts. Answer with exactly two lines and nothing else.`

// ClassificationPrompt bounds the body so latency stays predictable.
func ClassificationPrompt(title, body string) models.Prompt {
	text := strings.TrimSpace(title)
	if b := strings.TrimSpace(body); b != "" {
		text += "\n\n" + truncateRunes(b, bodyBudget, "")
	}
	return models.Prompt{
		System: classifySystem,
		User: fmt.Sprintf(`Analyze the sentiment of this Reddit post.
Classify as: POSITIVE, NEGATIVE, or NEUTRAL.
Score: -1.0 (negative) to +1.0 (positive).

Text: %s

Respond exactly:
Sentiment: [POSITIVE/NEGATIVE/NEUTRAL]
Score: [number]`, text),
		Temperature: classifyTemp,
		MaxTokens:   classifyMaxTokens,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, title, body string) (models.Sentiment, float64) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.model.Complete(ctx, ClassificationPrompt(title, body))
	if err != nil {
		kind := models.ErrModelUnavailable
		if errors.Is(err, models.ErrModelTimeout) || errors.Is(err, context.DeadlineExceeded) {
			kind = models.ErrModelTimeout
		}
		slog.Warn("[Classifier] Falling back to neutral",
			slog.String("title", truncateRunes(title, 60, "...")),
			slog.String("kind", kind.Error()),
			slog.Any("error", err))
		return models.SentimentNeutral, 0
	}

	switch v := ParseVerdict(raw).(type) {
	case Parsed:
		slog.Debug("[Classifier] Classified post",
			slog.String("label", string(v.Label)),
			slog.Float64("score", v.Score),
			slog.Duration("took", time.Since(start)))
		return v.Label, v.Score
	case Unparseable:
		slog.Warn("[Classifier] Falling back to neutral",
			slog.String("kind", models.ErrMalformedModelResponse.Error()),
			slog.String("raw", truncateRunes(v.Raw, 120, "...")))
	}
	return models.SentimentNeutral, 0
}
