package sentiment

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spacesedan/forumpulse/internal/models"
)

// Verdict is the parsed outcome of a classification reply: Parsed or Unparseable.
type Verdict interface {
	isVerdict()
}

type Parsed struct {
	Label models.Sentiment
	Score float64
}

type Unparseable struct {
	Raw string
}

func (Parsed) isVerdict()      {}
func (Unparseable) isVerdict() {}

const defaultPolarScore = 0.7

var (
	labelLine  = regexp.MustCompile(`(?i)sentiment\W{0,8}(positive|negative|neutral)`)
	anyLabel   = regexp.MustCompile(`(?i)\b(positive|negative|neutral)\b`)
	scoreLine  = regexp.MustCompile(`(?i)score[\s:=*\[]{0,6}([+-]?\d*\.?\d+)`)
	anyNumber  = regexp.MustCompile(`[+-]?\d*\.?\d+`)
	chatTokens = strings.NewReplacer("<|im_start|>", "", "<|im_end|>", "", "<|eot_id|>", "")
)

// StripChatTokens removes chat-template control tokens a raw completion may echo.
func StripChatTokens(s string) string {
	return strings.TrimSpace(chatTokens.Replace(s))
}

// ParseVerdict reads a label and a score out of free-form model output.
// "Sentiment: X" and "Score: N" lines win; otherwise the first label word and
// the first number inside [-1, 1] are used. A missing score defaults to ±0.7
// (0 for neutral). Without a label the reply is Unparseable.
func ParseVerdict(raw string) Verdict {
	text := StripChatTokens(raw)

	var label string
	if m := labelLine.FindStringSubmatch(text); m != nil {
		label = m[1]
	} else if m := anyLabel.FindStringSubmatch(text); m != nil {
		label = m[1]
	}
	if label == "" {
		return Unparseable{Raw: raw}
	}
	sentiment := models.Sentiment(strings.ToLower(label))

	score, ok := 0.0, false
	if m := scoreLine.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			score, ok = clamp(v), true
		}
	}
	if !ok {
		for _, m := range anyNumber.FindAllString(text, -1) {
			if v, err := strconv.ParseFloat(m, 64); err == nil && v >= -1 && v <= 1 {
				score, ok = v, true
				break
			}
		}
	}
	if !ok {
		switch sentiment {
		case models.SentimentPositive:
			score = defaultPolarScore
		case models.SentimentNegative:
			score = -defaultPolarScore
		}
	}
	return Parsed{Label: sentiment, Score: score}
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
