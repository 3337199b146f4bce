package sentiment

import (
	"context"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"

	"github.com/spacesedan/forumpulse/internal/models"
)

const vaderThreshold = 0.20

var (
	markdownLink = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	bareURL      = regexp.MustCompile(`https?://\S+|www\.\S+`)
	htmlTag      = regexp.MustCompile(`<[^>]+>`)
)

func RemoveLinks(input string) string {
	input = markdownLink.ReplaceAllString(input, "$1")
	return bareURL.ReplaceAllString(input, "")
}

// ConvertMarkdownToText renders reddit markdown and keeps only the visible words.
func ConvertMarkdownToText(input string) string {
	input = RemoveLinks(input)
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plain := htmlTag.ReplaceAllString(string(output), " ")
	return strings.Join(strings.Fields(plain), " ")
}

// VaderClassifier is the offline classifier used when no model server is available.
type VaderClassifier struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderClassifier() *VaderClassifier {
	return &VaderClassifier{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderClassifier) Classify(_ context.Context, title, body string) (models.Sentiment, float64) {
	text := ConvertMarkdownToText(strings.TrimSpace(title + "\n\n" + body))
	if text == "" {
		return models.SentimentNeutral, 0
	}

	score := v.analyzer.PolarityScores(text).Compound
	switch {
	case score >= vaderThreshold:
		return models.SentimentPositive, score
	case score <= -vaderThreshold:
		return models.SentimentNegative, score
	default:
		return models.SentimentNeutral, score
	}
}
