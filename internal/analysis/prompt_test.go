package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spacesedan/forumpulse/internal/models"
)

func TestSummaryPrompt(t *testing.T) {
	rs := make(models.ResultSet, 12)
	for i := range rs {
		rs[i] = models.Post{Title: "t" + strings.Repeat("x", i)}
	}
	rs[0].Body = strings.Repeat("b", 500)

	p := SummaryPrompt("gpu", rs, models.SentimentSummary{Positive: 1, Negative: 2, Neutral: 9, OverallTone: "neutral"})
	assert.Equal(t, 10, strings.Count(p.User, "Title: "))
	assert.Equal(t, 9, strings.Count(p.User, "\n---\n"))
	assert.Contains(t, p.User, "Content: "+strings.Repeat("b", 200)+"\n---\n")
	assert.Contains(t, p.User, "Content: N/A")
	assert.Contains(t, p.User, "Stats: 1 positive, 2 negative, 9 neutral posts. Overall tone: neutral.")
	assert.InDelta(t, 0.3, p.Temperature, 1e-9)
	assert.Equal(t, 150, p.MaxTokens)
}

func TestVisibleTextOnlyGrows(t *testing.T) {
	full := "  <|im_start|>Users <like> the 4-bit <|im_end|>quants<|im_end|>"
	prev := ""
	for i := 0; i <= len(full); i++ {
		cur := visibleText(full[:i])
		assert.True(t, strings.HasPrefix(cur, prev), "prefix %q -> %q", prev, cur)
		prev = cur
	}
	assert.Equal(t, "Users <like> the 4-bit quants", prev)
}

func TestFallbackSummary(t *testing.T) {
	s := models.SentimentSummary{Total: 3, Positive: 1, Negative: 1, Neutral: 1, OverallTone: "neutral"}
	assert.Equal(t,
		"Found 3 discussions about 'rag'. The community sentiment is neutral with 1 positive, 1 negative, and 1 neutral reactions.",
		FallbackSummary("rag", s))
}
