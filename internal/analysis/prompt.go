package analysis

import (
	"fmt"
	"strings"

	"github.com/spacesedan/forumpulse/internal/models"
)

const (
	EmptySummary = "No posts found matching this query."

	promptPosts     = 10
	promptBodyChars = 200
	summaryTemp     = 0.3
	summaryTokens   = 150
)

var chatTokens = []string{"<|im_start|>", "<|im_end|>", "<|eot_id|>"}

// SummaryPrompt asks for a short factual synthesis of the top posts.
func SummaryPrompt(query string, rs models.ResultSet, s models.SentimentSummary) models.Prompt {
	n := min(len(rs), promptPosts)
	snippets := make([]string, 0, n)
	for _, p := range rs[:n] {
		body := strings.TrimSpace(p.Body)
		if body == "" {
			body = "N/A"
		} else if r := []rune(body); len(r) > promptBodyChars {
			body = string(r[:promptBodyChars])
		}
		snippets = append(snippets, fmt.Sprintf("Title: %s\nContent: %s", p.Title, body))
	}

	user := fmt.Sprintf(`Analyze Reddit discussions about "%s".

Stats: %d positive, %d negative, %d neutral posts. Overall tone: %s.

Recent posts:
%s

Write a 2-3 sentence summary of what people are discussing and their general sentiment. Be concise and factual.`,
		query, s.Positive, s.Negative, s.Neutral, s.OverallTone, strings.Join(snippets, "\n---\n"))

	return models.Prompt{
		System:      "You summarize online community discussions in plain prose.",
		User:        user,
		Temperature: summaryTemp,
		MaxTokens:   summaryTokens,
	}
}

// FallbackSummary is used when the model streams nothing usable.
func FallbackSummary(query string, s models.SentimentSummary) string {
	return fmt.Sprintf("Found %d discussions about '%s'. The community sentiment is %s with %d positive, %d negative, and %d neutral reactions.",
		s.Total, query, s.OverallTone, s.Positive, s.Negative, s.Neutral)
}

// visibleText is the displayable form of accumulated model output: complete
// chat tokens are removed, a trailing partial token is held back, and
// surrounding whitespace is trimmed. For any extension of raw the result only
// grows.
func visibleText(raw string) string {
	for _, tok := range chatTokens {
		raw = strings.ReplaceAll(raw, tok, "")
	}
	raw = strings.TrimRight(raw[:len(raw)-partialTokenSuffix(raw)], " \t\r\n")
	return strings.TrimLeft(raw, " \t\r\n")
}

// partialTokenSuffix returns the length of the longest suffix of s that is a
// proper prefix of a chat token.
func partialTokenSuffix(s string) int {
	best := 0
	for _, tok := range chatTokens {
		for n := min(len(tok)-1, len(s)); n > best; n-- {
			if strings.HasSuffix(s, tok[:n]) {
				best = n
				break
			}
		}
	}
	return best
}
