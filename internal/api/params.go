package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spacesedan/forumpulse/internal/models"
)

const (
	defaultDays        = 7
	maxDays            = 365
	defaultPostsLimit  = 50
	defaultSearchLimit = 50
)

func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", models.ErrInvalidQuery, name)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", models.ErrInvalidQuery, name, lo, hi)
	}
	return v, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// searchQuery reads q, subreddits, limit and sentiment. A missing limit falls
// back to def; the retriever applies its own ceiling.
func searchQuery(r *http.Request, def int) (models.Query, error) {
	params := r.URL.Query()
	q := models.Query{
		Text:   params.Get("q"),
		Forums: splitCSV(params.Get("subreddits")),
	}
	var err error
	if q.Limit, err = intParam(r, "limit", def, 0, 1_000_000); err != nil {
		return q, err
	}
	if q.Sentiment, err = models.ParseSentiment(params.Get("sentiment")); err != nil {
		return q, err
	}
	return q, nil
}
