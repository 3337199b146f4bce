package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spacesedan/forumpulse/internal/models"
)

// OverFetch is how many index hits are requested per result slot, leaving room
// for the forum and sentiment filters.
const OverFetch = 5

type Index interface {
	Search(ctx context.Context, text string, limit int) ([]int64, error)
}

type PostLoader interface {
	ListByRowIDs(ctx context.Context, rowIDs []int64) ([]models.Post, error)
}

type Retriever struct {
	index        Index
	posts        PostLoader
	defaultLimit int
	maxLimit     int
}

func NewRetriever(index Index, posts PostLoader, defaultLimit, maxLimit int) *Retriever {
	if defaultLimit <= 0 {
		defaultLimit = 30
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &Retriever{index: index, posts: posts, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Limit resolves a requested result count against the default and the ceiling.
func (r *Retriever) Limit(requested int) int {
	switch {
	case requested <= 0:
		return r.defaultLimit
	case requested > r.maxLimit:
		return r.maxLimit
	default:
		return requested
	}
}

// Retrieve returns the posts matching q, best score first. No match is an empty
// ResultSet, not an error.
func (r *Retriever) Retrieve(ctx context.Context, q models.Query) (models.ResultSet, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty query", models.ErrInvalidQuery)
	}
	limit := r.Limit(q.Limit)
	start := time.Now()

	rowIDs, err := r.index.Search(ctx, text, limit*OverFetch)
	if err != nil {
		return nil, err
	}
	if len(rowIDs) == 0 {
		return models.ResultSet{}, nil
	}

	posts, err := r.posts.ListByRowIDs(ctx, rowIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: load posts: %v", models.ErrIndexUnavailable, err)
	}

	forums := forumSet(q.Forums)
	results := make(models.ResultSet, 0, len(posts))
	for _, p := range posts {
		if forums != nil && !forums[strings.ToLower(p.Forum)] {
			continue
		}
		if q.Sentiment != models.SentimentUnset && p.Sentiment != q.Sentiment {
			continue
		}
		results = append(results, p)
	}

	SortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}

	slog.Debug("[Retriever] Query resolved",
		slog.String("query", text),
		slog.Int("hits", len(rowIDs)),
		slog.Int("results", len(results)),
		slog.Duration("took", time.Since(start)))
	return results, nil
}

// SortByScore orders posts by score desc, then newest first, then id.
func SortByScore(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func forumSet(forums []string) map[string]bool {
	var set map[string]bool
	for _, f := range forums {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if set == nil {
			set = make(map[string]bool, len(forums))
		}
		set[f] = true
	}
	return set
}
