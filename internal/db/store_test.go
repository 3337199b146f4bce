package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/spacesedan/forumpulse/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func post(id, forum, title, body string, score int, created time.Time) models.Post {
	return models.Post{
		ID:        id,
		Title:     title,
		Body:      body,
		Author:    "u_" + id,
		Score:     score,
		CreatedAt: created,
		Permalink: "/r/" + forum + "/comments/" + id,
		URL:       "https://reddit.com/r/" + forum + "/comments/" + id,
		Forum:     forum,
		FetchedAt: created,
	}
}

func TestMatchExpression(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		invalid bool
	}{
		{in: "llama", want: `"llama"`},
		{in: "  GPT-4o  release ", want: `"GPT" "4o" "release"`},
		{in: `llama OR "mistral" NOT*`, want: `"llama" "mistral"`},
		{in: "café", want: `"café"`},
		{in: "nai\u0308ve take", want: "\"nai\u0308ve\" \"take\""},
		{in: "\u0308 \u0301", invalid: true},
		{in: "and or", want: `"and" "or"`},
		{in: "", invalid: true},
		{in: "   ", invalid: true},
		{in: `"" * () ^ -`, invalid: true},
		{in: "AND OR NOT", invalid: true},
	}
	for _, tc := range cases {
		got, err := MatchExpression(tc.in)
		if tc.invalid {
			assert.ErrorIs(t, err, models.ErrInvalidQuery, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestInsertNewIndexesAndSkipsKnown(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	n, err := s.InsertNew(ctx, []models.Post{
		post("a1", "LocalLLaMA", "Llama 3 runs great on my laptop", "", 10, now),
		post("a2", "ollama", "Ollama update broke GPU offload", "llama.cpp backend issue", 5, now),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	again := post("a1", "LocalLLaMA", "changed title", "", 99, now)
	n, err = s.InsertNew(ctx, []models.Post{again, {ID: "", Forum: "x"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Llama 3 runs great on my laptop", got.Title)
	assert.Equal(t, 10, got.Score)
	assert.Equal(t, now, got.CreatedAt)
	assert.False(t, got.Classified())

	ids, err := s.Search(ctx, "llama", 10)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	known, err := s.KnownIDs(ctx, []string{"a1", "a2", "zz"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a1": true, "a2": true}, known)
}

func TestUpsertKeepsVerdictAndReindexes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	first := post("b1", "OpenAI", "Sora demo", "impressive video", 3, now).
		WithVerdict(models.SentimentPositive, 0.8, now)
	rowID, err := s.Upsert(ctx, first)
	require.NoError(t, err)

	second := post("b1", "OpenAI", "Sora pricing", "too expensive", 40, now).
		WithVerdict(models.SentimentNegative, -0.9, now)
	rowID2, err := s.Upsert(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, rowID, rowID2)

	got, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Sora pricing", got.Title)
	assert.Equal(t, 40, got.Score)
	assert.Equal(t, models.SentimentPositive, got.Sentiment)
	require.NotNil(t, got.SentimentScore)
	assert.InDelta(t, 0.8, *got.SentimentScore, 1e-9)

	ids, err := s.Search(ctx, "demo", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = s.Search(ctx, "pricing", 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{rowID}, ids)
}

func TestSearchIsAccentAndCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.InsertNew(ctx, []models.Post{
		post("c1", "artificial", "Café owners adopt GPT-4o", "", 1, now),
		post("c2", "artificial", "GPT-4 vs Claude", "", 1, now),
	})
	require.NoError(t, err)

	ids, err := s.Search(ctx, "CAFE", 10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	ids, err = s.Search(ctx, "gpt-4o", 10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	ids, err = s.Search(ctx, "gpt", 1)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	_, err = s.Search(ctx, "(*)", 10)
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
}

func TestSearchMatchesDecomposedText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rowID, err := s.Upsert(ctx, post("n1", "LocalLLaMA", "nai\u0308ve take", "", 1, now))
	require.NoError(t, err)

	for _, q := range []string{"nai\u0308ve", "naïve", "naive"} {
		ids, err := s.Search(ctx, q, 10)
		require.NoError(t, err, "query %q", q)
		assert.Equal(t, []int64{rowID}, ids, "query %q", q)
	}
}

func TestDeleteRemovesIndexEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertNew(ctx, []models.Post{post("d1", "llama", "quantization tips", "", 1, time.Now())})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "d1"))
	require.NoError(t, s.Delete(ctx, "d1"))

	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, got)

	ids, err := s.Search(ctx, "quantization", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSetSentimentOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	_, err := s.InsertNew(ctx, []models.Post{post("e1", "ClaudeAI", "Claude context window", "", 1, now)})
	require.NoError(t, err)

	pending, err := s.ListUnclassified(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	ok, err := s.SetSentiment(ctx, "e1", models.SentimentPositive, 0.6, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetSentiment(ctx, "e1", models.SentimentNegative, -0.6, now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.SetSentiment(ctx, "e1", models.SentimentUnset, 0, now)
	assert.Error(t, err)

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentPositive, got.Sentiment)
	require.NotNil(t, got.AnalyzedAt)
	assert.Equal(t, now, *got.AnalyzedAt)

	pending, err = s.ListUnclassified(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestListByRowIDsAndRebuild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := s.InsertNew(ctx, []models.Post{
		post("f1", "huggingface", "transformers release", "", 1, now),
		post("f2", "huggingface", "transformers bug", "", 2, now),
	})
	require.NoError(t, err)

	ids, err := s.Search(ctx, "transformers", 10)
	require.NoError(t, err)
	posts, err := s.ListByRowIDs(ctx, append(ids, 9999))
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	n, err := s.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err = s.Search(ctx, "bug", 10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestDeleteOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.InsertNew(ctx, []models.Post{
		post("g1", "deeplearning", "old gradient thread", "", 1, now.AddDate(0, 0, -200)),
		post("g2", "deeplearning", "new gradient thread", "", 1, now),
	})
	require.NoError(t, err)

	n, err := s.DeleteOlderThan(ctx, now.AddDate(0, 0, -180))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ids, err := s.Search(ctx, "gradient", 10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestDashboardQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	classified := func(p models.Post, l models.Sentiment) models.Post { return p.WithVerdict(l, 0.5, now) }
	for _, p := range []models.Post{
		classified(post("h1", "llama", "a", "", 1, now), models.SentimentPositive),
		classified(post("h2", "llama", "b", "", 1, now.AddDate(0, 0, -1)), models.SentimentNegative),
		classified(post("h3", "ollama", "c", "", 1, now.AddDate(0, 0, -1)), models.SentimentPositive),
		classified(post("h4", "ollama", "d", "", 1, now.AddDate(0, 0, -30)), models.SentimentNeutral),
		post("h5", "ollama", "e", "", 1, now),
	} {
		_, err := s.Upsert(ctx, p)
		require.NoError(t, err)
	}

	stats, err := s.Stats(ctx, 15)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalPosts)
	assert.Equal(t, models.SentimentDistribution{Positive: 2, Neutral: 1, Negative: 1}, stats.Sentiment)
	assert.Equal(t, map[string]int{"llama": 2, "ollama": 3}, stats.Subreddits)
	assert.Equal(t, 15, stats.MonitoredSubreddits)
	require.NotNil(t, stats.LastUpdated)

	dist, err := s.Distribution(ctx, "llama", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Equal(t, models.SentimentDistribution{Positive: 1, Negative: 1}, dist)

	dist, err = s.Distribution(ctx, "all", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Equal(t, models.SentimentDistribution{Positive: 2, Negative: 1}, dist)

	tl, err := s.Timeline(ctx, "", 3, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-08", "2025-03-09", "2025-03-10"}, tl.Labels)
	assert.Equal(t, []int{0, 1, 1}, tl.Positive)
	assert.Equal(t, []int{0, 1, 0}, tl.Negative)
	assert.Equal(t, []int{0, 0, 0}, tl.Neutral)

	recent, err := s.ListPosts(ctx, PostFilter{Forum: "ollama", Since: now.AddDate(0, 0, -7), Limit: 10})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "h5", recent[0].ID)

	recent, err = s.ListPosts(ctx, PostFilter{Since: now.AddDate(0, 0, -7), Sentiment: models.SentimentPositive, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestSearchDuringConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, filepath.Join(t.TempDir(), "posts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	s := NewStore(conn)

	now := time.Now().UTC()
	version := func(i int) models.Post {
		return post("r1", "LocalLLaMA", fmt.Sprintf("lunar rover build %d", i), fmt.Sprintf("revision %d of the rover", i), i, now)
	}
	rowID, err := s.Upsert(ctx, version(0))
	require.NoError(t, err)

	const rounds = 200
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := 1; i <= rounds; i++ {
			id, err := s.Upsert(gctx, version(i))
			if err != nil {
				return err
			}
			if id != rowID {
				return fmt.Errorf("upsert %d moved row %d to %d", i, rowID, id)
			}
		}
		return nil
	})
	for r := 0; r < 2; r++ {
		g.Go(func() error {
			for i := 0; i < rounds; i++ {
				ids, err := s.Search(gctx, "rover", 10)
				if err != nil {
					return err
				}
				if len(ids) != 1 || ids[0] != rowID {
					return fmt.Errorf("search %d returned %v, want [%d]", i, ids, rowID)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, fmt.Sprintf("lunar rover build %d", rounds), got.Title)
}
