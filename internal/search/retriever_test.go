package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/forumpulse/internal/db"
	"github.com/spacesedan/forumpulse/internal/models"
)

type fakeIndex struct {
	ids      []int64
	err      error
	gotLimit int
}

func (f *fakeIndex) Search(_ context.Context, _ string, limit int) ([]int64, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.ids) > limit {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

type fakeLoader struct {
	posts map[int64]models.Post
}

func (f *fakeLoader) ListByRowIDs(_ context.Context, ids []int64) ([]models.Post, error) {
	var out []models.Post
	for _, id := range ids {
		if p, ok := f.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func fixture() (*fakeIndex, *fakeLoader) {
	mk := func(row int64, id, forum string, score int, age time.Duration, label models.Sentiment) models.Post {
		p := models.Post{RowID: row, ID: id, Title: id, Forum: forum, Score: score, CreatedAt: base.Add(-age)}
		if label != models.SentimentUnset {
			p = p.WithVerdict(label, 0.5, base)
		}
		return p
	}
	posts := map[int64]models.Post{
		1: mk(1, "p1", "LocalLLaMA", 10, time.Hour, models.SentimentPositive),
		2: mk(2, "p2", "ollama", 50, time.Hour, models.SentimentNegative),
		3: mk(3, "p3", "LocalLLaMA", 10, time.Minute, models.SentimentNeutral),
		4: mk(4, "p4", "OpenAI", 7, time.Hour, models.SentimentPositive),
		5: mk(5, "p5", "ollama", 10, time.Minute, models.SentimentUnset),
	}
	// 99 was deleted after indexing.
	return &fakeIndex{ids: []int64{4, 99, 1, 2, 3, 5}}, &fakeLoader{posts: posts}
}

func ids(rs models.ResultSet) []string {
	out := make([]string, len(rs))
	for i, p := range rs {
		out[i] = p.ID
	}
	return out
}

func TestRetrieveRanksByScoreThenRecency(t *testing.T) {
	idx, loader := fixture()
	r := NewRetriever(idx, loader, 30, 100)

	rs, err := r.Retrieve(context.Background(), models.Query{Text: "llama"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3", "p5", "p1", "p4"}, ids(rs))
	assert.Equal(t, 30*OverFetch, idx.gotLimit)

	again, err := r.Retrieve(context.Background(), models.Query{Text: "llama"})
	require.NoError(t, err)
	assert.Equal(t, ids(rs), ids(again))
}

func TestRetrieveFilters(t *testing.T) {
	idx, loader := fixture()
	r := NewRetriever(idx, loader, 30, 100)
	ctx := context.Background()

	rs, err := r.Retrieve(ctx, models.Query{Text: "llama", Forums: []string{"localllama"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1"}, ids(rs))

	rs, err = r.Retrieve(ctx, models.Query{Text: "llama", Sentiment: models.SentimentPositive})
	require.NoError(t, err)
	for _, p := range rs {
		assert.Equal(t, models.SentimentPositive, p.Sentiment)
	}
	assert.Equal(t, []string{"p1", "p4"}, ids(rs))

	rs, err = r.Retrieve(ctx, models.Query{Text: "llama", Forums: []string{"nobody"}})
	require.NoError(t, err)
	assert.NotNil(t, rs)
	assert.Empty(t, rs)
}

func TestRetrieveLimits(t *testing.T) {
	idx, loader := fixture()
	r := NewRetriever(idx, loader, 2, 3)
	ctx := context.Background()

	rs, err := r.Retrieve(ctx, models.Query{Text: "llama"})
	require.NoError(t, err)
	assert.Len(t, rs, 2)
	assert.Equal(t, 2*OverFetch, idx.gotLimit)

	rs, err = r.Retrieve(ctx, models.Query{Text: "llama", Limit: 500})
	require.NoError(t, err)
	assert.Len(t, rs, 3)
	assert.Equal(t, 3*OverFetch, idx.gotLimit)

	assert.Equal(t, 1, r.Limit(1))
}

func TestRetrieveErrors(t *testing.T) {
	idx, loader := fixture()
	r := NewRetriever(idx, loader, 30, 100)

	_, err := r.Retrieve(context.Background(), models.Query{Text: "   "})
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	idx.err = errors.Join(models.ErrIndexUnavailable, errors.New("disk I/O error"))
	_, err = r.Retrieve(context.Background(), models.Query{Text: "llama"})
	assert.ErrorIs(t, err, models.ErrIndexUnavailable)
}

func TestRetrieveAgainstStore(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	store := db.NewStore(conn)

	_, err = store.InsertNew(ctx, []models.Post{
		{ID: "s1", Title: "Mistral 7B fine-tune", Forum: "LocalLLaMA", Score: 3, CreatedAt: base},
		{ID: "s2", Title: "fine-tune llama with LoRA", Forum: "llama", Score: 9, CreatedAt: base},
		{ID: "s3", Title: "unrelated", Body: "nothing here", Forum: "llama", Score: 100, CreatedAt: base},
	})
	require.NoError(t, err)

	r := NewRetriever(store, store, 30, 100)
	rs, err := r.Retrieve(ctx, models.Query{Text: "fine-tune"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1"}, ids(rs))

	require.NoError(t, store.Delete(ctx, "s2"))
	rs, err = r.Retrieve(ctx, models.Query{Text: "fine-tune"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids(rs))

	_, err = r.Retrieve(ctx, models.Query{Text: "NOT ()"})
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
}
