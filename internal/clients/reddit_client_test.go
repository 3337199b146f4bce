package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/forumpulse/internal/models"
)

const listingJSON = `{"kind":"Listing","data":{"after":"t3_b","children":[
 {"kind":"t3","data":{"id":"pin","subreddit":"LocalLLaMA","title":"Rules","stickied":true,"created_utc":1700000000}},
 {"kind":"t3","data":{"id":"a1","subreddit":"LocalLLaMA","author":"alice","title":"Llama 3 on a Pi",
   "selftext":"it works","score":42,"ups":45,"downs":3,"num_comments":7,"created_utc":1700000123.0,
   "permalink":"/r/LocalLLaMA/comments/a1/llama_3/","url":"https://i.redd.it/x.png"}}
]}}`

func newTestReddit(baseURL string) *RedditClient {
	rc := NewRedditClient(RedditConfig{BaseURL: baseURL, RequestsPerMinute: 60000, UserAgent: "test-agent"})
	rc.initialBackoff = time.Millisecond
	return rc
}

func TestFetchNewPostsPublic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/LocalLLaMA/new.json", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		fmt.Fprint(w, listingJSON)
	}))
	defer srv.Close()

	posts, err := newTestReddit(srv.URL).FetchNewPosts(context.Background(), "LocalLLaMA", 25)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	p := posts[0]
	assert.Equal(t, "a1", p.ID)
	assert.Equal(t, "it works", p.Body)
	assert.Equal(t, 42, p.Score)
	assert.Equal(t, 7, p.NumComments)
	assert.Equal(t, time.Unix(1700000123, 0).UTC(), p.CreatedAt)
	assert.Equal(t, "https://reddit.com/r/LocalLLaMA/comments/a1/llama_3/", p.Permalink)
	assert.Equal(t, "LocalLLaMA", p.Forum)
	assert.Equal(t, models.SentimentUnset, p.Sentiment)
	assert.False(t, p.FetchedAt.IsZero())
}

func TestFetchNewPostsRetriesThrottling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			fmt.Fprint(w, listingJSON)
		}
	}))
	defer srv.Close()

	posts, err := newTestReddit(srv.URL).FetchNewPosts(context.Background(), "LocalLLaMA", 5)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetchNewPostsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/r/private/new.json" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	rc := newTestReddit(srv.URL)

	_, err := rc.FetchNewPosts(context.Background(), "private", 5)
	assert.ErrorContains(t, err, "unexpected status 403")

	_, err = rc.FetchNewPosts(context.Background(), "down", 5)
	assert.ErrorContains(t, err, "Max retries")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rc.FetchNewPosts(ctx, "down", 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchNewPostsOAuth(t *testing.T) {
	var tokens atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		tokens.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/r/LocalLLaMA/new", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, listingJSON)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rc := NewRedditClient(RedditConfig{
		ClientID:          "id",
		ClientSecret:      "secret",
		BaseURL:           srv.URL,
		TokenURL:          srv.URL + "/api/v1/access_token",
		RequestsPerMinute: 60000,
	})
	posts, err := rc.FetchNewPosts(context.Background(), "LocalLLaMA", 5)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
	assert.EqualValues(t, 1, tokens.Load())
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(fmt.Errorf("dial tcp: connection refused")))
	assert.True(t, isConnectionError(fmt.Errorf("read: i/o timeout")))
	assert.False(t, isConnectionError(fmt.Errorf("WRONGTYPE")))
}
