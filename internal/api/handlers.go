package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spacesedan/forumpulse/internal/db"
	"github.com/spacesedan/forumpulse/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{"status": "ok", "store": "ok", "model": s.modelHealthy.Load()}
	status := http.StatusOK
	if err := s.dashboard.Ping(ctx); err != nil {
		body["status"], body["store"] = "unavailable", err.Error()
		status = http.StatusServiceUnavailable
	} else if !s.modelHealthy.Load() {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}

func (s *Server) handleSubreddits(w http.ResponseWriter, _ *http.Request) {
	forums := s.forums
	if forums == nil {
		forums = []string{}
	}
	writeJSON(w, http.StatusOK, forums)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dashboard.Stats(r.Context(), len(s.forums))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", defaultDays, 1, maxDays)
	if err != nil {
		writeFailure(w, err)
		return
	}
	limit, err := intParam(r, "limit", defaultPostsLimit, 1, 1000)
	if err != nil {
		writeFailure(w, err)
		return
	}
	label, err := models.ParseSentiment(r.URL.Query().Get("sentiment"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	posts, err := s.dashboard.ListPosts(r.Context(), db.PostFilter{
		Forum:     r.URL.Query().Get("subreddit"),
		Since:     s.now().AddDate(0, 0, -days),
		Sentiment: label,
		Limit:     limit,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", defaultDays, 1, maxDays)
	if err != nil {
		writeFailure(w, err)
		return
	}
	dist, err := s.dashboard.Distribution(r.Context(), r.URL.Query().Get("subreddit"), s.now().AddDate(0, 0, -days))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", defaultDays, 1, maxDays)
	if err != nil {
		writeFailure(w, err)
		return
	}
	tl, err := s.dashboard.Timeline(r.Context(), r.URL.Query().Get("subreddit"), days, s.now())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := searchQuery(r, defaultSearchLimit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	rs, err := s.searcher.Retrieve(r.Context(), q)
	if err != nil {
		writeFailure(w, err)
		return
	}

	res := models.SearchResult{Query: q.Text, TotalResults: len(rs), Posts: []models.Post(rs)}
	if res.Posts == nil {
		res.Posts = []models.Post{}
	}
	for _, p := range rs {
		switch p.Sentiment.Bucket() {
		case models.SentimentPositive:
			res.Positive++
		case models.SentimentNegative:
			res.Negative++
		default:
			res.Neutral++
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	q, err := searchQuery(r, 0)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res, err := s.analyzer.Analyze(r.Context(), q)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type triggerResponse struct {
	Message   string `json:"message"`
	Subreddit string `json:"subreddit"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	forum := strings.TrimSpace(r.URL.Query().Get("subreddit"))
	if forum == "" {
		forum = "LocalLLaMA"
	}
	n, err := s.ingester.FetchForum(r.Context(), forum)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("fetch r/%s failed: %v", forum, err))
		return
	}
	writeJSON(w, http.StatusOK, triggerResponse{
		Message:   fmt.Sprintf("Analyzed %d posts", n),
		Subreddit: forum,
	})
}
