package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/spacesedan/forumpulse/internal/db"
	"github.com/spacesedan/forumpulse/internal/models"
)

type Analyzer interface {
	Stream(ctx context.Context, q models.Query) <-chan models.Event
	Analyze(ctx context.Context, q models.Query) (models.SearchAnalysis, error)
}

type Searcher interface {
	Retrieve(ctx context.Context, q models.Query) (models.ResultSet, error)
}

// Dashboard is the read side of the post store.
type Dashboard interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context, monitored int) (models.Stats, error)
	Distribution(ctx context.Context, forum string, since time.Time) (models.SentimentDistribution, error)
	Timeline(ctx context.Context, forum string, days int, now time.Time) (models.TimelineData, error)
	ListPosts(ctx context.Context, f db.PostFilter) ([]models.Post, error)
}

// Ingester runs an on-demand fetch of one forum.
type Ingester interface {
	FetchForum(ctx context.Context, forum string) (int, error)
}

type Deps struct {
	Analyzer     Analyzer
	Searcher     Searcher
	Dashboard    Dashboard
	Ingester     Ingester
	Forums       []string
	ModelHealthy *atomic.Bool
}

type Server struct {
	analyzer     Analyzer
	searcher     Searcher
	dashboard    Dashboard
	ingester     Ingester
	forums       []string
	modelHealthy *atomic.Bool
	newID        func() string
	now          func() time.Time
}

func NewServer(d Deps) *Server {
	healthy := d.ModelHealthy
	if healthy == nil {
		healthy = &atomic.Bool{}
		healthy.Store(true)
	}
	return &Server{
		analyzer:     d.Analyzer,
		searcher:     d.Searcher,
		dashboard:    d.Dashboard,
		ingester:     d.Ingester,
		forums:       d.Forums,
		modelHealthy: healthy,
		newID:        func() string { return uuid.NewString() },
		now:          time.Now,
	}
}

// Routes returns the full HTTP handler with middleware applied.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	s.RegisterHTTP(r)
	return r
}

func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/subreddits", s.handleSubreddits)
		r.Get("/stats", s.handleStats)
		r.Get("/posts", s.handlePosts)
		r.Get("/sentiment/distribution", s.handleDistribution)
		r.Get("/sentiment/timeline", s.handleTimeline)
		r.Get("/search", s.handleSearch)
		r.Get("/search/analysis", s.handleAnalysis)
		r.Get("/search/analysis/stream", s.handleAnalysisStream)
		if s.ingester != nil {
			r.Post("/analyze", s.handleTrigger)
		}
	})
}
