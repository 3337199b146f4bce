package processing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spacesedan/forumpulse/internal/models"
	"github.com/spacesedan/forumpulse/internal/sentiment"
	"github.com/spacesedan/forumpulse/internal/utils"
)

type Fetcher interface {
	FetchNewPosts(ctx context.Context, forum string, limit int) ([]models.Post, error)
}

// ProcessedCache is an optional fast path for "seen this id before".
type ProcessedCache interface {
	IsProcessed(ctx context.Context, id string) bool
	MarkProcessed(ctx context.Context, ids ...string) error
}

type PostStore interface {
	KnownIDs(ctx context.Context, ids []string) (map[string]bool, error)
	InsertNew(ctx context.Context, posts []models.Post) (int, error)
	ListUnclassified(ctx context.Context, limit int) ([]models.Post, error)
	SetSentiment(ctx context.Context, id string, label models.Sentiment, score float64, at time.Time) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

type PollerConfig struct {
	Forums         []string
	Interval       time.Duration
	PostsPerFetch  int
	RetentionDays  int
	ClassifyPerSec float64
	Concurrency    int
	SweepLimit     int
}

// CycleStats describes one ingestion cycle.
type CycleStats struct {
	Forums   int
	Failed   int
	Inserted int
	Swept    int
	Expired  int
}

// Poller fetches new posts from every forum, classifies them and stores them.
type Poller struct {
	fetcher    Fetcher
	store      PostStore
	classifier sentiment.Classifier
	cache      ProcessedCache
	cfg        PollerConfig
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewPoller wires the ingestion loop. cache may be nil.
func NewPoller(fetcher Fetcher, store PostStore, classifier sentiment.Classifier, cache ProcessedCache, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.PostsPerFetch <= 0 {
		cfg.PostsPerFetch = 25
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = 50
	}
	limit := rate.Inf
	if cfg.ClassifyPerSec > 0 {
		limit = rate.Limit(cfg.ClassifyPerSec)
	}
	return &Poller{
		fetcher:    fetcher,
		store:      store,
		classifier: classifier,
		cache:      cache,
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, 1),
		now:        time.Now,
	}
}

func (p *Poller) Forums() []string {
	return append([]string(nil), p.cfg.Forums...)
}

// Run executes a cycle immediately and then every Interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("[Poller] Starting ingestion loop",
		slog.Int("forums", len(p.cfg.Forums)),
		slog.Duration("interval", p.cfg.Interval))

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Error("[Poller] Cycle failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			slog.Info("[Poller] Stopping ingestion loop")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce polls every forum, then classifies stragglers and enforces retention.
// A failing forum is logged and skipped.
func (p *Poller) RunOnce(ctx context.Context) (CycleStats, error) {
	start := time.Now()
	stats := CycleStats{Forums: len(p.cfg.Forums)}

	inserted := make([]int, len(p.cfg.Forums))
	failed := make([]bool, len(p.cfg.Forums))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, forum := range p.cfg.Forums {
		g.Go(func() error {
			n, err := p.FetchForum(gctx, forum)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("[Poller] Forum fetch failed",
					slog.String("forum", forum),
					slog.Any("error", err))
				failed[i] = true
				return nil
			}
			inserted[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	for i := range inserted {
		stats.Inserted += inserted[i]
		if failed[i] {
			stats.Failed++
		}
	}

	var err error
	if stats.Swept, err = p.Sweep(ctx); err != nil {
		slog.Warn("[Poller] Classification sweep failed", slog.Any("error", err))
	}
	if stats.Expired, err = p.Cleanup(ctx); err != nil {
		slog.Warn("[Poller] Retention cleanup failed", slog.Any("error", err))
	}

	slog.Info("[Poller] Cycle complete",
		slog.Int("forums", stats.Forums),
		slog.Int("failed", stats.Failed),
		slog.Int("inserted", stats.Inserted),
		slog.Int("swept", stats.Swept),
		slog.Int("expired", stats.Expired),
		slog.Duration("took", time.Since(start)))
	return stats, ctx.Err()
}

// FetchForum ingests the newest posts of one forum and returns how many were new.
func (p *Poller) FetchForum(ctx context.Context, forum string) (int, error) {
	posts, err := p.fetcher.FetchNewPosts(ctx, forum, p.cfg.PostsPerFetch)
	if err != nil {
		return 0, fmt.Errorf("fetch r/%s: %w", forum, err)
	}

	fresh, err := p.unseen(ctx, posts)
	if err != nil {
		return 0, err
	}
	if len(fresh) == 0 {
		slog.Debug("[Poller] Nothing new", slog.String("forum", forum))
		return 0, nil
	}

	batch := utils.NewBatchBuffer[models.Post](utils.BATCH_SIZE)
	inserted := 0
	flush := func() error {
		batch.LogBatchProcessing("posts")
		n, err := p.store.InsertNew(ctx, batch.GetAndClear())
		inserted += n
		return err
	}

	for _, post := range fresh {
		label, score, err := p.classify(ctx, post)
		if err != nil {
			return inserted, err
		}
		if batch.Add(post.WithVerdict(label, score, p.now().UTC())) {
			if err := flush(); err != nil {
				return inserted, err
			}
		}
	}
	if batch.HasData() {
		if err := flush(); err != nil {
			return inserted, err
		}
	}

	if p.cache != nil {
		ids := make([]string, len(fresh))
		for i, post := range fresh {
			ids[i] = post.ID
		}
		if err := p.cache.MarkProcessed(ctx, ids...); err != nil {
			slog.Warn("[Poller] Failed to mark posts processed", slog.Any("error", err))
		}
	}

	slog.Info("[Poller] Forum ingested",
		slog.String("forum", forum),
		slog.Int("fetched", len(posts)),
		slog.Int("inserted", inserted))
	return inserted, nil
}

// unseen drops posts already handled, checking the cache first and the store second.
func (p *Poller) unseen(ctx context.Context, posts []models.Post) ([]models.Post, error) {
	candidates := make([]models.Post, 0, len(posts))
	ids := make([]string, 0, len(posts))
	seen := make(map[string]bool, len(posts))
	for _, post := range posts {
		if seen[post.ID] {
			continue
		}
		seen[post.ID] = true
		if p.cache != nil && p.cache.IsProcessed(ctx, post.ID) {
			continue
		}
		candidates = append(candidates, post)
		ids = append(ids, post.ID)
	}

	known, err := p.store.KnownIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	fresh := candidates[:0]
	for _, post := range candidates {
		if !known[post.ID] {
			fresh = append(fresh, post)
		}
	}
	return fresh, nil
}

func (p *Poller) classify(ctx context.Context, post models.Post) (models.Sentiment, float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", 0, err
	}
	label, score := p.classifier.Classify(ctx, post.Title, post.Body)
	return label, score, nil
}

// Sweep classifies stored posts that never got a verdict.
func (p *Poller) Sweep(ctx context.Context) (int, error) {
	pending, err := p.store.ListUnclassified(ctx, p.cfg.SweepLimit)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, post := range pending {
		label, score, err := p.classify(ctx, post)
		if err != nil {
			return swept, err
		}
		ok, err := p.store.SetSentiment(ctx, post.ID, label, score, p.now().UTC())
		if err != nil {
			return swept, err
		}
		if ok {
			swept++
		}
	}
	return swept, nil
}

// Cleanup removes posts older than the retention window. Zero days keeps everything.
func (p *Poller) Cleanup(ctx context.Context) (int, error) {
	if p.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := p.now().AddDate(0, 0, -p.cfg.RetentionDays)
	return p.store.DeleteOlderThan(ctx, cutoff)
}
