package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spacesedan/forumpulse/internal/models"
)

// Stats summarises the whole store.
func (s *Store) Stats(ctx context.Context, monitored int) (models.Stats, error) {
	stats := models.Stats{
		Subreddits:          map[string]int{},
		MonitoredSubreddits: monitored,
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&stats.TotalPosts); err != nil {
		return stats, fmt.Errorf("[DB] stats total: %w", err)
	}

	dist, err := s.distribution(ctx, `sentiment IS NOT NULL`)
	if err != nil {
		return stats, err
	}
	stats.Sentiment = dist

	rows, err := s.db.QueryContext(ctx, `SELECT subreddit, COUNT(*) FROM posts GROUP BY subreddit`)
	if err != nil {
		return stats, fmt.Errorf("[DB] stats subreddits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return stats, fmt.Errorf("[DB] stats subreddits: %w", err)
		}
		stats.Subreddits[name] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(fetched_at) FROM posts`).Scan(&last); err != nil {
		return stats, fmt.Errorf("[DB] stats last updated: %w", err)
	}
	if last.Valid {
		ts := time.Unix(last.Int64, 0).UTC().Format(time.RFC3339)
		stats.LastUpdated = &ts
	}
	return stats, nil
}

// Distribution counts classified posts created after since.
func (s *Store) Distribution(ctx context.Context, forum string, since time.Time) (models.SentimentDistribution, error) {
	where, args := forumSince(forum, since)
	return s.distribution(ctx, where+` AND sentiment IS NOT NULL`, args...)
}

func (s *Store) distribution(ctx context.Context, where string, args ...any) (models.SentimentDistribution, error) {
	var dist models.SentimentDistribution
	rows, err := s.db.QueryContext(ctx,
		`SELECT sentiment, COUNT(*) FROM posts WHERE `+where+` GROUP BY sentiment`, args...)
	if err != nil {
		return dist, fmt.Errorf("[DB] distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return dist, fmt.Errorf("[DB] distribution: %w", err)
		}
		switch models.Sentiment(label) {
		case models.SentimentPositive:
			dist.Positive = count
		case models.SentimentNegative:
			dist.Negative = count
		case models.SentimentNeutral:
			dist.Neutral = count
		}
	}
	return dist, rows.Err()
}

// Timeline buckets classified posts by UTC day for the last days days ending
// at now, oldest first, with empty days reported as zero.
func (s *Store) Timeline(ctx context.Context, forum string, days int, now time.Time) (models.TimelineData, error) {
	if days <= 0 {
		days = 1
	}
	today := now.UTC().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -(days - 1))

	tl := models.TimelineData{
		Labels:   make([]string, days),
		Positive: make([]int, days),
		Neutral:  make([]int, days),
		Negative: make([]int, days),
	}
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		label := first.AddDate(0, 0, i).Format(time.DateOnly)
		tl.Labels[i] = label
		index[label] = i
	}

	where, args := forumSince(forum, first.Add(-time.Second))
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(created_utc, 'unixepoch') AS day, sentiment, COUNT(*)
         FROM posts WHERE `+where+` AND sentiment IS NOT NULL
         GROUP BY day, sentiment`, args...)
	if err != nil {
		return tl, fmt.Errorf("[DB] timeline: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day, label string
		var count int
		if err := rows.Scan(&day, &label, &count); err != nil {
			return tl, fmt.Errorf("[DB] timeline: %w", err)
		}
		i, ok := index[day]
		if !ok {
			continue
		}
		switch models.Sentiment(label) {
		case models.SentimentPositive:
			tl.Positive[i] = count
		case models.SentimentNegative:
			tl.Negative[i] = count
		case models.SentimentNeutral:
			tl.Neutral[i] = count
		}
	}
	return tl, rows.Err()
}
