package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/forumpulse/internal/models"
)

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the post store. Every write that touches title or body also
// updates posts_fts in the same transaction.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) inTx(ctx context.Context, fn func(tx dbtx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[DB] begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[DB] commit: %w", err)
	}
	return nil
}

const postColumns = `row_id, id, title, selftext, author, score, ups, downs, num_comments,
    created_utc, permalink, url, subreddit, sentiment, sentiment_score, analyzed_at, fetched_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(sc rowScanner) (models.Post, error) {
	var (
		p        models.Post
		created  int64
		fetched  int64
		label    sql.NullString
		score    sql.NullFloat64
		analyzed sql.NullInt64
	)
	if err := sc.Scan(&p.RowID, &p.ID, &p.Title, &p.Body, &p.Author, &p.Score, &p.Ups, &p.Downs,
		&p.NumComments, &created, &p.Permalink, &p.URL, &p.Forum, &label, &score, &analyzed, &fetched); err != nil {
		return p, err
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	p.FetchedAt = time.Unix(fetched, 0).UTC()
	if label.Valid && score.Valid {
		p.Sentiment = models.Sentiment(label.String)
		v := score.Float64
		p.SentimentScore = &v
	}
	if analyzed.Valid {
		at := time.Unix(analyzed.Int64, 0).UTC()
		p.AnalyzedAt = &at
	}
	return p, nil
}

// postArgs returns the insert arguments for p. A half-set verdict is stored as unset.
func postArgs(p models.Post) []any {
	var label, score, analyzed any
	if p.Classified() {
		label = string(p.Sentiment)
		score = *p.SentimentScore
		if p.AnalyzedAt != nil {
			analyzed = p.AnalyzedAt.Unix()
		}
	}
	fetched := p.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}
	return []any{p.ID, p.Title, p.Body, p.Author, p.Score, p.Ups, p.Downs, p.NumComments,
		p.CreatedAt.Unix(), p.Permalink, p.URL, p.Forum, label, score, analyzed, fetched.Unix()}
}

const insertPost = `INSERT INTO posts (id, title, selftext, author, score, ups, downs, num_comments,
    created_utc, permalink, url, subreddit, sentiment, sentiment_score, analyzed_at, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func validatePost(p models.Post) error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("[DB] post id is empty")
	}
	if strings.TrimSpace(p.Forum) == "" {
		return fmt.Errorf("[DB] post %s has no subreddit", p.ID)
	}
	return nil
}

// Upsert inserts p or refreshes its mutable fields. An existing verdict is never
// overwritten. Ingestion does not go through Upsert: it uses InsertNew, where a
// known id is a no-op.
func (s *Store) Upsert(ctx context.Context, p models.Post) (int64, error) {
	if err := validatePost(p); err != nil {
		return 0, err
	}
	var rowID int64
	err := s.inTx(ctx, func(tx dbtx) error {
		err := tx.QueryRowContext(ctx, insertPost+`
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    selftext = excluded.selftext,
    author = excluded.author,
    score = excluded.score,
    ups = excluded.ups,
    downs = excluded.downs,
    num_comments = excluded.num_comments,
    permalink = excluded.permalink,
    url = excluded.url,
    sentiment = COALESCE(posts.sentiment, excluded.sentiment),
    sentiment_score = COALESCE(posts.sentiment_score, excluded.sentiment_score),
    analyzed_at = COALESCE(posts.analyzed_at, excluded.analyzed_at),
    fetched_at = excluded.fetched_at
RETURNING row_id`, postArgs(p)...).Scan(&rowID)
		if err != nil {
			return fmt.Errorf("[DB] upsert %s: %w", p.ID, err)
		}
		return indexUpsert(ctx, tx, rowID, p.Title, p.Body)
	})
	return rowID, err
}

// InsertNew stores each post whose id is not yet known, all in one transaction,
// and returns how many were inserted.
func (s *Store) InsertNew(ctx context.Context, posts []models.Post) (int, error) {
	inserted := 0
	err := s.inTx(ctx, func(tx dbtx) error {
		for _, p := range posts {
			if err := validatePost(p); err != nil {
				slog.Warn("[DB] Skipping invalid post", slog.Any("error", err))
				continue
			}
			var rowID int64
			err := tx.QueryRowContext(ctx, insertPost+`
ON CONFLICT(id) DO NOTHING
RETURNING row_id`, postArgs(p)...).Scan(&rowID)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("[DB] insert %s: %w", p.ID, err)
			}
			if err := indexUpsert(ctx, tx, rowID, p.Title, p.Body); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Get returns the post with id, or nil when there is none.
func (s *Store) Get(ctx context.Context, id string) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[DB] get %s: %w", id, err)
	}
	return &p, nil
}

// Delete removes the post and its index entry. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx dbtx) error {
		var rowID int64
		err := tx.QueryRowContext(ctx, `DELETE FROM posts WHERE id = ? RETURNING row_id`, id).Scan(&rowID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("[DB] delete %s: %w", id, err)
		}
		return indexDelete(ctx, tx, rowID)
	})
}

// KnownIDs reports which of ids are already stored.
func (s *Store) KnownIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	known := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM posts WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("[DB] known ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("[DB] known ids: %w", err)
		}
		known[id] = true
	}
	return known, rows.Err()
}

// ListByRowIDs loads the posts for the given row ids in no particular order.
// Ids without a post are skipped.
func (s *Store) ListByRowIDs(ctx context.Context, rowIDs []int64) ([]models.Post, error) {
	if len(rowIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(rowIDs))
	for i, id := range rowIDs {
		args[i] = id
	}
	return s.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts WHERE row_id IN (`+placeholders(len(rowIDs))+`)`, args...)
}

// SetSentiment records a verdict for a post that has none. It reports whether
// a row was updated.
func (s *Store) SetSentiment(ctx context.Context, id string, label models.Sentiment, score float64, at time.Time) (bool, error) {
	if label == models.SentimentUnset {
		return false, fmt.Errorf("[DB] set sentiment %s: empty label", id)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET sentiment = ?, sentiment_score = ?, analyzed_at = ?
         WHERE id = ? AND sentiment IS NULL`,
		string(label), score, at.Unix(), id)
	if err != nil {
		return false, fmt.Errorf("[DB] set sentiment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListUnclassified returns up to limit posts without a verdict, newest first.
func (s *Store) ListUnclassified(ctx context.Context, limit int) ([]models.Post, error) {
	return s.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts WHERE sentiment IS NULL ORDER BY created_utc DESC LIMIT ?`, limit)
}

// PostFilter narrows ListPosts. An empty Forum or "all" means every forum.
type PostFilter struct {
	Forum     string
	Since     time.Time
	Sentiment models.Sentiment
	Limit     int
}

// ListPosts returns recent posts, newest first.
func (s *Store) ListPosts(ctx context.Context, f PostFilter) ([]models.Post, error) {
	where, args := forumSince(f.Forum, f.Since)
	if f.Sentiment != models.SentimentUnset {
		where += ` AND sentiment = ?`
		args = append(args, string(f.Sentiment))
	}
	args = append(args, f.Limit)
	return s.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts WHERE `+where+` ORDER BY created_utc DESC LIMIT ?`, args...)
}

// DeleteOlderThan removes posts created before cutoff together with their index entries.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var n int64
	err := s.inTx(ctx, func(tx dbtx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM posts_fts WHERE rowid IN (SELECT row_id FROM posts WHERE created_utc < ?)`,
			cutoff.Unix()); err != nil {
			return fmt.Errorf("%w: retention: %v", models.ErrIndexUnavailable, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE created_utc < ?`, cutoff.Unix())
		if err != nil {
			return fmt.Errorf("[DB] retention: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) queryPosts(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("[DB] query posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("[DB] scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[DB] query posts: %w", err)
	}
	return posts, nil
}

func forumSince(forum string, since time.Time) (string, []any) {
	where := `created_utc > ?`
	args := []any{since.Unix()}
	if forum != "" && !strings.EqualFold(forum, "all") {
		where += ` AND subreddit = ?`
		args = append(args, forum)
	}
	return where, args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
