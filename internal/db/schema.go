package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema holds posts and their full-text projection. posts_fts is a standalone
// FTS5 table keyed by posts.row_id; it is written only inside the same
// transaction as the posts row it mirrors.
const Schema = `
CREATE TABLE IF NOT EXISTS posts (
    row_id          INTEGER PRIMARY KEY,
    id              TEXT NOT NULL UNIQUE,
    title           TEXT NOT NULL DEFAULT '',
    selftext        TEXT NOT NULL DEFAULT '',
    author          TEXT NOT NULL DEFAULT '',
    score           INTEGER NOT NULL DEFAULT 0,
    ups             INTEGER NOT NULL DEFAULT 0,
    downs           INTEGER NOT NULL DEFAULT 0,
    num_comments    INTEGER NOT NULL DEFAULT 0,
    created_utc     INTEGER NOT NULL,
    permalink       TEXT NOT NULL DEFAULT '',
    url             TEXT NOT NULL DEFAULT '',
    subreddit       TEXT NOT NULL,
    sentiment       TEXT,
    sentiment_score REAL,
    analyzed_at     INTEGER,
    fetched_at      INTEGER NOT NULL,
    CHECK ((sentiment IS NULL) = (sentiment_score IS NULL))
);
CREATE INDEX IF NOT EXISTS idx_posts_subreddit ON posts(subreddit);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_utc);
CREATE INDEX IF NOT EXISTS idx_posts_sentiment ON posts(sentiment);

CREATE VIRTUAL TABLE IF NOT EXISTS posts_fts USING fts5(
    title, selftext,
    tokenize='unicode61 remove_diacritics 2'
);
`

func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("[DB] apply schema: %w", err)
	}
	return nil
}
