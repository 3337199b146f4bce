package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spacesedan/forumpulse/internal/models"
)

// Combining marks belong to the word so decomposed (NFD) text tokenizes the
// same way unicode61 does.
var (
	termPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)
	wordRune    = regexp.MustCompile(`[\p{L}\p{N}_]`)
)

// Bare FTS5 keywords; lowercase forms are ordinary terms.
var ftsOperators = map[string]bool{"AND": true, "OR": true, "NOT": true, "NEAR": true}

// MatchExpression turns free text into an FTS5 MATCH expression of quoted
// terms, implicitly AND-ed. Operators and punctuation are dropped so user input
// can never form FTS5 syntax. Text with no usable term is ErrInvalidQuery.
func MatchExpression(text string) (string, error) {
	terms := termPattern.FindAllString(text, -1)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if ftsOperators[t] || !wordRune.MatchString(t) {
			continue
		}
		quoted = append(quoted, `"`+t+`"`)
	}
	if len(quoted) == 0 {
		return "", fmt.Errorf("%w: no searchable terms in %q", models.ErrInvalidQuery, text)
	}
	return strings.Join(quoted, " "), nil
}

func indexUpsert(ctx context.Context, q dbtx, rowID int64, title, body string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM posts_fts WHERE rowid = ?`, rowID); err != nil {
		return fmt.Errorf("%w: delete row %d: %v", models.ErrIndexUnavailable, rowID, err)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO posts_fts(rowid, title, selftext) VALUES (?, ?, ?)`, rowID, title, body); err != nil {
		return fmt.Errorf("%w: insert row %d: %v", models.ErrIndexUnavailable, rowID, err)
	}
	return nil
}

func indexDelete(ctx context.Context, q dbtx, rowID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM posts_fts WHERE rowid = ?`, rowID); err != nil {
		return fmt.Errorf("%w: delete row %d: %v", models.ErrIndexUnavailable, rowID, err)
	}
	return nil
}

// IndexUpsert replaces the indexed text for rowID. Deleting an absent row is a no-op.
func (s *Store) IndexUpsert(ctx context.Context, rowID int64, title, body string) error {
	return s.inTx(ctx, func(tx dbtx) error {
		return indexUpsert(ctx, tx, rowID, title, body)
	})
}

func (s *Store) IndexDelete(ctx context.Context, rowID int64) error {
	return indexDelete(ctx, s.db, rowID)
}

// Search returns up to limit row ids matching text, best match first.
func (s *Store) Search(ctx context.Context, text string, limit int) ([]int64, error) {
	expr, err := MatchExpression(text)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid FROM posts_fts WHERE posts_fts MATCH ? ORDER BY rank LIMIT ?`, expr, limit)
	if err != nil {
		return nil, searchErr(ctx, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, searchErr(ctx, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, searchErr(ctx, err)
	}
	return ids, nil
}

func searchErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
}

// RebuildIndex re-derives posts_fts from posts.
func (s *Store) RebuildIndex(ctx context.Context) (int, error) {
	var n int
	err := s.inTx(ctx, func(tx dbtx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM posts_fts`); err != nil {
			return fmt.Errorf("%w: clear: %v", models.ErrIndexUnavailable, err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO posts_fts(rowid, title, selftext) SELECT row_id, title, selftext FROM posts`)
		if err != nil {
			return fmt.Errorf("%w: repopulate: %v", models.ErrIndexUnavailable, err)
		}
		affected, _ := res.RowsAffected()
		n = int(affected)
		return nil
	})
	return n, err
}
