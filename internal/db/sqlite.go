package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Open opens (creating if needed) the SQLite database at path and applies the schema.
// Pragmas go through the DSN so every pooled connection gets them.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("[DB] mkdir: %w", err)
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(10000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + params.Encode()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("[DB] open %s: %w", path, err)
	}
	if err := initDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("[DB] SQLite store ready", slog.String("path", path))
	return db, nil
}

// OpenMemory opens a private in-memory database. A single connection keeps
// every query on the same database.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("[DB] open memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := initDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initDB(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("[DB] ping: %w", err)
	}
	if err := ApplySchema(ctx, db); err != nil {
		return err
	}
	return nil
}
