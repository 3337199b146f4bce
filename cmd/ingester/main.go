package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spacesedan/forumpulse/config"
	"github.com/spacesedan/forumpulse/internal/clients"
	"github.com/spacesedan/forumpulse/internal/db"
	"github.com/spacesedan/forumpulse/internal/logging"
	"github.com/spacesedan/forumpulse/internal/processing"
	"github.com/spacesedan/forumpulse/internal/sentiment"
)

func main() {
	once := flag.Bool("once", false, "run a single ingestion cycle and exit")
	forum := flag.String("subreddit", "", "fetch only this subreddit (implies -once)")
	flag.Parse()

	config.LoadEnv(config.AppEnv())
	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	if err := run(cfg, *once, *forum); err != nil {
		slog.Error("[Main] Ingester stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, once bool, forum string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer conn.Close()
	store := db.NewStore(conn)

	var classifier sentiment.Classifier
	if cfg.Classifier == config.ClassifierVader {
		classifier = sentiment.NewVaderClassifier()
	} else {
		classifier = sentiment.NewLLMClassifier(clients.NewLLMClient(clients.LLMConfig{
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
		}), cfg.ClassifyTimeout)
	}

	var cache processing.ProcessedCache
	if cfg.ValkeyAddr != "" {
		vc, err := clients.NewValkeyClient(ctx, clients.ValkeyConfig{
			Addr:     cfg.ValkeyAddr,
			Password: cfg.ValkeyPassword,
			TLS:      cfg.ValkeyTLS,
		})
		if err != nil {
			slog.Warn("[Main] Valkey unavailable, falling back to store lookups", slog.Any("error", err))
		} else {
			defer vc.Close()
			cache = vc
		}
	}

	reddit := clients.NewRedditClient(clients.RedditConfig{
		ClientID:          cfg.RedditClientID,
		ClientSecret:      cfg.RedditClientSecret,
		UserAgent:         cfg.RedditUserAgent,
		RequestsPerMinute: cfg.RedditRPM,
	})
	poller := processing.NewPoller(reddit, store, classifier, cache, processing.PollerConfig{
		Forums:         cfg.Forums,
		Interval:       cfg.FetchInterval,
		PostsPerFetch:  cfg.PostsPerFetch,
		RetentionDays:  cfg.RetentionDays,
		ClassifyPerSec: cfg.ClassifyPerSec,
	})

	switch {
	case forum != "":
		n, err := poller.FetchForum(ctx, forum)
		if err != nil {
			return err
		}
		slog.Info("[Main] Fetch complete", slog.String("subreddit", forum), slog.Int("inserted", n))
	case once:
		stats, err := poller.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("cycle: %w", err)
		}
		slog.Info("[Main] Cycle complete",
			slog.Int("forums", stats.Forums),
			slog.Int("failed", stats.Failed),
			slog.Int("inserted", stats.Inserted),
			slog.Int("swept", stats.Swept),
			slog.Int("expired", stats.Expired))
	default:
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}
