package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spacesedan/forumpulse/config"
	"github.com/spacesedan/forumpulse/internal/analysis"
	"github.com/spacesedan/forumpulse/internal/api"
	"github.com/spacesedan/forumpulse/internal/clients"
	"github.com/spacesedan/forumpulse/internal/db"
	"github.com/spacesedan/forumpulse/internal/logging"
	"github.com/spacesedan/forumpulse/internal/monitoring"
	"github.com/spacesedan/forumpulse/internal/processing"
	"github.com/spacesedan/forumpulse/internal/search"
	"github.com/spacesedan/forumpulse/internal/sentiment"
)

func main() {
	rebuild := flag.Bool("rebuild-index", false, "rebuild the full-text index from stored posts before serving")
	flag.Parse()

	config.LoadEnv(config.AppEnv())
	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	if err := run(cfg, *rebuild); err != nil {
		slog.Error("[Main] Server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, rebuild bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer conn.Close()
	store := db.NewStore(conn)

	if rebuild {
		n, err := store.RebuildIndex(ctx)
		if err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
		slog.Info("[Main] Index rebuilt", slog.Int("posts", n))
	}

	model := clients.NewLLMClient(clients.LLMConfig{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
	})
	modelHealthy := &atomic.Bool{}
	modelHealthy.Store(true)

	retriever := search.NewRetriever(store, store, cfg.SearchDefaultLimit, cfg.SearchMaxLimit)
	analyzer := analysis.NewAnalyzer(retriever, model, cfg.SummaryTimeout, cfg.ExamplesPerClass)

	var classifier sentiment.Classifier
	switch cfg.Classifier {
	case config.ClassifierVader:
		classifier = sentiment.NewVaderClassifier()
	default:
		classifier = sentiment.NewLLMClassifier(model, cfg.ClassifyTimeout)
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

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.MonitorModelHealth(ctx, model, modelHealthy, monitoring.HEALTHCHECK_TIMER)
	}()
	if cfg.IngestEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = poller.Run(ctx)
		}()
	}

	srv := api.NewServer(api.Deps{
		Analyzer:     analyzer,
		Searcher:     retriever,
		Dashboard:    store,
		Ingester:     poller,
		Forums:       cfg.Forums,
		ModelHealthy: modelHealthy,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("[Main] HTTP server listening",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("env", cfg.Env),
			slog.Bool("ingest", cfg.IngestEnabled))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("[Main] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("[Main] HTTP shutdown incomplete", slog.Any("error", err))
	}
	wg.Wait()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}
