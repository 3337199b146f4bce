// Command analyze runs one search-and-summarize request against the local
// store and prints the event stream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spacesedan/forumpulse/config"
	"github.com/spacesedan/forumpulse/internal/analysis"
	"github.com/spacesedan/forumpulse/internal/clients"
	"github.com/spacesedan/forumpulse/internal/db"
	"github.com/spacesedan/forumpulse/internal/logging"
	"github.com/spacesedan/forumpulse/internal/models"
	"github.com/spacesedan/forumpulse/internal/search"
)

func main() {
	forums := flag.String("subreddits", "", "comma-separated subreddit filter")
	limit := flag.Int("limit", 0, "maximum posts to analyze")
	label := flag.String("sentiment", "", "only posts with this sentiment")
	raw := flag.Bool("json", false, "print events as JSON lines")
	flag.Parse()

	config.LoadEnv(config.AppEnv())
	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	text := strings.Join(flag.Args(), " ")
	filter, err := models.ParseSentiment(*label)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	q := models.Query{Text: text, Sentiment: filter, Limit: *limit}
	for _, f := range strings.Split(*forums, ",") {
		if f = strings.TrimSpace(f); f != "" {
			q.Forums = append(q.Forums, f)
		}
	}

	if err := run(cfg, q, *raw); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, q models.Query, raw bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer conn.Close()
	store := db.NewStore(conn)

	model := clients.NewLLMClient(clients.LLMConfig{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
	})
	analyzer := analysis.NewAnalyzer(
		search.NewRetriever(store, store, cfg.SearchDefaultLimit, cfg.SearchMaxLimit),
		model, cfg.SummaryTimeout, cfg.ExamplesPerClass)

	var failure error
	enc := json.NewEncoder(os.Stdout)
	printed := 0
	for ev := range analyzer.Stream(ctx, q) {
		if raw {
			_ = enc.Encode(map[string]any{"event": ev.EventName(), "data": ev})
			if e, ok := ev.(models.ErrorEvent); ok {
				failure = errors.New(e.Message)
			}
			continue
		}
		switch e := ev.(type) {
		case models.StatusEvent:
			fmt.Fprintf(os.Stderr, "… %s\n", e.Message)
		case models.SentimentEvent:
			fmt.Printf("%d posts: %.1f%% positive, %.1f%% negative (%s)\n\n",
				e.Total, e.PositivePercent, e.NegativePercent, e.OverallTone)
		case models.SummaryChunkEvent:
			fmt.Print(e.Accumulated[printed:])
			printed = len(e.Accumulated)
		case models.CompleteEvent:
			if printed == 0 {
				fmt.Print(e.Summary)
			}
			fmt.Println()
			printExamples("positive", e.Positive)
			printExamples("negative", e.Negative)
			printExamples("neutral", e.Neutral)
		case models.ErrorEvent:
			fmt.Println()
			failure = errors.New(e.Message)
		}
	}
	if failure != nil {
		return failure
	}
	return ctx.Err()
}

func printExamples(label string, cs []models.Citation) {
	if len(cs) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", label)
	for _, c := range cs {
		fmt.Printf("  [%d] r/%s %s\n      %s\n", c.Score, c.Subreddit, c.Title, c.URL)
	}
}
