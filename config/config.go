package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultForums is used when neither FORUMS nor the forums file name any.
var DefaultForums = []string{
	"LocalLLaMA",
	"machinelearning",
	"artificial",
	"OpenAI",
	"ClaudeAI",
	"deeplearning",
	"MachineLearning",
	"ArtificialInteligence",
	"llama",
	"ollama",
	"transformers",
	"huggingface",
	"AIethics",
	"agetech",
	"LanguageModel",
}

const (
	ClassifierLLM   = "llm"
	ClassifierVader = "vader"
)

// Config is built once in main and handed to constructors.
type Config struct {
	Env      string
	HTTPAddr string
	DBPath   string
	LogLevel slog.Level

	LLMBaseURL      string
	LLMAPIKey       string
	LLMModel        string
	Classifier      string
	ClassifyTimeout time.Duration
	SummaryTimeout  time.Duration

	Forums         []string
	FetchInterval  time.Duration
	PostsPerFetch  int
	RetentionDays  int
	IngestEnabled  bool
	ClassifyPerSec float64

	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string
	RedditRPM          int

	ValkeyAddr     string
	ValkeyPassword string
	ValkeyTLS      bool

	ExamplesPerClass   int
	SearchDefaultLimit int
	SearchMaxLimit     int
}

type forumsFile struct {
	Forums []string `yaml:"forums"`
}

// Load reads the process environment (after LoadEnv) into a Config.
func Load() (Config, error) {
	cfg := Config{
		Env:                AppEnv(),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8000"),
		DBPath:             getEnv("DB_PATH", "data/forumpulse.db"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080/v1/"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "sk-no-key-required"),
		LLMModel:           getEnv("LLM_MODEL", "local"),
		Classifier:         strings.ToLower(getEnv("CLASSIFIER", ClassifierLLM)),
		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "forumpulse-bot/1.0 (+https://github.com/spacesedan/forumpulse)"),
		ValkeyAddr:         os.Getenv("VALKEY_INIT_ADDRESS"),
		ValkeyPassword:     os.Getenv("VALKEY_PASSWORD"),
	}

	var err error
	if cfg.LogLevel, err = getLevel("LOG_LEVEL", slog.LevelInfo); err != nil {
		return cfg, err
	}
	if cfg.ClassifyTimeout, err = getDuration("CLASSIFY_TIMEOUT", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.SummaryTimeout, err = getDuration("SUMMARY_TIMEOUT", 60*time.Second); err != nil {
		return cfg, err
	}
	if cfg.FetchInterval, err = getDuration("FETCH_INTERVAL", 15*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.PostsPerFetch, err = getInt("POSTS_PER_FETCH", 25); err != nil {
		return cfg, err
	}
	if cfg.RetentionDays, err = getInt("RETENTION_DAYS", 180); err != nil {
		return cfg, err
	}
	if cfg.RedditRPM, err = getInt("REDDIT_RPM", 30); err != nil {
		return cfg, err
	}
	if cfg.ExamplesPerClass, err = getInt("EXAMPLES_PER_CLASS", 3); err != nil {
		return cfg, err
	}
	if cfg.SearchDefaultLimit, err = getInt("SEARCH_DEFAULT_LIMIT", 30); err != nil {
		return cfg, err
	}
	if cfg.SearchMaxLimit, err = getInt("SEARCH_MAX_LIMIT", 100); err != nil {
		return cfg, err
	}
	if cfg.IngestEnabled, err = getBool("INGEST_ENABLED", true); err != nil {
		return cfg, err
	}
	if cfg.ValkeyTLS, err = getBool("VALKEY_TLS", false); err != nil {
		return cfg, err
	}
	if cfg.ClassifyPerSec, err = getFloat("CLASSIFY_PER_SEC", 2); err != nil {
		return cfg, err
	}

	if cfg.Forums, err = loadForums(); err != nil {
		return cfg, err
	}

	switch cfg.Classifier {
	case ClassifierLLM, ClassifierVader:
	default:
		return cfg, fmt.Errorf("CLASSIFIER must be %q or %q, got %q", ClassifierLLM, ClassifierVader, cfg.Classifier)
	}
	if cfg.SearchDefaultLimit <= 0 || cfg.SearchMaxLimit < cfg.SearchDefaultLimit {
		return cfg, fmt.Errorf("invalid search limits: default=%d max=%d", cfg.SearchDefaultLimit, cfg.SearchMaxLimit)
	}

	return cfg, nil
}

// loadForums resolves the forum list: FORUMS env, then FORUMS_FILE, then DefaultForums.
func loadForums() ([]string, error) {
	if raw := os.Getenv("FORUMS"); raw != "" {
		return splitList(raw), nil
	}

	path := getEnv("FORUMS_FILE", "config/forums.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return append([]string(nil), DefaultForums...), nil
		}
		return nil, fmt.Errorf("read forums file %s: %w", path, err)
	}

	var ff forumsFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse forums file %s: %w", path, err)
	}
	forums := make([]string, 0, len(ff.Forums))
	for _, f := range ff.Forums {
		if f = strings.TrimSpace(f); f != "" {
			forums = append(forums, f)
		}
	}
	if len(forums) == 0 {
		return append([]string(nil), DefaultForums...), nil
	}
	return forums, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// getDuration accepts Go durations ("90s") or bare seconds ("90").
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getLevel(key string, defaultValue slog.Level) (slog.Level, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return lvl, nil
}
