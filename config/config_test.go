package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FORUMS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, ClassifierLLM, cfg.Classifier)
	assert.Equal(t, 30*time.Second, cfg.ClassifyTimeout)
	assert.Equal(t, 60*time.Second, cfg.SummaryTimeout)
	assert.Equal(t, 15*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 25, cfg.PostsPerFetch)
	assert.Equal(t, 30, cfg.SearchDefaultLimit)
	assert.Equal(t, 100, cfg.SearchMaxLimit)
	assert.Equal(t, 3, cfg.ExamplesPerClass)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, DefaultForums, cfg.Forums)
	assert.True(t, cfg.IngestEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FORUMS", " golang, rust ,,")
	t.Setenv("SUMMARY_TIMEOUT", "90")
	t.Setenv("FETCH_INTERVAL", "5m")
	t.Setenv("CLASSIFIER", "VADER")
	t.Setenv("INGEST_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"golang", "rust"}, cfg.Forums)
	assert.Equal(t, 90*time.Second, cfg.SummaryTimeout)
	assert.Equal(t, 5*time.Minute, cfg.FetchInterval)
	assert.Equal(t, ClassifierVader, cfg.Classifier)
	assert.False(t, cfg.IngestEnabled)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadForumsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forums.yaml")
	require.NoError(t, os.WriteFile(path, []byte("forums:\n  - ollama\n  - \" \"\n  - llama\n"), 0o644))
	t.Setenv("FORUMS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"ollama", "llama"}, cfg.Forums)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"unknown classifier": {"CLASSIFIER", "bert"},
		"bad int":            {"POSTS_PER_FETCH", "many"},
		"bad duration":       {"CLASSIFY_TIMEOUT", "soon"},
		"inverted limits":    {"SEARCH_MAX_LIMIT", "10"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
