package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen: 127.0.0.1:9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	if _, err := FindConfig("/nonexistent/companion.yaml"); err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "companion.yaml"), []byte("log_level: debug\n"), 0600)
	t.Chdir(dir)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "companion.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "companion.yaml")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "companion.yaml")
	t.Setenv("TEST_COMPANION_DIR", dir)
	os.WriteFile(path, []byte(`
db_path: ${TEST_COMPANION_DIR}/state.db
log_level: debug
listen: 0.0.0.0:9000
memory:
  stale_after: 240h
  salience_floor: 0.25
  batch_size: 10
jobs:
  interval: 15m
cooldown:
  backend: redis
  redis:
    addr: localhost:6379
`), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != filepath.Join(dir, "state.db") {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
	if cfg.Listen != "0.0.0.0:9000" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected listen/log level: %q %q", cfg.Listen, cfg.LogLevel)
	}
	if cfg.Memory.StaleAfter != 240*time.Hour || cfg.Memory.SalienceFloor != 0.25 || cfg.Memory.BatchSize != 10 {
		t.Errorf("unexpected memory config: %+v", cfg.Memory)
	}
	if cfg.Jobs.Interval != 15*time.Minute || cfg.Jobs.PairTimeout != 30*time.Second {
		t.Errorf("unexpected jobs config: %+v", cfg.Jobs)
	}
	if cfg.Cooldown.Backend != "redis" || cfg.Cooldown.Redis.Prefix != "companion" {
		t.Errorf("unexpected cooldown config: %+v", cfg.Cooldown)
	}

	mc := cfg.Memory.ManagerConfig()
	if mc.StaleAfter != 240*time.Hour || mc.BatchSize != 10 {
		t.Errorf("unexpected manager config: %+v", mc)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "companion.yaml")
	os.WriteFile(path, []byte("log_level: debug\nlisten: 127.0.0.1:1\n"), 0600)

	t.Setenv("COMPANION_LOG_LEVEL", "warn")
	t.Setenv("COMPANION_DB", "/tmp/override.db")
	t.Setenv("COMPANION_JOBS_INTERVAL", "5m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.DBPath != "/tmp/override.db" {
		t.Errorf("env did not override: %+v", cfg)
	}
	if cfg.Jobs.Interval != 5*time.Minute {
		t.Errorf("expected jobs interval 5m, got %v", cfg.Jobs.Interval)
	}
	if cfg.Listen != "127.0.0.1:1" {
		t.Errorf("unset env should keep file value, got %q", cfg.Listen)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cooldown.Backend != "sqlite" || cfg.Jobs.Interval != time.Hour || cfg.DBPath == "" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_EnvError(t *testing.T) {
	t.Setenv("COMPANION_JOBS_INTERVAL", "soon")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
		{"bad backend", func(c *Config) { c.Cooldown.Backend = "memcached" }, "unknown cooldown backend"},
		{"redis without addr", func(c *Config) { c.Cooldown.Backend = "redis" }, "cooldown.redis.addr"},
		{"bad provider", func(c *Config) { c.Embeddings.Provider = "bert" }, "unknown embeddings provider"},
		{"similarity out of range", func(c *Config) { c.Memory.MergeSimilarity = 1.5 }, "memory.merge_similarity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSub == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Fatalf("expected error containing %q, got %v", tt.errSub, err)
			}
		})
	}
}

func TestLoadLadder(t *testing.T) {
	ladder, err := LoadLadder("")
	if err != nil || len(ladder) != 5 {
		t.Fatalf("expected default ladder, got %d levels (%v)", len(ladder), err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "ladder.yaml")
	os.WriteFile(path, []byte(`
levels:
  - level: 2
    name: Pal
    interaction_threshold: 5
    tone: {formality: 0.5, warmth: 0.6, playfulness: 0.4, directness: 0.5, affection: 0.3}
    lexicon:
      greetings: ["Hey pal"]
      closings: ["Later"]
  - level: 1
    name: New
    interaction_threshold: 0
    tone: {formality: 0.9, warmth: 0.2, playfulness: 0.1, directness: 0.3, affection: 0.1}
    lexicon:
      greetings: ["Hello"]
      closings: ["Bye"]
      affectionate_terms: ["friend"]
`), 0600)

	ladder, err = LoadLadder(path)
	if err != nil {
		t.Fatalf("LoadLadder: %v", err)
	}
	if len(ladder) != 2 || ladder[0].Name != "New" || ladder[1].InteractionThreshold != 5 {
		t.Errorf("unexpected ladder: %+v", ladder)
	}
	if ladder[0].Lexicon.AffectionateTerms[0] != "friend" {
		t.Errorf("affectionate terms not decoded: %+v", ladder[0].Lexicon)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("levels:\n  - level: 1\n    name: Only\n"), 0600)
	if _, err := LoadLadder(bad); err == nil {
		t.Error("expected a ladder without greetings to be rejected")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{" trace ", LevelTrace, false},
		{"debug", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestNewLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "trace")
	if err != nil {
		t.Fatal(err)
	}
	logger.Log(t.Context(), LevelTrace, "cooldown checked")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE level name, got %q", buf.String())
	}
}
