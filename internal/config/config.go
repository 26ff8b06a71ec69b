// Package config handles companion configuration loading: a YAML file,
// then environment overrides, then defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/companion-state/internal/memory"
	"github.com/rcliao/companion-state/internal/model"
)

// DefaultSearchPaths returns the config file search order:
// ./companion.yaml, ~/.config/companion/config.yaml, /etc/companion/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"companion.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "companion", "config.yaml"))
	}

	paths = append(paths, "/etc/companion/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise the first existing DefaultSearchPaths entry is returned, or ""
// when there is none; running without a file is allowed.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Config holds all companion configuration.
type Config struct {
	DBPath     string           `yaml:"db_path" env:"COMPANION_DB"`
	LogLevel   string           `yaml:"log_level" env:"COMPANION_LOG_LEVEL"`
	Listen     string           `yaml:"listen" env:"COMPANION_LISTEN"`
	LadderFile string           `yaml:"ladder_file" env:"COMPANION_LADDER_FILE"`
	Memory     MemoryConfig     `yaml:"memory"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Cooldown   CooldownConfig   `yaml:"cooldown"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
}

// MemoryConfig tunes the memory lifecycle. Zero values take defaults.
type MemoryConfig struct {
	MergeSimilarity      float64       `yaml:"merge_similarity"`
	MergeSalienceCeiling float64       `yaml:"merge_salience_ceiling"`
	StaleAfter           time.Duration `yaml:"stale_after"`
	SalienceFloor        float64       `yaml:"salience_floor"`
	RetentionHorizon     time.Duration `yaml:"retention_horizon"`
	BatchSize            int           `yaml:"batch_size"`
	SearchLimit          int           `yaml:"search_limit"`
}

// ManagerConfig converts to the memory manager's settings.
func (c MemoryConfig) ManagerConfig() memory.Config {
	return memory.Config{
		MergeSimilarity:      c.MergeSimilarity,
		MergeSalienceCeiling: c.MergeSalienceCeiling,
		StaleAfter:           c.StaleAfter,
		SalienceFloor:        c.SalienceFloor,
		RetentionHorizon:     c.RetentionHorizon,
		BatchSize:            c.BatchSize,
		SearchLimit:          c.SearchLimit,
	}
}

// JobsConfig controls the background maintenance loop started by serve.
type JobsConfig struct {
	Disabled    bool          `yaml:"disabled" env:"COMPANION_JOBS_DISABLED"`
	Interval    time.Duration `yaml:"interval" env:"COMPANION_JOBS_INTERVAL"`
	PairTimeout time.Duration `yaml:"pair_timeout"`
}

// CooldownConfig selects where reflection cooldowns are kept.
type CooldownConfig struct {
	Backend string      `yaml:"backend" env:"COMPANION_COOLDOWN_BACKEND"` // sqlite or redis
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig defines the Redis connection for the redis cooldown backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"COMPANION_REDIS_ADDR"`
	Password string `yaml:"password" env:"COMPANION_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// EmbeddingsConfig enables semantic memory search.
type EmbeddingsConfig struct {
	Provider string `yaml:"provider" env:"COMPANION_EMBEDDINGS_PROVIDER"` // "", ollama, openai
	Model    string `yaml:"model"`
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key" env:"COMPANION_EMBEDDINGS_API_KEY"`
	Dims     int    `yaml:"dims"`

	// QueryCache is the number of search-query vectors kept in memory.
	QueryCache int `yaml:"query_cache"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		home, _ := os.UserHomeDir()
		c.DBPath = filepath.Join(home, ".companion", "companion.db")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8420"
	}
	if c.Jobs.Interval <= 0 {
		c.Jobs.Interval = time.Hour
	}
	if c.Jobs.PairTimeout <= 0 {
		c.Jobs.PairTimeout = 30 * time.Second
	}
	if c.Cooldown.Backend == "" {
		c.Cooldown.Backend = "sqlite"
	}
	if c.Cooldown.Redis.Prefix == "" {
		c.Cooldown.Redis.Prefix = "companion"
	}
}

// Load reads configuration from path (skipped when empty), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.Cooldown.Backend {
	case "sqlite":
	case "redis":
		if c.Cooldown.Redis.Addr == "" {
			return fmt.Errorf("cooldown.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cooldown backend %q (valid: sqlite, redis)", c.Cooldown.Backend)
	}

	switch c.Embeddings.Provider {
	case "", "ollama", "openai":
	default:
		return fmt.Errorf("unknown embeddings provider %q (valid: ollama, openai)", c.Embeddings.Provider)
	}

	m := c.Memory
	for name, v := range map[string]float64{
		"memory.merge_similarity":       m.MergeSimilarity,
		"memory.merge_salience_ceiling": m.MergeSalienceCeiling,
		"memory.salience_floor":         m.SalienceFloor,
	} {
		if !(v >= 0 && v <= 1) {
			return fmt.Errorf("%s must be within [0,1], got %g", name, v)
		}
	}
	if m.BatchSize < 0 || m.SearchLimit < 0 {
		return fmt.Errorf("memory.batch_size and memory.search_limit must not be negative")
	}
	return nil
}

type ladderFile struct {
	Levels []model.Level `yaml:"levels"`
}

// LoadLadder reads a relationship ladder from a YAML file with a top-level
// "levels" list. An empty path selects the default ladder.
func LoadLadder(path string) ([]model.Level, error) {
	if path == "" {
		return model.DefaultLadder(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lf ladderFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse ladder %s: %w", path, err)
	}
	if err := model.ValidateLadder(lf.Levels); err != nil {
		return nil, fmt.Errorf("ladder %s: %w", path, err)
	}
	return lf.Levels, nil
}
