// Package cli implements the companion CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/clock"
	"github.com/rcliao/companion-state/internal/config"
	"github.com/rcliao/companion-state/internal/embedding"
	"github.com/rcliao/companion-state/internal/memory"
	"github.com/rcliao/companion-state/internal/reflection"
	"github.com/rcliao/companion-state/internal/relationship"
	"github.com/rcliao/companion-state/internal/store"
	"github.com/rcliao/companion-state/internal/store/redisstore"
)

var (
	cfgPath    string
	dbPath     string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "companion",
	Short: "Relationship, memory and reflection state for AI companions",
	Long: "Tracks how a user and a companion character relate over time, keeps the\n" +
		"companion's memories about the user healthy, and writes periodic reflections\n" +
		"and dreams. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: ./companion.yaml, ~/.config/companion/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $COMPANION_DB or ~/.companion/companion.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func loadConfig() (*config.Config, error) {
	path, err := config.FindConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// app is the wired engine shared by every command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.SQLiteStore
	redis     *redisstore.CooldownStore
	tracker   *relationship.Tracker
	memory    *memory.Manager
	reflector *reflection.Engine
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	ladder, err := config.LoadLadder(cfg.LadderFile)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: st}

	clk := clock.System{}
	a.tracker = relationship.New(st, clk, clock.NewRand(), ladder, logger)

	a.memory = memory.New(st, clk, cfg.Memory.ManagerConfig(), logger)
	emb, err := embedding.New(embedding.Config{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		URL:       cfg.Embeddings.URL,
		APIKey:    cfg.Embeddings.APIKey,
		Dims:      cfg.Embeddings.Dims,
		CacheSize: cfg.Embeddings.QueryCache,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if emb != nil {
		a.memory.WithEmbedder(emb)
	}

	var cooldowns store.CooldownStore = st
	if cfg.Cooldown.Backend == "redis" {
		rc := cfg.Cooldown.Redis
		a.redis, err = redisstore.New(ctx, redisstore.Config{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		cooldowns = a.redis
	}

	a.reflector = reflection.New(st, cooldowns, a.tracker, clk, logger).WithMemory(a.memory)
	if a.redis != nil {
		a.reflector.WithSharedCooldowns()
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.store.Close()
}

func mustOpenApp(cmd *cobra.Command) *app {
	a, err := openApp(cmd.Context())
	if err != nil {
		exitErr("startup", err)
	}
	return a
}

// addPairFlags registers --user and --companion on cmd.
func addPairFlags(cmd *cobra.Command) {
	cmd.Flags().Int64P("user", "u", 0, "User id (required)")
	cmd.Flags().Int64P("companion", "c", 0, "Companion (character) id (required)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("companion")
}

func pairFlags(cmd *cobra.Command) (int64, int64) {
	user, _ := cmd.Flags().GetInt64("user")
	companion, _ := cmd.Flags().GetInt64("companion")
	return user, companion
}

// output prints v as indented JSON, or through text when --format=text.
func output(v any, text func(w io.Writer)) {
	if formatFlag == "text" && text != nil {
		text(os.Stdout)
		return
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
