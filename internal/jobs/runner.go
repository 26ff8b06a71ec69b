// Package jobs runs periodic maintenance: memory consolidation and
// cooldown-gated reflections and dreams for every known pair.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/reflection"
)

// Config controls the maintenance loop.
type Config struct {
	// Interval between ticks. Default: 1 hour.
	Interval time.Duration

	// PairTimeout bounds the work done for one pair in a tick. Default: 30 seconds.
	PairTimeout time.Duration
}

// DefaultConfig returns the default loop settings.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Hour,
		PairTimeout: 30 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.PairTimeout <= 0 {
		c.PairTimeout = d.PairTimeout
	}
}

// PairLister enumerates pairs with stored state.
type PairLister interface {
	ListPairs(ctx context.Context) ([]model.Pair, error)
}

// Memory is the part of the memory manager the runner drives.
type Memory interface {
	Consolidate(ctx context.Context, userID, companionID int64) (model.ConsolidationResult, error)
	Facts(ctx context.Context, p model.Pair) ([]model.MemoryFact, error)
}

// Reflector is the part of the reflection engine the runner drives.
type Reflector interface {
	ShouldReflect(ctx context.Context, companionID int64, typ model.ReflectionType) (bool, error)
	Process(ctx context.Context, req reflection.ProcessRequest) (*reflection.Result, error)
	GenerateDream(ctx context.Context, p model.Pair, memories []model.MemoryFact, state model.EmotionalState) (*model.DreamState, error)
}

// restingState is the emotional state scheduled reflections start from.
var restingState = model.EmotionalState{
	Happiness:   0.5,
	Energy:      0.5,
	Curiosity:   0.5,
	Empathy:     0.5,
	Playfulness: 0.5,
}

// Summary counts what one tick did.
type Summary struct {
	Pairs        int
	Consolidated int
	Archived     int
	Deleted      int
	Reflections  int
	Dreams       int
	Failures     int
}

// Runner runs the maintenance loop.
type Runner struct {
	pairs     PairLister
	memory    Memory
	reflector Reflector
	logger    *slog.Logger
	config    Config

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a runner. Call Start to begin.
func New(pairs PairLister, mem Memory, refl Reflector, logger *slog.Logger, cfg Config) *Runner {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		pairs:     pairs,
		memory:    mem,
		reflector: refl,
		logger:    logger.With("component", "jobs"),
		config:    cfg,
		done:      make(chan struct{}),
	}
}

// Start runs one tick immediately, then one per interval until ctx is
// cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	go r.run(runCtx)
}

// Stop cancels the loop and waits for it to exit.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	r.logger.Info("maintenance loop starting", "interval", r.config.Interval)
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("maintenance loop stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs one tick over every known pair. A failing pair is
// logged and counted; the others still run.
func (r *Runner) RunOnce(ctx context.Context) Summary {
	var sum Summary
	start := time.Now()

	pairs, err := r.pairs.ListPairs(ctx)
	if err != nil {
		r.logger.Error("list pairs failed", "error", err)
		sum.Failures++
		return sum
	}

	for _, p := range pairs {
		if ctx.Err() != nil {
			break
		}
		sum.Pairs++
		if err := r.runPair(ctx, p, &sum); err != nil {
			sum.Failures++
			r.logger.Warn("maintenance failed for pair", "pair", p.String(), "error", err)
		}
	}

	r.logger.Info("maintenance tick complete",
		"pairs", sum.Pairs,
		"consolidated", sum.Consolidated,
		"archived", sum.Archived,
		"deleted", sum.Deleted,
		"reflections", sum.Reflections,
		"dreams", sum.Dreams,
		"failures", sum.Failures,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return sum
}

func (r *Runner) runPair(ctx context.Context, p model.Pair, sum *Summary) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.PairTimeout)
	defer cancel()

	res, err := r.memory.Consolidate(ctx, p.UserID, p.CompanionID)
	if err != nil {
		return err
	}
	sum.Consolidated += res.Consolidated
	sum.Archived += res.Archived
	sum.Deleted += res.Deleted

	out, err := r.reflector.Process(ctx, reflection.ProcessRequest{Pair: p, State: restingState})
	if err != nil {
		return err
	}
	if !out.Skipped {
		sum.Reflections++
	}

	ok, err := r.reflector.ShouldReflect(ctx, p.CompanionID, model.ReflectionDream)
	if err != nil || !ok {
		return err
	}
	facts, err := r.memory.Facts(ctx, p)
	if err != nil {
		return err
	}
	if _, err := r.reflector.GenerateDream(ctx, p, facts, restingState); err != nil {
		return err
	}
	sum.Dreams++
	return nil
}
