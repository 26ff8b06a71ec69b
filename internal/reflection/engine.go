// Package reflection generates periodic narrative reflections and dreams
// from relationship progress, conversation samples and stored memories.
// Each (companion, type) pair is rate limited by a cooldown timer.
package reflection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/clock"
	"github.com/rcliao/companion-state/internal/keylock"
	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/store"
)

// ProgressSource reports relationship progress for a pair.
type ProgressSource interface {
	ProgressToNext(ctx context.Context, p model.Pair) (model.Progress, error)
	Ladder() []model.Level
}

// MemorySource lists the active facts a dream draws on.
type MemorySource interface {
	Facts(ctx context.Context, p model.Pair) ([]model.MemoryFact, error)
}

// Engine generates reflections and dreams.
type Engine struct {
	store     store.ReflectionStore
	cooldowns store.CooldownStore
	progress  ProgressSource
	memories  MemorySource
	clock     clock.Clock
	logger    *slog.Logger

	locks keylock.Map[model.CooldownKey]

	// fired caches the last firing time per key. Disabled when the cooldown
	// store is shared with other processes.
	cacheFired bool
	mu         sync.RWMutex
	fired      map[model.CooldownKey]time.Time
}

// New creates an engine.
func New(st store.ReflectionStore, cooldowns store.CooldownStore, progress ProgressSource, clk clock.Clock, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:      st,
		cooldowns:  cooldowns,
		progress:   progress,
		clock:      clk,
		logger:     logger,
		cacheFired: true,
		fired:      make(map[model.CooldownKey]time.Time),
	}
}

// WithMemory sets where manually triggered dreams read facts from.
func (e *Engine) WithMemory(ms MemorySource) *Engine {
	e.memories = ms
	return e
}

// WithSharedCooldowns makes every cooldown check read the store, for
// backends shared between processes.
func (e *Engine) WithSharedCooldowns() *Engine {
	e.cacheFired = false
	return e
}

func validType(typ model.ReflectionType) error {
	if !model.ValidReflectionTypes[typ] {
		return apperr.Validation("type", "invalid reflection type %q (valid: daily, weekly, dream, introspection)", typ)
	}
	return nil
}

func validPair(p model.Pair) error {
	if p.UserID == 0 {
		return apperr.Required("userId")
	}
	if p.CompanionID == 0 {
		return apperr.Required("characterId")
	}
	return nil
}

// ShouldReflect reports whether the cooldown for (companionID, typ) has
// elapsed. A key that never fired is eligible.
func (e *Engine) ShouldReflect(ctx context.Context, companionID int64, typ model.ReflectionType) (bool, error) {
	if err := validType(typ); err != nil {
		return false, err
	}
	ok, _, err := e.eligible(ctx, model.CooldownKey{CompanionID: companionID, Type: typ})
	return ok, err
}

// eligible also returns when the key becomes eligible; the zero time if it already is.
func (e *Engine) eligible(ctx context.Context, k model.CooldownKey) (bool, time.Time, error) {
	last, ok, err := e.lastFired(ctx, k)
	if err != nil || !ok {
		return err == nil, time.Time{}, err
	}
	next := last.Add(model.CooldownIntervals[k.Type])
	if !e.clock.Now().Before(next) {
		return true, time.Time{}, nil
	}
	return false, next, nil
}

func (e *Engine) lastFired(ctx context.Context, k model.CooldownKey) (time.Time, bool, error) {
	if e.cacheFired {
		e.mu.RLock()
		t, ok := e.fired[k]
		e.mu.RUnlock()
		if ok {
			return t, true, nil
		}
	}

	t, ok, err := e.cooldowns.LoadCooldown(ctx, k)
	if err != nil {
		return time.Time{}, false, apperr.Internal("load cooldown", err)
	}
	if ok && e.cacheFired {
		e.mu.Lock()
		if cur, seen := e.fired[k]; !seen || cur.Before(t) {
			e.fired[k] = t
		}
		e.mu.Unlock()
	}
	return t, ok, nil
}

// markFired records a firing. The cache changes only after the store accepts it.
func (e *Engine) markFired(ctx context.Context, k model.CooldownKey, at time.Time) error {
	if err := e.cooldowns.SaveCooldown(ctx, k, at); err != nil {
		return apperr.Internal("save cooldown", err)
	}
	if e.cacheFired {
		e.mu.Lock()
		e.fired[k] = at
		e.mu.Unlock()
	}
	return nil
}

// commitFiring starts the cooldown for k and then runs save. When save fails
// the cooldown goes back to its previous value, so neither a stored record
// without a cooldown nor a cooldown without a record is left behind.
func (e *Engine) commitFiring(ctx context.Context, k model.CooldownKey, at time.Time, save func() error) error {
	prev, hadPrev, err := e.lastFired(ctx, k)
	if err != nil {
		return err
	}
	if err := e.markFired(ctx, k, at); err != nil {
		return err
	}
	if err := save(); err != nil {
		if rerr := e.restoreFired(context.WithoutCancel(ctx), k, prev, hadPrev); rerr != nil {
			e.logger.Error("cooldown not restored after failed save",
				"companion", k.CompanionID, "type", k.Type, "error", rerr)
		}
		return err
	}
	return nil
}

func (e *Engine) restoreFired(ctx context.Context, k model.CooldownKey, prev time.Time, hadPrev bool) error {
	if hadPrev {
		return e.markFired(ctx, k, prev)
	}
	if err := e.cooldowns.ClearCooldown(ctx, k); err != nil {
		return err
	}
	if e.cacheFired {
		e.mu.Lock()
		delete(e.fired, k)
		e.mu.Unlock()
	}
	return nil
}

// snapshot captures relationship progress for a reflection.
func (e *Engine) snapshot(ctx context.Context, p model.Pair) (model.RelationshipSnapshot, error) {
	prog, err := e.progress.ProgressToNext(ctx, p)
	if err != nil {
		return model.RelationshipSnapshot{}, err
	}
	s := model.RelationshipSnapshot{
		Level:            prog.Current.Level,
		LevelName:        prog.Current.Name,
		Progress:         prog.Fraction,
		InteractionCount: prog.InteractionCount,
		Metrics:          prog.Metrics,
	}
	if prog.Next != nil {
		s.NextLevelName = prog.Next.Name
	}
	return s, nil
}

// GenerateReflection starts the cooldown for the given type, then builds,
// persists and returns a reflection. It does not check the cooldown first.
func (e *Engine) GenerateReflection(ctx context.Context, p model.Pair, typ model.ReflectionType, sample []model.Message, state model.EmotionalState) (*model.Reflection, error) {
	if err := validPair(p); err != nil {
		return nil, err
	}
	if err := validType(typ); err != nil {
		return nil, err
	}
	k := model.CooldownKey{CompanionID: p.CompanionID, Type: typ}
	unlock := e.locks.Lock(k)
	defer unlock()
	return e.generate(ctx, p, typ, sample, state, "requested")
}

func (e *Engine) generate(ctx context.Context, p model.Pair, typ model.ReflectionType, sample []model.Message, state model.EmotionalState, reason string) (*model.Reflection, error) {
	rel, err := e.snapshot(ctx, p)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	themes := ExtractThemes(conversationText(sample))
	r := &model.Reflection{
		ID:                   store.NewID(),
		UserID:               p.UserID,
		CompanionID:          p.CompanionID,
		Type:                 typ,
		Insights:             deriveInsights(sample, themes),
		KeyThemes:            themes,
		EmotionalPatterns:    emotionalPatterns(state, sample),
		RelationshipProgress: rel,
		Timestamp:            now,
		TriggerReason:        reason,
	}
	r.Content = renderReflection(r)

	err = e.commitFiring(ctx, model.CooldownKey{CompanionID: p.CompanionID, Type: typ}, now, func() error {
		if err := e.store.SaveReflection(ctx, *r); err != nil {
			return apperr.Internal("save reflection", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("reflection generated",
		"pair", p.String(),
		"type", typ,
		"reason", reason,
		"insights", len(r.Insights),
		"themes", len(r.KeyThemes),
	)
	return r, nil
}
