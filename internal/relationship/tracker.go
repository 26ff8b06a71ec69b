// Package relationship tracks per-pair relationship metrics and derives the
// relationship level that gates tone and vocabulary.
package relationship

import (
	"context"
	"errors"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/clock"
	"github.com/rcliao/companion-state/internal/keylock"
	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/store"
)

// Metric update constants.
const (
	intimacyRate      = 0.1
	trustRate         = 0.05
	compatibilityRate = 0.08
	communicationRate = 0.03
	consistencyRate   = 0.02

	decayPerInteraction = 0.001
	metricFloor         = 0.1

	// levelAverageStep is the metric average each level number requires.
	levelAverageStep = 0.15
)

// Tracker owns relationship records. Records are cached read-through in
// front of the store: loaded on first use, replaced only after a successful
// save.
type Tracker struct {
	store  store.RelationshipStore
	clock  clock.Clock
	rng    clock.Rand
	ladder []model.Level
	logger *slog.Logger

	locks keylock.Map[model.Pair]
	cache *lru.Cache[model.Pair, model.RelationshipRecord]
}

// DefaultCacheSize is the number of relationship records kept in memory.
const DefaultCacheSize = 4096

// New creates a tracker. ladder must already be validated; nil selects the
// default ladder.
func New(st store.RelationshipStore, clk clock.Clock, rng clock.Rand, ladder []model.Level, logger *slog.Logger) *Tracker {
	if ladder == nil {
		ladder = model.DefaultLadder()
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		store:  st,
		clock:  clk,
		rng:    rng,
		ladder: ladder,
		logger: logger,
	}
	t.cache, _ = lru.New[model.Pair, model.RelationshipRecord](DefaultCacheSize)
	return t
}

// WithCacheSize bounds the record cache to n pairs, least recently used
// first out. Evicted pairs are read back from the store on next use.
func (t *Tracker) WithCacheSize(n int) *Tracker {
	if c, err := lru.New[model.Pair, model.RelationshipRecord](n); err == nil {
		t.cache = c
	}
	return t
}

// Ladder returns the configured level ladder, lowest first.
func (t *Tracker) Ladder() []model.Level {
	return append([]model.Level(nil), t.ladder...)
}

// Record returns a snapshot of the pair's record. A pair that never
// interacted gets the initial record, which is not persisted.
func (t *Tracker) Record(ctx context.Context, p model.Pair) (model.RelationshipRecord, error) {
	rec, err := t.load(ctx, p)
	if err != nil {
		return model.RelationshipRecord{}, err
	}
	return rec.Clone(), nil
}

// load returns the cached record, reading through to the store on a miss.
func (t *Tracker) load(ctx context.Context, p model.Pair) (model.RelationshipRecord, error) {
	if rec, ok := t.cache.Get(p); ok {
		return rec, nil
	}

	stored, err := t.store.LoadRelationship(ctx, p)
	if errors.Is(err, store.ErrNotFound) {
		return model.NewRelationshipRecord(p, t.clock.Now()), nil
	}
	if err != nil {
		return model.RelationshipRecord{}, apperr.Internal("load relationship", err)
	}

	// A concurrent writer may have populated the entry meanwhile; its value is newer.
	if found, _ := t.cache.ContainsOrAdd(p, *stored); found {
		if cur, ok := t.cache.Get(p); ok {
			return cur, nil
		}
	}
	return *stored, nil
}

// RecordInteraction appends ev to the pair's history, applies the
// type-conditional metric update followed by uniform decay, and persists
// the record. The cached record changes only if the save succeeds.
func (t *Tracker) RecordInteraction(ctx context.Context, p model.Pair, ev model.InteractionEvent) (model.RelationshipRecord, error) {
	if err := ev.Validate(); err != nil {
		return model.RelationshipRecord{}, apperr.Validation("event", "%v", err)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = t.clock.Now()
	}

	unlock := t.locks.Lock(p)
	defer unlock()

	cur, err := t.load(ctx, p)
	if err != nil {
		return model.RelationshipRecord{}, err
	}

	next := cur.Clone()
	next.Append(ev)
	next.Metrics = applyEvent(next.Metrics, ev)
	next.LastUpdate = t.clock.Now()

	if err := t.store.SaveRelationship(ctx, next, &ev); err != nil {
		return model.RelationshipRecord{}, apperr.Internal("save relationship", err)
	}

	t.cache.Add(p, next)

	t.logger.Debug("interaction recorded",
		"pair", p.String(),
		"type", ev.Type,
		"count", next.InteractionCount,
		"average", next.Metrics.Average(),
	)
	return next.Clone(), nil
}

// applyEvent returns m after the type-conditional increment and decay.
func applyEvent(m model.Metrics, ev model.InteractionEvent) model.Metrics {
	switch ev.Type {
	case model.EventEmotionalSharing, model.EventPersonalStory:
		m.Intimacy = capOne(m.Intimacy + ev.EmotionalDepth*intimacyRate)
	case model.EventPromiseKept, model.EventSupportGiven:
		m.Trust = capOne(m.Trust + ev.Quality*trustRate)
	case model.EventSharedInterest, model.EventMutualUnderstanding:
		m.Compatibility = capOne(m.Compatibility + ev.SharedInterests*compatibilityRate)
	case model.EventConversation, model.EventDeepDiscussion:
		m.Communication = capOne(m.Communication + ev.Quality*communicationRate)
	}
	m.Consistency = capOne(m.Consistency + ev.Consistency*consistencyRate)

	m.Intimacy = decay(m.Intimacy)
	m.Trust = decay(m.Trust)
	m.Compatibility = decay(m.Compatibility)
	m.Communication = decay(m.Communication)
	m.Consistency = decay(m.Consistency)
	return m
}

func capOne(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func decay(v float64) float64 {
	v -= decayPerInteraction
	if v < metricFloor {
		return metricFloor
	}
	return v
}

// CurrentLevel returns the highest level whose interaction threshold and
// metric average the pair meets, or the lowest level. Only store failures
// produce an error.
func (t *Tracker) CurrentLevel(ctx context.Context, p model.Pair) (model.Level, error) {
	rec, err := t.load(ctx, p)
	if err != nil {
		return model.Level{}, err
	}
	return levelFor(t.ladder, rec), nil
}

func levelFor(ladder []model.Level, rec model.RelationshipRecord) model.Level {
	avg := rec.Metrics.Average()
	n := rec.InteractionCount
	for i := len(ladder) - 1; i >= 0; i-- {
		l := ladder[i]
		if n >= l.InteractionThreshold && avg >= float64(l.Level)*levelAverageStep {
			return l
		}
	}
	return ladder[0]
}

// ProgressToNext reports the current level, the next level and the fraction
// of the interaction distance covered. At the top level Next and Fraction
// are nil.
func (t *Tracker) ProgressToNext(ctx context.Context, p model.Pair) (model.Progress, error) {
	rec, err := t.load(ctx, p)
	if err != nil {
		return model.Progress{}, err
	}
	cur := levelFor(t.ladder, rec)
	prog := model.Progress{
		Current:          cur,
		InteractionCount: rec.InteractionCount,
		Metrics:          rec.Metrics,
		Average:          rec.Metrics.Average(),
	}

	for i, l := range t.ladder {
		if l.Level != cur.Level || i == len(t.ladder)-1 {
			continue
		}
		next := t.ladder[i+1]
		prog.Next = &next
		span := float64(next.InteractionThreshold - cur.InteractionThreshold)
		frac := 1.0
		if span > 0 {
			frac = float64(rec.InteractionCount-cur.InteractionThreshold) / span
		}
		frac = clamp01(frac)
		prog.Fraction = &frac
		break
	}
	return prog, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
