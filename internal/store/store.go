// Package store provides the companion persistence port and its SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/companion-state/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// FactFilter selects memory facts.
type FactFilter struct {
	UserID      int64 // 0 means any user
	CompanionID int64 // 0 means any companion
	States      []model.FactState
	Limit       int // 0 means unlimited
}

// FactVersion is a fact as consolidation read it. A planned change only
// applies while the stored row still matches.
type FactVersion struct {
	ID             string
	State          model.FactState
	AccessCount    int
	LastAccessedAt time.Time
}

// VersionOf returns the version of f.
func VersionOf(f model.MemoryFact) FactVersion {
	state := f.State
	if state == "" {
		state = model.FactActive
	}
	return FactVersion{ID: f.ID, State: state, AccessCount: f.AccessCount, LastAccessedAt: f.LastAccessedAt}
}

// FactMerge folds Absorbed facts into Survivor. Base is the survivor before
// the merge.
type FactMerge struct {
	Survivor model.MemoryFact
	Base     FactVersion
	Absorbed []FactVersion
}

// ConsolidationBatch is one atomic unit of consolidation work.
type ConsolidationBatch struct {
	Merges  []FactMerge
	Archive []FactVersion
	Delete  []FactVersion
	At      time.Time
}

// ConsolidationApplied counts what a batch committed. Changes planned for
// facts that were modified after they were read are skipped.
type ConsolidationApplied struct {
	Absorbed int
	Archived int
	Deleted  int
	Skipped  int
}

// FactStats are aggregate counts over one scope.
type FactStats struct {
	Active       int
	Archived     int
	Deleted      int
	ByType       map[model.FactType]int
	AvgAge       time.Duration
	CreatedSince int // facts created at or after the Since cutoff
}

// RelationshipStore persists relationship records.
type RelationshipStore interface {
	// LoadRelationship returns ErrNotFound for a pair that never interacted.
	LoadRelationship(ctx context.Context, p model.Pair) (*model.RelationshipRecord, error)

	// SaveRelationship upserts rec and, when ev is non-nil, appends the raw
	// event to the interaction log in the same transaction.
	SaveRelationship(ctx context.Context, rec model.RelationshipRecord, ev *model.InteractionEvent) error
}

// FactStore persists memory facts.
type FactStore interface {
	PutFact(ctx context.Context, f model.MemoryFact) error
	GetFact(ctx context.Context, id string) (*model.MemoryFact, error)
	ListFacts(ctx context.Context, f FactFilter) ([]model.MemoryFact, error)

	// TouchFact records an access and returns the updated fact.
	TouchFact(ctx context.Context, id string, at time.Time, salience float64) (*model.MemoryFact, error)

	// SetFactState moves a fact to a new lifecycle state.
	SetFactState(ctx context.Context, id string, state model.FactState, at time.Time) error

	// ApplyConsolidation applies b in one transaction. A merge, archive or
	// delete whose facts changed since they were read is skipped whole.
	ApplyConsolidation(ctx context.Context, b ConsolidationBatch) (ConsolidationApplied, error)

	FactStats(ctx context.Context, userID, companionID int64, since time.Time, now time.Time) (*FactStats, error)
}

// ReflectionStore persists reflections and dreams.
type ReflectionStore interface {
	SaveReflection(ctx context.Context, r model.Reflection) error
	ListReflections(ctx context.Context, userID, companionID int64, limit int) ([]model.Reflection, error)
	SaveDream(ctx context.Context, d model.DreamState) error
	ListDreams(ctx context.Context, userID, companionID int64, limit int) ([]model.DreamState, error)
}

// CooldownStore persists the last firing time of each cooldown key.
type CooldownStore interface {
	// LoadCooldown returns ok=false when the key never fired.
	LoadCooldown(ctx context.Context, k model.CooldownKey) (t time.Time, ok bool, err error)
	SaveCooldown(ctx context.Context, k model.CooldownKey, t time.Time) error
	// ClearCooldown forgets k so it reads as never fired.
	ClearCooldown(ctx context.Context, k model.CooldownKey) error
}

// Store is the full persistence port.
type Store interface {
	RelationshipStore
	FactStore
	ReflectionStore
	CooldownStore

	// ListPairs returns every pair with relationship or memory state.
	ListPairs(ctx context.Context) ([]model.Pair, error)

	// Close closes the store.
	Close() error
}
