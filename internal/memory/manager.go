// Package memory manages the lifecycle of remembered facts: access
// tracking, ranked retrieval, consolidation and health reporting.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/clock"
	"github.com/rcliao/companion-state/internal/embedding"
	"github.com/rcliao/companion-state/internal/keylock"
	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/store"
)

// Config holds the lifecycle thresholds.
type Config struct {
	MergeSimilarity      float64       // token Jaccard at which facts are near-duplicates
	MergeSalienceCeiling float64       // only facts below this salience are merged
	StaleAfter           time.Duration // unaccessed this long makes a fact an archive candidate
	SalienceFloor        float64       // archive candidates below this salience are archived
	RetentionHorizon     time.Duration // archived or tombstoned this long means hard delete
	BatchSize            int           // changes per store transaction
	SearchLimit          int           // default result count
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MergeSimilarity:      0.8,
		MergeSalienceCeiling: 0.5,
		StaleAfter:           30 * 24 * time.Hour,
		SalienceFloor:        0.3,
		RetentionHorizon:     90 * 24 * time.Hour,
		BatchSize:            50,
		SearchLimit:          5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MergeSimilarity <= 0 {
		c.MergeSimilarity = d.MergeSimilarity
	}
	if c.MergeSalienceCeiling <= 0 {
		c.MergeSalienceCeiling = d.MergeSalienceCeiling
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.SalienceFloor <= 0 {
		c.SalienceFloor = d.SalienceFloor
	}
	if c.RetentionHorizon <= 0 {
		c.RetentionHorizon = d.RetentionHorizon
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = d.SearchLimit
	}
	return c
}

// Manager owns memory facts.
type Manager struct {
	store    store.FactStore
	clock    clock.Clock
	cfg      Config
	embedder embedding.Embedder
	logger   *slog.Logger

	factLocks  keylock.Map[string]
	scopeLocks keylock.Map[model.Pair]
}

// New creates a manager. Zero fields in cfg take their defaults.
func New(st store.FactStore, clk clock.Clock, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  st,
		clock:  clk,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// WithEmbedder enables semantic relevance. A nil embedder keeps search lexical.
func (m *Manager) WithEmbedder(e embedding.Embedder) *Manager {
	m.embedder = e
	return m
}

// Config returns the effective thresholds.
func (m *Manager) Config() Config { return m.cfg }

// Access records one retrieval of a fact. Archived facts can be accessed
// and stay archived; deleted or unknown ids are NotFound.
func (m *Manager) Access(ctx context.Context, memoryID string) (*model.MemoryFact, error) {
	if strings.TrimSpace(memoryID) == "" {
		return nil, apperr.Required("memoryId")
	}

	unlock := m.factLocks.Lock(memoryID)
	defer unlock()

	f, err := m.store.GetFact(ctx, memoryID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && f.State == model.FactDeleted) {
		return nil, apperr.NotFound("memory", memoryID)
	}
	if err != nil {
		return nil, apperr.Internal("load memory", err)
	}

	now := m.clock.Now()
	next := *f
	next.AccessCount++
	next.LastAccessedAt = now

	updated, err := m.store.TouchFact(ctx, memoryID, now, Salience(next, now))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("memory", memoryID)
	}
	if err != nil {
		return nil, apperr.Internal("record access", err)
	}
	return updated, nil
}

// SearchParams holds parameters for ranked retrieval.
type SearchParams struct {
	Query       string
	UserID      int64
	CompanionID int64 // 0 means any companion of the user
	Limit       int
}

// SearchResult is a fact with its ranking components.
type SearchResult struct {
	model.MemoryFact
	Score     float64 `json:"score"`
	Relevance float64 `json:"relevance"`
}

const (
	scoreRelevance = 0.5
	scoreRecency   = 0.25
	scoreSalience  = 0.25
)

// Search ranks the user's active facts by relevance to the query, recency and
// salience. With a query that has content words, facts that share nothing
// with it are left out. Search does not count as an access.
func (m *Manager) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	if p.UserID == 0 {
		return nil, apperr.Required("userId")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = m.cfg.SearchLimit
	}

	facts, err := m.store.ListFacts(ctx, store.FactFilter{
		UserID:      p.UserID,
		CompanionID: p.CompanionID,
		States:      []model.FactState{model.FactActive},
	})
	if err != nil {
		return nil, apperr.Internal("list memories", err)
	}

	query := strings.TrimSpace(p.Query)
	qTokens := tokenSet(query)
	qVec := m.embedQuery(ctx, query)
	// A query of stopwords alone ranks like an empty one.
	filter := len(qTokens) > 0 || qVec != nil
	now := m.clock.Now()

	results := make([]SearchResult, 0, len(facts))
	for _, f := range facts {
		rel := lexicalRelevance(query, qTokens, f.Text)
		if qVec != nil && len(f.Embedding) > 0 {
			if cos := embedding.CosineSimilarity(qVec, f.Embedding); cos > rel {
				rel = cos
			}
		}
		if filter && rel <= 0 {
			continue
		}
		results = append(results, SearchResult{
			MemoryFact: f,
			Relevance:  rel,
			Score: scoreRelevance*rel +
				scoreRecency*recency(f.LastAccessedAt, now) +
				scoreSalience*Salience(f, now),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].LastAccessedAt.After(results[j].LastAccessedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// embedQuery returns nil when semantic search is off or the provider fails.
func (m *Manager) embedQuery(ctx context.Context, query string) embedding.Vector {
	if m.embedder == nil || query == "" {
		return nil
	}
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		m.logger.Warn("query embedding failed, using lexical relevance", "error", err)
		return nil
	}
	return vec
}

// Remember stores a new active fact for the pair.
func (m *Manager) Remember(ctx context.Context, p model.Pair, typ model.FactType, text string) (*model.MemoryFact, error) {
	if p.UserID == 0 {
		return nil, apperr.Required("userId")
	}
	if p.CompanionID == 0 {
		return nil, apperr.Required("companionId")
	}
	if !model.ValidFactTypes[typ] {
		return nil, apperr.Validation("type", "invalid fact type %q", typ)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Required("text")
	}

	now := m.clock.Now()
	f := model.MemoryFact{
		ID:             store.NewID(),
		UserID:         p.UserID,
		CompanionID:    p.CompanionID,
		Type:           typ,
		Text:           text,
		CreatedAt:      now,
		LastAccessedAt: now,
		State:          model.FactActive,
	}
	f.Salience = Salience(f, now)

	if m.embedder != nil {
		vec, err := m.embedder.Embed(ctx, text)
		if err != nil {
			m.logger.Warn("fact embedding failed, storing without vector", "error", err)
		} else {
			f.Embedding = vec
		}
	}

	if err := m.store.PutFact(ctx, f); err != nil {
		return nil, apperr.Internal("store memory", err)
	}
	return &f, nil
}

// Forget tombstones a fact. Consolidation removes it for good once the
// retention horizon passes.
func (m *Manager) Forget(ctx context.Context, memoryID string) error {
	if strings.TrimSpace(memoryID) == "" {
		return apperr.Required("memoryId")
	}

	unlock := m.factLocks.Lock(memoryID)
	defer unlock()

	f, err := m.store.GetFact(ctx, memoryID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && f.State == model.FactDeleted) {
		return apperr.NotFound("memory", memoryID)
	}
	if err != nil {
		return apperr.Internal("load memory", err)
	}
	if err := m.store.SetFactState(ctx, memoryID, model.FactDeleted, m.clock.Now()); err != nil {
		return apperr.Internal("forget memory", err)
	}
	return nil
}

// Facts lists the pair's active facts, most recently accessed first.
func (m *Manager) Facts(ctx context.Context, p model.Pair) ([]model.MemoryFact, error) {
	facts, err := m.store.ListFacts(ctx, store.FactFilter{
		UserID:      p.UserID,
		CompanionID: p.CompanionID,
		States:      []model.FactState{model.FactActive},
	})
	if err != nil {
		return nil, apperr.Internal("list memories", err)
	}
	return facts, nil
}
