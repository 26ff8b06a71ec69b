package memory

import (
	"context"
	"sort"
	"time"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/store"
)

// Consolidate runs one maintenance pass over the user's facts, optionally
// narrowed to one companion:
//
//  1. near-duplicate low-salience facts of the same pair and type are merged
//     into the one with the longest text;
//  2. active facts left unaccessed past StaleAfter whose salience is under
//     SalienceFloor are archived;
//  3. facts archived or tombstoned for longer than RetentionHorizon are
//     deleted.
//
// Changes are written in transactional batches of BatchSize. Cancellation is
// honored between batches; the result then counts only committed work.
// Facts accessed, forgotten or otherwise written after the pass read them are
// left alone and counted as skipped. Running it twice in a row changes
// nothing the second time.
func (m *Manager) Consolidate(ctx context.Context, userID, companionID int64) (model.ConsolidationResult, error) {
	var res model.ConsolidationResult
	if userID == 0 {
		return res, apperr.Required("userId")
	}

	scope := model.Pair{UserID: userID, CompanionID: companionID}
	unlock := m.scopeLocks.Lock(scope)
	defer unlock()

	start := m.clock.Now()
	facts, err := m.store.ListFacts(ctx, store.FactFilter{UserID: userID, CompanionID: companionID})
	if err != nil {
		return res, apperr.Internal("list memories", err)
	}
	res.Scanned = len(facts)

	p := m.plan(facts, start)
	batches := p.batches(m.cfg.BatchSize, start)
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			res.Duration = m.clock.Now().Sub(start)
			return res, err
		}
		applied, err := m.store.ApplyConsolidation(ctx, b)
		if err != nil {
			res.Duration = m.clock.Now().Sub(start)
			return res, apperr.Internal("apply consolidation", err)
		}
		res.Consolidated += applied.Absorbed
		res.Archived += applied.Archived
		res.Deleted += applied.Deleted
		res.Skipped += applied.Skipped
	}
	res.Duration = m.clock.Now().Sub(start)

	m.logger.Info("memory consolidated",
		"user", userID,
		"companion", companionID,
		"scanned", res.Scanned,
		"consolidated", res.Consolidated,
		"archived", res.Archived,
		"deleted", res.Deleted,
		"skipped", res.Skipped,
		"batches", len(batches),
		"duration", res.Duration,
	)
	return res, nil
}

type consolidationPlan struct {
	merges  []store.FactMerge
	archive []store.FactVersion
	delete  []store.FactVersion
}

// plan decides every change without touching the store.
func (m *Manager) plan(facts []model.MemoryFact, now time.Time) consolidationPlan {
	var p consolidationPlan
	merged := map[string]bool{}

	// Merge candidates, grouped by owner pair and type.
	groups := map[mergeKey][]model.MemoryFact{}
	for _, f := range facts {
		if f.State == model.FactActive && Salience(f, now) < m.cfg.MergeSalienceCeiling {
			k := mergeKey{pair: f.Pair(), typ: f.Type}
			groups[k] = append(groups[k], f)
		}
	}
	keys := make([]mergeKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	survivors := map[string]model.MemoryFact{}
	for _, k := range keys {
		for _, fm := range m.cluster(groups[k], now) {
			p.merges = append(p.merges, fm)
			survivors[fm.Survivor.ID] = fm.Survivor
			for _, v := range fm.Absorbed {
				merged[v.ID] = true
			}
		}
	}

	for _, f := range facts {
		if merged[f.ID] {
			continue
		}
		if s, ok := survivors[f.ID]; ok {
			f = s
		}
		switch f.State {
		case model.FactActive:
			if now.Sub(f.LastAccessedAt) > m.cfg.StaleAfter && Salience(f, now) < m.cfg.SalienceFloor {
				p.archive = append(p.archive, store.VersionOf(f))
			}
		case model.FactArchived:
			if f.ArchivedAt != nil && now.Sub(*f.ArchivedAt) > m.cfg.RetentionHorizon {
				p.delete = append(p.delete, store.VersionOf(f))
			}
		case model.FactDeleted:
			if f.DeletedAt != nil && now.Sub(*f.DeletedAt) > m.cfg.RetentionHorizon {
				p.delete = append(p.delete, store.VersionOf(f))
			}
		}
	}
	return p
}

type mergeKey struct {
	pair model.Pair
	typ  model.FactType
}

func (k mergeKey) less(o mergeKey) bool {
	if k.pair.UserID != o.pair.UserID {
		return k.pair.UserID < o.pair.UserID
	}
	if k.pair.CompanionID != o.pair.CompanionID {
		return k.pair.CompanionID < o.pair.CompanionID
	}
	return k.typ < o.typ
}

// cluster groups near-duplicates greedily. Seeds are taken longest text
// first, so the survivor of each cluster is its longest fact and a later
// run over the survivors finds nothing left to merge.
func (m *Manager) cluster(facts []model.MemoryFact, now time.Time) []store.FactMerge {
	if len(facts) < 2 {
		return nil
	}
	sort.Slice(facts, func(i, j int) bool {
		if len(facts[i].Text) != len(facts[j].Text) {
			return len(facts[i].Text) > len(facts[j].Text)
		}
		if !facts[i].CreatedAt.Equal(facts[j].CreatedAt) {
			return facts[i].CreatedAt.Before(facts[j].CreatedAt)
		}
		return facts[i].ID < facts[j].ID
	})

	tokens := make([]map[string]bool, len(facts))
	for i, f := range facts {
		tokens[i] = tokenSet(f.Text)
	}

	var merges []store.FactMerge
	taken := make([]bool, len(facts))
	for i := range facts {
		if taken[i] {
			continue
		}
		survivor := facts[i]
		var absorbed []store.FactVersion
		for j := i + 1; j < len(facts); j++ {
			if taken[j] || jaccard(tokens[i], tokens[j]) < m.cfg.MergeSimilarity {
				continue
			}
			taken[j] = true
			other := facts[j]
			absorbed = append(absorbed, store.VersionOf(other))
			survivor.AccessCount += other.AccessCount
			if other.CreatedAt.Before(survivor.CreatedAt) {
				survivor.CreatedAt = other.CreatedAt
			}
			if other.LastAccessedAt.After(survivor.LastAccessedAt) {
				survivor.LastAccessedAt = other.LastAccessedAt
			}
		}
		if len(absorbed) == 0 {
			continue
		}
		survivor.Salience = Salience(survivor, now)
		merges = append(merges, store.FactMerge{Survivor: survivor, Base: store.VersionOf(facts[i]), Absorbed: absorbed})
	}
	return merges
}

// batches splits the plan so that no batch touches more than size facts.
// A merge counts its survivor and every absorbed fact and is never split.
func (p consolidationPlan) batches(size int, at time.Time) []store.ConsolidationBatch {
	var out []store.ConsolidationBatch
	cur := store.ConsolidationBatch{At: at}
	n := 0
	flush := func() {
		if n > 0 {
			out = append(out, cur)
		}
		cur = store.ConsolidationBatch{At: at}
		n = 0
	}
	add := func(cost int) {
		if n > 0 && n+cost > size {
			flush()
		}
		n += cost
	}

	for _, fm := range p.merges {
		add(1 + len(fm.Absorbed))
		cur.Merges = append(cur.Merges, fm)
	}
	for _, v := range p.archive {
		add(1)
		cur.Archive = append(cur.Archive, v)
	}
	for _, v := range p.delete {
		add(1)
		cur.Delete = append(cur.Delete, v)
	}
	flush()
	return out
}
