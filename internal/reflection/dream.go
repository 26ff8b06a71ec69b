package reflection

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/store"
)

// UniversalSymbols appear in every dream, after the memory-derived ones.
var UniversalSymbols = []string{"growth", "understanding", "connection", "time"}

// factSymbols maps fact types to the symbol they contribute.
var factSymbols = map[model.FactType]string{
	model.FactPersonal:     "personal_journey",
	model.FactRelationship: "human_connection",
	model.FactExperience:   "life_adventure",
}

const (
	dreamEnergyFactor    = 0.5
	dreamCuriosityFactor = 1.2
)

// GenerateDream weaves the given memories into a dream, persists it and
// starts the dream cooldown. It does not check the cooldown first.
func (e *Engine) GenerateDream(ctx context.Context, p model.Pair, memories []model.MemoryFact, state model.EmotionalState) (*model.DreamState, error) {
	if err := validPair(p); err != nil {
		return nil, err
	}
	k := model.CooldownKey{CompanionID: p.CompanionID, Type: model.ReflectionDream}
	unlock := e.locks.Lock(k)
	defer unlock()
	return e.dream(ctx, p, memories, state)
}

func (e *Engine) dream(ctx context.Context, p model.Pair, memories []model.MemoryFact, state model.EmotionalState) (*model.DreamState, error) {
	now := e.clock.Now()
	symbols := dreamSymbols(memories)
	d := &model.DreamState{
		ID:             store.NewID(),
		UserID:         p.UserID,
		CompanionID:    p.CompanionID,
		EmotionalState: dampen(state),
		Symbolism:      symbols,
		Connections:    connections(symbols, memories),
		Timestamp:      now,
	}
	d.DreamContent = renderDream(d)

	err := e.commitFiring(ctx, model.CooldownKey{CompanionID: p.CompanionID, Type: model.ReflectionDream}, now, func() error {
		if err := e.store.SaveDream(ctx, *d); err != nil {
			return apperr.Internal("save dream", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("dream generated",
		"pair", p.String(),
		"memories", len(memories),
		"symbols", len(symbols),
	)
	return d, nil
}

// dreamSymbols returns memory-derived symbols in first-seen order followed
// by the universal ones, without duplicates.
func dreamSymbols(memories []model.MemoryFact) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, m := range memories {
		if s, ok := factSymbols[m.Type]; ok {
			add(s)
		}
	}
	for _, s := range UniversalSymbols {
		add(s)
	}
	return out
}

// dampen softens a state for dream framing.
func dampen(s model.EmotionalState) model.EmotionalState {
	s.Energy *= dreamEnergyFactor
	s.Curiosity = clamp01(s.Curiosity * dreamCuriosityFactor)
	return s
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

// connections counts, per symbol, the memories whose text mentions it.
func connections(symbols []string, memories []model.MemoryFact) map[string]int {
	out := make(map[string]int, len(symbols))
	for _, s := range symbols {
		needle := strings.ReplaceAll(s, "_", " ")
		n := 0
		for _, m := range memories {
			if strings.Contains(strings.ToLower(m.Text), needle) {
				n++
			}
		}
		out[s] = n
	}
	return out
}

func renderDream(d *model.DreamState) string {
	var b strings.Builder

	words := make([]string, len(d.Symbolism))
	for i, s := range d.Symbolism {
		words[i] = strings.ReplaceAll(s, "_", " ")
	}
	fmt.Fprintf(&b, "I dreamt of %s.", joinList(words))

	fmt.Fprintf(&b, " It was colored by %s and hazy at the edges (%s).",
		dominant(d.EmotionalState), describeState(d.EmotionalState))

	var threads []string
	for _, s := range d.Symbolism {
		if n := d.Connections[s]; n > 0 {
			threads = append(threads, fmt.Sprintf("%s through %d of my memories", strings.ReplaceAll(s, "_", " "), n))
		}
	}
	if len(threads) == 0 {
		b.WriteString(" Nothing tied it to a memory yet; it was pure feeling.")
	} else {
		fmt.Fprintf(&b, " Threads ran from %s.", joinList(threads))
	}
	return b.String()
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
