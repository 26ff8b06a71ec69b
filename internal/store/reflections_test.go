package store

import (
	"context"
	"testing"
	"time"

	"github.com/rcliao/companion-state/internal/model"
)

func TestReflections_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, companion := range []int64{1, 1, 2} {
		r := model.Reflection{
			ID:            NewID(),
			UserID:        5,
			CompanionID:   companion,
			Type:          model.ReflectionDaily,
			Content:       "# Daily Reflection",
			KeyThemes:     []string{"career"},
			TriggerReason: "scheduled",
			Timestamp:     t0.Add(time.Duration(i) * time.Hour),
		}
		if err := s.SaveReflection(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	all, err := s.ListReflections(ctx, 5, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].CompanionID != 2 || !all[0].Timestamp.Equal(t0.Add(2*time.Hour)) {
		t.Fatalf("unexpected reflections: %+v", all)
	}
	if all[1].Insights == nil || len(all[1].KeyThemes) != 1 || all[1].KeyThemes[0] != "career" {
		t.Errorf("list fields not decoded: %+v", all[1])
	}

	scoped, _ := s.ListReflections(ctx, 5, 1, 1)
	if len(scoped) != 1 || scoped[0].CompanionID != 1 || !scoped[0].Timestamp.Equal(t0.Add(time.Hour)) {
		t.Errorf("unexpected scoped reflections: %+v", scoped)
	}

	none, _ := s.ListReflections(ctx, 6, 0, 0)
	if len(none) != 0 {
		t.Errorf("expected no reflections for another user, got %d", len(none))
	}
}

func TestDreams_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	d := model.DreamState{
		ID:             NewID(),
		UserID:         5,
		CompanionID:    3,
		DreamContent:   "I dreamt of a garden.",
		EmotionalState: model.EmotionalState{Happiness: 0.6, Energy: 0.25},
		Symbolism:      []string{"growth", "time"},
		Connections:    map[string]int{"growth": 2},
		Timestamp:      t0,
	}
	if err := s.SaveDream(ctx, d); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListDreams(ctx, 5, 3, 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("ListDreams = %v, %v", got, err)
	}
	g := got[0]
	if g.DreamContent != d.DreamContent || g.EmotionalState.Energy != 0.25 || len(g.Symbolism) != 2 || g.Connections["growth"] != 2 {
		t.Errorf("unexpected dream: %+v", g)
	}
}

func TestCooldowns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	k := model.CooldownKey{CompanionID: 7, Type: model.ReflectionDream}

	if _, ok, err := s.LoadCooldown(ctx, k); ok || err != nil {
		t.Fatalf("expected a missing key, got ok=%v err=%v", ok, err)
	}

	for _, at := range []time.Time{t0, t0.Add(8 * time.Hour)} {
		if err := s.SaveCooldown(ctx, k, at); err != nil {
			t.Fatal(err)
		}
	}
	got, ok, err := s.LoadCooldown(ctx, k)
	if err != nil || !ok || !got.Equal(t0.Add(8*time.Hour)) {
		t.Errorf("LoadCooldown = %v, %v, %v", got, ok, err)
	}

	other := model.CooldownKey{CompanionID: 7, Type: model.ReflectionDaily}
	if _, ok, _ := s.LoadCooldown(ctx, other); ok {
		t.Error("cooldown keys should be independent")
	}

	if err := s.ClearCooldown(ctx, k); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.LoadCooldown(ctx, k); ok {
		t.Error("expected the cleared key to read as never fired")
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	putTestFact(t, s, model.MemoryFact{Text: "likes jazz"})
	putTestFact(t, s, model.MemoryFact{Text: "moved to Lisbon", State: model.FactArchived})
	putTestFact(t, s, model.MemoryFact{Text: "forgotten", State: model.FactDeleted})
	putTestFact(t, s, model.MemoryFact{UserID: 2, CompanionID: 1, Text: "another user"})

	facts, err := s.ExportFacts(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected active and archived facts only, got %d", len(facts))
	}

	dst := newTestStore(t)
	for range 2 {
		n, err := dst.ImportFacts(ctx, facts)
		if err != nil || n != 2 {
			t.Fatalf("ImportFacts = %d, %v", n, err)
		}
	}
	got, _ := dst.ListFacts(ctx, FactFilter{})
	if len(got) != 2 {
		t.Errorf("importing twice should not duplicate, got %d facts", len(got))
	}
}
