package memory

import (
	"context"
	"testing"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/model"
)

func TestHealth(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m, _ := newTestManager(t, st)

	seed(t, st, model.MemoryFact{Type: model.FactPersonal, Text: "a", CreatedAt: now.Add(-1 * day)})
	seed(t, st, model.MemoryFact{Type: model.FactEmotional, Text: "b", CreatedAt: now.Add(-3 * day)})
	seed(t, st, model.MemoryFact{Type: model.FactPersonal, Text: "c", CreatedAt: now.Add(-30 * day), State: model.FactArchived, ArchivedAt: &now})
	seed(t, st, model.MemoryFact{Type: model.FactPersonal, Text: "d", State: model.FactDeleted, DeletedAt: &now})
	seed(t, st, model.MemoryFact{UserID: 1, CompanionID: 2, Type: model.FactKnowledge, Text: "e", CreatedAt: now.Add(-2 * day)})

	h, err := m.Health(ctx, 1, 1)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h.Active != 2 || h.Archived != 1 || h.Deleted != 1 {
		t.Errorf("unexpected counts: %+v", h)
	}
	if h.ByType[model.FactPersonal] != 1 || h.ByType[model.FactEmotional] != 1 || h.ByType[model.FactKnowledge] != 0 {
		t.Errorf("unexpected breakdown: %v", h.ByType)
	}
	if len(h.ByType) != len(model.FactTypes) {
		t.Errorf("expected every type in the breakdown, got %v", h.ByType)
	}
	if !approx(h.AverageAgeDays, 2) {
		t.Errorf("expected average age 2 days, got %f", h.AverageAgeDays)
	}
	if !approx(h.GrowthPerDay, 2.0/7) {
		t.Errorf("expected growth 2/7 per day, got %f", h.GrowthPerDay)
	}

	all, _ := m.Health(ctx, 1, 0)
	if all.Active != 3 {
		t.Errorf("expected 3 active facts across companions, got %d", all.Active)
	}

	if _, err := m.Health(ctx, 0, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error without userId, got %v", err)
	}
}
