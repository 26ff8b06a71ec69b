package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/clock"
	"github.com/rcliao/companion-state/internal/embedding"
	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/store"
)

var (
	now  = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	pair = model.Pair{UserID: 1, CompanionID: 1}
	day  = 24 * time.Hour
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestManager(t *testing.T, st store.FactStore) (*Manager, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(now)
	return New(st, clk, Config{}, nil), clk
}

// seed stores f directly so tests control its timestamps and counters.
func seed(t *testing.T, st store.FactStore, f model.MemoryFact) model.MemoryFact {
	t.Helper()
	if f.ID == "" {
		f.ID = store.NewID()
	}
	if f.UserID == 0 {
		f.UserID, f.CompanionID = pair.UserID, pair.CompanionID
	}
	if f.State == "" {
		f.State = model.FactActive
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.LastAccessedAt.IsZero() {
		f.LastAccessedAt = f.CreatedAt
	}
	f.Salience = Salience(f, now)
	if err := st.PutFact(context.Background(), f); err != nil {
		t.Fatalf("seed fact: %v", err)
	}
	return f
}

func TestSearch_Pizza(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m, _ := newTestManager(t, st)

	pizza, err := m.Remember(ctx, pair, model.FactPersonal, "User likes pizza")
	if err != nil {
		t.Fatal(err)
	}
	m.Remember(ctx, pair, model.FactPersonal, "User works night shifts as a nurse")
	m.Remember(ctx, pair, model.FactExperience, "User adopted a dog named Max")

	results, err := m.Search(ctx, SearchParams{Query: "pizza", UserID: 1, CompanionID: 1, Limit: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected the pizza fact, got nothing")
	}
	if results[0].ID != pizza.ID {
		t.Errorf("expected %s first, got %s (%q)", pizza.ID, results[0].ID, results[0].Text)
	}
	if len(results) != 1 {
		t.Errorf("expected unrelated facts to be excluded, got %d results", len(results))
	}
}

func TestSearch_StopwordQuery(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m, _ := newTestManager(t, st)

	old := seed(t, st, model.MemoryFact{Type: model.FactKnowledge, Text: "User reads about volcanoes", CreatedAt: now.Add(-10 * day)})
	fresh := seed(t, st, model.MemoryFact{Type: model.FactPersonal, Text: "User has a sister named Ana"})

	for _, q := range []string{"the", "is it the"} {
		results, err := m.Search(ctx, SearchParams{Query: q, UserID: 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 2 {
			t.Fatalf("query %q: expected every active fact, got %d", q, len(results))
		}
		if results[0].ID != fresh.ID || results[1].ID != old.ID {
			t.Errorf("query %q: expected recency and salience order, got %s then %s", q, results[0].Text, results[1].Text)
		}
	}
}

func TestSearch_RanksAndLimits(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m, _ := newTestManager(t, st)

	for i := 0; i < 7; i++ {
		seed(t, st, model.MemoryFact{
			Type:      model.FactKnowledge,
			Text:      "User reads about coffee brewing",
			CreatedAt: now.Add(-time.Duration(i) * day),
		})
	}
	fresh := seed(t, st, model.MemoryFact{Type: model.FactPersonal, Text: "User drinks coffee daily"})

	results, err := m.Search(ctx, SearchParams{Query: "coffee", UserID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Fatalf("expected default limit of 5, got %d", len(results))
	}
	if results[0].ID != fresh.ID {
		t.Errorf("expected the recent high-salience fact first, got %q", results[0].Text)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted by score at %d", i)
		}
		if results[i].Score == results[i-1].Score && results[i].LastAccessedAt.After(results[i-1].LastAccessedAt) {
			t.Fatalf("tie at %d not broken by most recent access", i)
		}
	}
}

func TestSearch_ScopeAndState(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m, _ := newTestManager(t, st)

	seed(t, st, model.MemoryFact{Type: model.FactPersonal, Text: "User plays chess"})
	seed(t, st, model.MemoryFact{UserID: 1, CompanionID: 2, Type: model.FactPersonal, Text: "User plays chess online"})
	seed(t, st, model.MemoryFact{UserID: 2, CompanionID: 1, Type: model.FactPersonal, Text: "Other user plays chess"})
	archivedAt := now.Add(-day)
	seed(t, st, model.MemoryFact{Type: model.FactPersonal, Text: "User played chess as a kid", State: model.FactArchived, ArchivedAt: &archivedAt})

	all, _ := m.Search(ctx, SearchParams{Query: "chess", UserID: 1})
	if len(all) != 2 {
		t.Errorf("expected 2 active facts across user 1's companions, got %d", len(all))
	}
	one, _ := m.Search(ctx, SearchParams{Query: "chess", UserID: 1, CompanionID: 2})
	if len(one) != 1 || one[0].CompanionID != 2 {
		t.Errorf("expected only companion 2's fact, got %+v", one)
	}

	_, err := m.Search(ctx, SearchParams{Query: "chess"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error without userId, got %v", err)
	}
}

type fakeEmbedder map[string]embedding.Vector

func (f fakeEmbedder) Embed(_ context.Context, text string) (embedding.Vector, error) {
	if v, ok := f[text]; ok {
		return v, nil
	}
	return nil, errors.New("no vector")
}

func (f fakeEmbedder) Dims() int { return 2 }

func TestSearch_SemanticRelevance(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m, _ := newTestManager(t, st)
	m.WithEmbedder(fakeEmbedder{
		"User likes pizza":      {1, 0},
		"User is afraid of ice": {0, 1},
		"italian food":          {0.9, 0.1},
	})

	pizza, err := m.Remember(ctx, pair, model.FactPersonal, "User likes pizza")
	if err != nil {
		t.Fatal(err)
	}
	if len(pizza.Embedding) != 2 {
		t.Fatalf("expected stored embedding, got %v", pizza.Embedding)
	}
	m.Remember(ctx, pair, model.FactEmotional, "User is afraid of ice")

	results, err := m.Search(ctx, SearchParams{Query: "italian food", UserID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].ID != pizza.ID {
		t.Fatalf("expected pizza fact first via embeddings, got %+v", results)
	}

	// A failing provider falls back to lexical relevance.
	results, err = m.Search(ctx, SearchParams{Query: "ice", UserID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Text != "User is afraid of ice" {
		t.Errorf("expected lexical match for ice, got %+v", results)
	}
}

func TestAccess(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m, clk := newTestManager(t, st)

	f := seed(t, st, model.MemoryFact{Type: model.FactPersonal, Text: "User's birthday is in May", CreatedAt: now.Add(-10 * day)})

	clk.Advance(time.Hour)
	got, err := m.Access(ctx, f.ID)
	if err != nil {
		t.Fatalf("access: %v", err)
	}
	if got.AccessCount != 1 {
		t.Errorf("expected access count 1, got %d", got.AccessCount)
	}
	if !got.LastAccessedAt.Equal(clk.Now()) {
		t.Errorf("expected last access %v, got %v", clk.Now(), got.LastAccessedAt)
	}
	if got.Salience <= f.Salience {
		t.Errorf("expected salience snapshot to rise after access: %f -> %f", f.Salience, got.Salience)
	}

	got, _ = m.Access(ctx, f.ID)
	if got.AccessCount != 2 {
		t.Errorf("expected access count 2, got %d", got.AccessCount)
	}
}

func TestAccess_NotFound(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m, _ := newTestManager(t, st)

	if _, err := m.Access(ctx, "nope"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for unknown id, got %v", err)
	}
	if _, err := m.Access(ctx, ""); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for empty id, got %v", err)
	}

	f := seed(t, st, model.MemoryFact{Type: model.FactKnowledge, Text: "temporary"})
	if err := m.Forget(ctx, f.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Access(ctx, f.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for forgotten fact, got %v", err)
	}
	if err := m.Forget(ctx, f.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found forgetting twice, got %v", err)
	}
}

func TestAccess_ArchivedStaysArchived(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m, _ := newTestManager(t, st)

	at := now.Add(-5 * day)
	f := seed(t, st, model.MemoryFact{Type: model.FactKnowledge, Text: "old trivia", State: model.FactArchived, ArchivedAt: &at})

	got, err := m.Access(ctx, f.ID)
	if err != nil {
		t.Fatalf("access archived: %v", err)
	}
	if got.State != model.FactArchived || got.AccessCount != 1 {
		t.Errorf("expected archived fact with one access, got state=%s count=%d", got.State, got.AccessCount)
	}
}

func TestRemember_Validation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, newTestStore(t))

	tests := []struct {
		name  string
		pair  model.Pair
		typ   model.FactType
		text  string
		field string
	}{
		{"missing user", model.Pair{CompanionID: 1}, model.FactPersonal, "x", "userId"},
		{"missing companion", model.Pair{UserID: 1}, model.FactPersonal, "x", "companionId"},
		{"bad type", pair, "gossip", "x", "type"},
		{"blank text", pair, model.FactPersonal, "   ", "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Remember(ctx, tt.pair, tt.typ, tt.text)
			var ae *apperr.Error
			if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation || ae.Field != tt.field {
				t.Errorf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestFacts(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	m, _ := newTestManager(t, st)

	seed(t, st, model.MemoryFact{Type: model.FactPersonal, Text: "one"})
	seed(t, st, model.MemoryFact{Type: model.FactPersonal, Text: "two"})
	seed(t, st, model.MemoryFact{Type: model.FactPersonal, Text: "gone", State: model.FactDeleted, DeletedAt: &now})

	facts, err := m.Facts(ctx, pair)
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 2 {
		t.Errorf("expected 2 active facts, got %d", len(facts))
	}
}
