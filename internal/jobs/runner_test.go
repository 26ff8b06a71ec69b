package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/companion-state/internal/clock"
	"github.com/rcliao/companion-state/internal/memory"
	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/reflection"
	"github.com/rcliao/companion-state/internal/relationship"
	"github.com/rcliao/companion-state/internal/store"
)

var t0 = time.Date(2026, 5, 2, 3, 0, 0, 0, time.UTC)

type fixture struct {
	store  *store.SQLiteStore
	clock  *clock.Fake
	memory *memory.Manager
	runner *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	clk := clock.NewFake(t0)
	tr := relationship.New(st, clk, &clock.SeqRand{}, nil, nil)
	mem := memory.New(st, clk, memory.Config{}, nil)
	eng := reflection.New(st, st, tr, clk, nil).WithMemory(mem)
	return &fixture{
		store:  st,
		clock:  clk,
		memory: mem,
		runner: New(st, mem, eng, nil, Config{}),
	}
}

func TestRunOnce_Empty(t *testing.T) {
	f := newFixture(t)
	sum := f.runner.RunOnce(t.Context())
	if sum != (Summary{}) {
		t.Errorf("expected empty summary, got %+v", sum)
	}
}

func TestRunOnce_ReflectsAndDreamsOncePerCooldown(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	p := model.Pair{UserID: 3, CompanionID: 9}

	if _, err := f.memory.Remember(ctx, p, model.FactPersonal, "Loves hiking in the mountains"); err != nil {
		t.Fatalf("remember: %v", err)
	}

	sum := f.runner.RunOnce(ctx)
	if sum.Pairs != 1 || sum.Reflections != 1 || sum.Dreams != 1 || sum.Failures != 0 {
		t.Fatalf("first tick: %+v", sum)
	}

	sum = f.runner.RunOnce(ctx)
	if sum.Reflections != 0 || sum.Dreams != 0 {
		t.Fatalf("second tick should be on cooldown: %+v", sum)
	}

	// Dream cooldown is 8h, daily is 24h.
	f.clock.Advance(8 * time.Hour)
	sum = f.runner.RunOnce(ctx)
	if sum.Reflections != 0 || sum.Dreams != 1 {
		t.Fatalf("after 8h: %+v", sum)
	}

	f.clock.Advance(16 * time.Hour)
	sum = f.runner.RunOnce(ctx)
	if sum.Reflections != 1 || sum.Dreams != 1 {
		t.Fatalf("after 24h: %+v", sum)
	}

	refs, err := f.store.ListReflections(ctx, p.UserID, p.CompanionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Errorf("expected 2 stored reflections, got %d", len(refs))
	}
	dreams, err := f.store.ListDreams(ctx, p.UserID, p.CompanionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(dreams) != 3 {
		t.Errorf("expected 3 stored dreams, got %d", len(dreams))
	}
}

func TestRunOnce_ArchivesStaleFacts(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	p := model.Pair{UserID: 1, CompanionID: 1}

	if _, err := f.memory.Remember(ctx, p, model.FactConversation, "Mentioned the weather once"); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(120 * 24 * time.Hour)

	sum := f.runner.RunOnce(ctx)
	if sum.Archived != 1 {
		t.Fatalf("expected one archived fact, got %+v", sum)
	}
	facts, err := f.memory.Facts(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 0 {
		t.Errorf("expected no active facts, got %d", len(facts))
	}
}

type brokenLister struct{}

func (brokenLister) ListPairs(context.Context) ([]model.Pair, error) {
	return nil, errors.New("database is locked")
}

func TestRunOnce_ListFailure(t *testing.T) {
	f := newFixture(t)
	r := New(brokenLister{}, f.memory, nil, nil, Config{})
	sum := r.RunOnce(t.Context())
	if sum.Failures != 1 || sum.Pairs != 0 {
		t.Errorf("expected a single failure, got %+v", sum)
	}
}

type fixedLister []model.Pair

func (l fixedLister) ListPairs(context.Context) ([]model.Pair, error) { return l, nil }

func TestRunOnce_PairFailureDoesNotStopTick(t *testing.T) {
	f := newFixture(t)
	eng := reflection.New(f.store, f.store, relationship.New(f.store, f.clock, &clock.SeqRand{}, nil, nil), f.clock, nil)
	// A zero companion id fails validation; the next pair still runs.
	r := New(fixedLister{{UserID: 1, CompanionID: 0}, {UserID: 2, CompanionID: 5}}, f.memory, eng, nil, Config{})

	sum := r.RunOnce(t.Context())
	if sum.Pairs != 2 || sum.Failures != 1 || sum.Reflections != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	r := New(f.store, f.memory, nil, nil, Config{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.applyDefaults()
	if c != DefaultConfig() {
		t.Errorf("applyDefaults = %+v, want %+v", c, DefaultConfig())
	}
}
