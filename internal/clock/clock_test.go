package clock

import (
	"testing"
	"time"
)

func TestFake(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	f := NewFake(start)
	if got := f.Now(); !got.Equal(start) || got.Location() != time.UTC {
		t.Errorf("Now = %v, want %v in UTC", got, start)
	}

	f.Advance(90 * time.Minute)
	if got := f.Now(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Errorf("after Advance, Now = %v", got)
	}

	f.Set(start)
	if got := f.Now(); !got.Equal(start) {
		t.Errorf("after Set, Now = %v", got)
	}
}

func TestSeqRand(t *testing.T) {
	r := &SeqRand{Floats: []float64{0.1, 0.9}, Ints: []int{7, -1}}

	for i, want := range []float64{0.1, 0.9, 0.1} {
		if got := r.Float64(); got != want {
			t.Errorf("Float64 #%d = %v, want %v", i, got, want)
		}
	}
	if got := r.IntN(5); got != 2 {
		t.Errorf("IntN(5) = %d, want 2", got)
	}
	if got := r.IntN(5); got != 4 {
		t.Errorf("IntN(5) with a negative entry = %d, want 4", got)
	}
	if f, i := r.Draws(); f != 3 || i != 2 {
		t.Errorf("Draws = %d, %d; want 3, 2", f, i)
	}

	var empty SeqRand
	if empty.Float64() != 0 || empty.IntN(3) != 0 {
		t.Error("an empty sequence should yield zeros")
	}
}

func TestNewRand_InRange(t *testing.T) {
	r := NewRand()
	for range 100 {
		if v := r.Float64(); v < 0 || v >= 1 {
			t.Fatalf("Float64 = %v out of range", v)
		}
		if v := r.IntN(3); v < 0 || v >= 3 {
			t.Fatalf("IntN(3) = %d out of range", v)
		}
	}
}
