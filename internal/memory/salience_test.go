package memory

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rcliao/companion-state/internal/model"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSalience(t *testing.T) {
	tests := []struct {
		name string
		fact model.MemoryFact
		want float64
	}{
		{
			name: "fresh personal fact",
			fact: model.MemoryFact{Type: model.FactPersonal, LastAccessedAt: now},
			want: 0.4*0.8 + 0.3,
		},
		{
			name: "saturated frequency",
			fact: model.MemoryFact{Type: model.FactConversation, AccessCount: 10, LastAccessedAt: now},
			want: 0.4*0.3 + 0.3 + 0.3,
		},
		{
			name: "one half-life old",
			fact: model.MemoryFact{Type: model.FactKnowledge, LastAccessedAt: now.Add(-30 * day)},
			want: 0.4*0.5 + 0.3*0.5,
		},
		{
			name: "future access counts as now",
			fact: model.MemoryFact{Type: model.FactEmotional, LastAccessedAt: now.Add(time.Hour)},
			want: 0.4*0.7 + 0.3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Salience(tt.fact, now); !approx(got, tt.want) {
				t.Errorf("Salience() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSalience_Monotonic(t *testing.T) {
	f := model.MemoryFact{Type: model.FactExperience, LastAccessedAt: now.Add(-10 * day)}
	prev := Salience(f, now)
	for i := 1; i <= 20; i++ {
		f.AccessCount = i
		s := Salience(f, now)
		if s < prev {
			t.Fatalf("salience fell with more accesses at %d: %f < %f", i, s, prev)
		}
		if s > 1 {
			t.Fatalf("salience above 1: %f", s)
		}
		prev = s
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("The user's FAVORITE food is Pizza, with 2 toppings!")
	want := []string{"user", "s", "favorite", "food", "pizza", "2", "toppings"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokenize() = %v, want %v", got, want)
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"likes green tea", "Likes green tea!", 1},
		{"likes green tea", "likes black tea", 0.5},
		{"", "", 1},
		{"tea", "", 0},
	}
	for _, tt := range tests {
		if got := jaccard(tokenSet(tt.a), tokenSet(tt.b)); !approx(got, tt.want) {
			t.Errorf("jaccard(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLexicalRelevance(t *testing.T) {
	q := "green tea"
	qt := tokenSet(q)
	if got := lexicalRelevance(q, qt, "User likes green tea"); got != 1 {
		t.Errorf("expected full relevance, got %f", got)
	}
	if got := lexicalRelevance(q, qt, "User likes tea"); !approx(got, 0.5) {
		t.Errorf("expected half relevance, got %f", got)
	}
	if got := lexicalRelevance(q, qt, "User likes coffee"); got != 0 {
		t.Errorf("expected no relevance, got %f", got)
	}
	if got := lexicalRelevance("", tokenSet(""), "anything"); got != 0 {
		t.Errorf("expected empty query to score 0, got %f", got)
	}
}
