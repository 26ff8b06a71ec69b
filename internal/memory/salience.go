package memory

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/rcliao/companion-state/internal/model"
)

// TypeWeights is the base importance of each fact type.
var TypeWeights = map[model.FactType]float64{
	model.FactPersonal:     0.8,
	model.FactRelationship: 0.8,
	model.FactEmotional:    0.7,
	model.FactExperience:   0.6,
	model.FactKnowledge:    0.5,
	model.FactConversation: 0.3,
}

const (
	salienceTypeWeight  = 0.4
	salienceFrequency   = 0.3
	salienceRecency     = 0.3
	frequencySaturation = 10 // accesses at which frequency reaches 1
	recencyHalfLife     = 30 * 24 * time.Hour
)

// Salience scores how valuable a fact is at now. It is derived from type,
// access count and time since last access, so the stored column is only a
// snapshot.
func Salience(f model.MemoryFact, now time.Time) float64 {
	return salienceTypeWeight*TypeWeights[f.Type] +
		salienceFrequency*frequency(f.AccessCount) +
		salienceRecency*recency(f.LastAccessedAt, now)
}

func frequency(count int) float64 {
	if count <= 0 {
		return 0
	}
	v := math.Log2(float64(count)+1) / math.Log2(frequencySaturation+1)
	return math.Min(v, 1)
}

// recency decays by half every recencyHalfLife. Future timestamps count as now.
func recency(at, now time.Time) float64 {
	age := now.Sub(at)
	if age <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * float64(age) / float64(recencyHalfLife))
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "this": true, "to": true, "was": true,
	"with": true,
}

// tokenize lowercases s and splits it into words, dropping stopwords.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range tokenize(s) {
		set[tok] = true
	}
	return set
}

// jaccard is |a ∩ b| / |a ∪ b| over token sets. Two empty sets are identical.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

const substringBonus = 0.25

// lexicalRelevance is the share of query tokens found in text, plus a bonus
// when the whole query appears verbatim.
func lexicalRelevance(query string, queryTokens map[string]bool, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	textTokens := tokenSet(text)
	hits := 0
	for tok := range queryTokens {
		if textTokens[tok] {
			hits++
		}
	}
	score := float64(hits) / float64(len(queryTokens))
	if q := strings.TrimSpace(strings.ToLower(query)); q != "" && strings.Contains(strings.ToLower(text), q) {
		score += substringBonus
	}
	return math.Min(score, 1)
}
