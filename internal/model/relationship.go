package model

import (
	"fmt"
	"time"
)

// MaxRecentInteractions bounds the in-record interaction ring. Older events
// live only in the persistence layer and in the lifetime counters.
const MaxRecentInteractions = 50

// EventType is the kind of a chat turn.
type EventType string

const (
	EventConversation        EventType = "conversation"
	EventEmotionalSharing    EventType = "emotional_sharing"
	EventPersonalStory       EventType = "personal_story"
	EventSharedInterest      EventType = "shared_interest"
	EventMutualUnderstanding EventType = "mutual_understanding"
	EventSupportGiven        EventType = "support_given"
	EventPromiseKept         EventType = "promise_kept"
	EventDeepDiscussion      EventType = "deep_discussion"
)

// ValidEventTypes are the allowed interaction event types.
var ValidEventTypes = map[EventType]bool{
	EventConversation:        true,
	EventEmotionalSharing:    true,
	EventPersonalStory:       true,
	EventSharedInterest:      true,
	EventMutualUnderstanding: true,
	EventSupportGiven:        true,
	EventPromiseKept:         true,
	EventDeepDiscussion:      true,
}

// InteractionEvent is the immutable record of one turn.
type InteractionEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	Type            EventType `json:"type"`
	Quality         float64   `json:"quality"`
	EmotionalDepth  float64   `json:"emotionalDepth"`
	SharedInterests float64   `json:"sharedInterests"`
	Consistency     float64   `json:"consistency"`
}

// Validate checks the event type and that every scalar is within [0,1].
func (e InteractionEvent) Validate() error {
	if !ValidEventTypes[e.Type] {
		return fmt.Errorf("invalid interaction type %q", e.Type)
	}
	for name, v := range map[string]float64{
		"quality":         e.Quality,
		"emotionalDepth":  e.EmotionalDepth,
		"sharedInterests": e.SharedInterests,
		"consistency":     e.Consistency,
	} {
		if !(v >= 0 && v <= 1) {
			return fmt.Errorf("%s must be within [0,1], got %g", name, v)
		}
	}
	return nil
}

// Metrics are the five relationship scores, each within [0,1].
type Metrics struct {
	Intimacy      float64 `json:"intimacy"`
	Trust         float64 `json:"trust"`
	Compatibility float64 `json:"compatibility"`
	Communication float64 `json:"communication"`
	Consistency   float64 `json:"consistency"`
}

// InitialMetrics are the scores of a pair that has never interacted.
func InitialMetrics() Metrics {
	return Metrics{
		Intimacy:      0.1,
		Trust:         0.5,
		Compatibility: 0.3,
		Communication: 0.3,
		Consistency:   0.5,
	}
}

// Average is the mean of the five metrics.
func (m Metrics) Average() float64 {
	return (m.Intimacy + m.Trust + m.Compatibility + m.Communication + m.Consistency) / 5
}

// RelationshipRecord is the per-pair relationship state.
type RelationshipRecord struct {
	Pair             Pair               `json:"pair"`
	Metrics          Metrics            `json:"metrics"`
	Recent           []InteractionEvent `json:"recentInteractions"`
	InteractionCount int                `json:"interactionCount"`
	TypeCounts       map[EventType]int  `json:"typeCounts"`
	CreatedAt        time.Time          `json:"createdAt"`
	LastUpdate       time.Time          `json:"lastUpdate"`
}

// NewRelationshipRecord returns the record of a pair before any interaction.
func NewRelationshipRecord(p Pair, now time.Time) RelationshipRecord {
	return RelationshipRecord{
		Pair:       p,
		Metrics:    InitialMetrics(),
		TypeCounts: map[EventType]int{},
		CreatedAt:  now,
		LastUpdate: now,
	}
}

// Clone returns a deep copy so callers can mutate without touching cached state.
func (r RelationshipRecord) Clone() RelationshipRecord {
	c := r
	c.Recent = append([]InteractionEvent(nil), r.Recent...)
	c.TypeCounts = make(map[EventType]int, len(r.TypeCounts))
	for k, v := range r.TypeCounts {
		c.TypeCounts[k] = v
	}
	return c
}

// Append adds ev to the bounded ring and the lifetime counters.
func (r *RelationshipRecord) Append(ev InteractionEvent) {
	r.Recent = append(r.Recent, ev)
	if over := len(r.Recent) - MaxRecentInteractions; over > 0 {
		r.Recent = append([]InteractionEvent(nil), r.Recent[over:]...)
	}
	r.InteractionCount++
	if r.TypeCounts == nil {
		r.TypeCounts = map[EventType]int{}
	}
	r.TypeCounts[ev.Type]++
}

// ToneModifiers shape how replies are phrased at a level.
type ToneModifiers struct {
	Formality   float64 `json:"formality" yaml:"formality"`
	Warmth      float64 `json:"warmth" yaml:"warmth"`
	Playfulness float64 `json:"playfulness" yaml:"playfulness"`
	Directness  float64 `json:"directness" yaml:"directness"`
	Affection   float64 `json:"affection" yaml:"affection"`
}

// Lexicon is the vocabulary available at a level.
type Lexicon struct {
	Greetings         []string `json:"greetings" yaml:"greetings"`
	Affirmations      []string `json:"affirmations" yaml:"affirmations"`
	Questions         []string `json:"questions" yaml:"questions"`
	Closings          []string `json:"closings" yaml:"closings"`
	AffectionateTerms []string `json:"affectionateTerms" yaml:"affectionate_terms"`
}

// Level is one rung of the relationship ladder.
type Level struct {
	Level                int           `json:"level" yaml:"level"`
	Name                 string        `json:"name" yaml:"name"`
	InteractionThreshold int           `json:"interactionThreshold" yaml:"interaction_threshold"`
	Tone                 ToneModifiers `json:"toneModifiers" yaml:"tone"`
	Lexicon              Lexicon       `json:"lexicon" yaml:"lexicon"`
}

// Progress describes how far a pair is toward the next level. Next and
// Fraction are nil at the top of the ladder.
type Progress struct {
	Current          Level    `json:"current"`
	Next             *Level   `json:"next,omitempty"`
	Fraction         *float64 `json:"progress,omitempty"`
	InteractionCount int      `json:"interactionCount"`
	Metrics          Metrics  `json:"metrics"`
	Average          float64  `json:"average"`
}
