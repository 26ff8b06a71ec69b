package model

import "time"

// ReflectionType selects the cadence and framing of a reflection.
type ReflectionType string

const (
	ReflectionDaily         ReflectionType = "daily"
	ReflectionWeekly        ReflectionType = "weekly"
	ReflectionDream         ReflectionType = "dream"
	ReflectionIntrospection ReflectionType = "introspection"
)

// ValidReflectionTypes are the allowed reflection types.
var ValidReflectionTypes = map[ReflectionType]bool{
	ReflectionDaily:         true,
	ReflectionWeekly:        true,
	ReflectionDream:         true,
	ReflectionIntrospection: true,
}

// CooldownIntervals is how long each reflection type must wait after firing.
var CooldownIntervals = map[ReflectionType]time.Duration{
	ReflectionDaily:         24 * time.Hour,
	ReflectionWeekly:        7 * 24 * time.Hour,
	ReflectionDream:         8 * time.Hour,
	ReflectionIntrospection: 12 * time.Hour,
}

// CooldownKey identifies one cooldown timer.
type CooldownKey struct {
	CompanionID int64          `json:"companionId"`
	Type        ReflectionType `json:"type"`
}

// EmotionalState is a snapshot of the companion's mood, each value in [0,1].
type EmotionalState struct {
	Happiness   float64 `json:"happiness"`
	Energy      float64 `json:"energy"`
	Curiosity   float64 `json:"curiosity"`
	Empathy     float64 `json:"empathy"`
	Playfulness float64 `json:"playfulness"`
}

// Message is one entry of a conversation sample.
type Message struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
	Emotion   *EmotionalState `json:"emotion,omitempty"`
}

// EmotionalPatterns summarizes emotional state over a reflection window.
type EmotionalPatterns struct {
	Average  EmotionalState `json:"average"`
	Dominant string         `json:"dominant"`
	Trend    string         `json:"trend"`
	Samples  int            `json:"samples"`
}

// RelationshipSnapshot is the relationship state captured in a reflection.
type RelationshipSnapshot struct {
	Level            int      `json:"level"`
	LevelName        string   `json:"levelName"`
	NextLevelName    string   `json:"nextLevelName,omitempty"`
	Progress         *float64 `json:"progress,omitempty"`
	InteractionCount int      `json:"interactionCount"`
	Metrics          Metrics  `json:"metrics"`
}

// Reflection is an immutable periodic narrative summary.
type Reflection struct {
	ID                   string               `json:"id"`
	UserID               int64                `json:"userId"`
	CompanionID          int64                `json:"companionId"`
	Type                 ReflectionType       `json:"type"`
	Content              string               `json:"content"`
	Insights             []string             `json:"insights"`
	KeyThemes            []string             `json:"keyThemes"`
	EmotionalPatterns    EmotionalPatterns    `json:"emotionalPatterns"`
	RelationshipProgress RelationshipSnapshot `json:"relationshipProgress"`
	Timestamp            time.Time            `json:"timestamp"`
	TriggerReason        string               `json:"triggerReason"`
}

// DreamState is a dream synthesized from symbols and stored memories.
type DreamState struct {
	ID             string         `json:"id"`
	UserID         int64          `json:"userId"`
	CompanionID    int64          `json:"companionId"`
	DreamContent   string         `json:"dreamContent"`
	EmotionalState EmotionalState `json:"emotionalState"`
	Symbolism      []string       `json:"symbolism"`
	Connections    map[string]int `json:"connections"`
	Timestamp      time.Time      `json:"timestamp"`
}
