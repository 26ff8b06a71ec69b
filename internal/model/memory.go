// Package model defines the core companion state data types.
package model

import (
	"fmt"
	"time"
)

// Pair identifies the owner of relationship and memory state.
type Pair struct {
	UserID      int64 `json:"userId"`
	CompanionID int64 `json:"companionId"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%d:%d", p.UserID, p.CompanionID)
}

// FactType classifies a memory fact.
type FactType string

const (
	FactPersonal     FactType = "personal"
	FactExperience   FactType = "experience"
	FactRelationship FactType = "relationship"
	FactKnowledge    FactType = "knowledge"
	FactEmotional    FactType = "emotional"
	FactConversation FactType = "conversation"
)

// FactState is the lifecycle flag of a memory fact.
type FactState string

const (
	FactActive   FactState = "active"
	FactArchived FactState = "archived"
	FactDeleted  FactState = "deleted"
)

// MemoryFact is a single remembered fact about a user, owned by one pair.
type MemoryFact struct {
	ID             string     `json:"id"`
	UserID         int64      `json:"userId"`
	CompanionID    int64      `json:"companionId"`
	Type           FactType   `json:"type"`
	Text           string     `json:"text"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastAccessedAt time.Time  `json:"lastAccessedAt"`
	AccessCount    int        `json:"accessCount"`
	Salience       float64    `json:"salience"`
	State          FactState  `json:"state"`
	ArchivedAt     *time.Time `json:"archivedAt,omitempty"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	Embedding      []float32  `json:"-"`
}

// Pair returns the owner pair of the fact.
func (f MemoryFact) Pair() Pair {
	return Pair{UserID: f.UserID, CompanionID: f.CompanionID}
}

// ConsolidationResult counts what one consolidation run changed.
type ConsolidationResult struct {
	Consolidated int           `json:"consolidated"`
	Archived     int           `json:"archived"`
	Deleted      int           `json:"deleted"`
	Skipped      int           `json:"skipped"` // planned changes dropped because the fact changed meanwhile
	Scanned      int           `json:"scanned"`
	Duration     time.Duration `json:"durationNs"`
}

// Zero reports whether the run changed nothing.
func (r ConsolidationResult) Zero() bool {
	return r.Consolidated == 0 && r.Archived == 0 && r.Deleted == 0
}

// ValidFactTypes are the allowed fact types.
var ValidFactTypes = map[FactType]bool{
	FactPersonal:     true,
	FactExperience:   true,
	FactRelationship: true,
	FactKnowledge:    true,
	FactEmotional:    true,
	FactConversation: true,
}

// FactTypes lists fact types in display order.
var FactTypes = []FactType{
	FactPersonal, FactExperience, FactRelationship,
	FactKnowledge, FactEmotional, FactConversation,
}
