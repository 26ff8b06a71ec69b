package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rcliao/companion-state/internal/model"
)

// SaveReflection inserts a reflection. Reflections are immutable.
func (s *SQLiteStore) SaveReflection(ctx context.Context, r model.Reflection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reflections (id, user_id, companion_id, type, content, insights, key_themes,
		                         emotional_patterns, relationship_progress, trigger_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.CompanionID, r.Type, r.Content,
		mustJSON(nonNilStrings(r.Insights)), mustJSON(nonNilStrings(r.KeyThemes)),
		mustJSON(r.EmotionalPatterns), mustJSON(r.RelationshipProgress),
		r.TriggerReason, formatTime(r.Timestamp))
	if err != nil {
		return fmt.Errorf("insert reflection: %w", err)
	}
	return nil
}

// ListReflections returns reflections for a user, newest first. A zero
// companionID matches every companion.
func (s *SQLiteStore) ListReflections(ctx context.Context, userID, companionID int64, limit int) ([]model.Reflection, error) {
	where, args := pairScope(userID, companionID)
	query := `SELECT id, user_id, companion_id, type, content, insights, key_themes,
	                 emotional_patterns, relationship_progress, trigger_reason, created_at
	          FROM reflections WHERE ` + where + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reflections: %w", err)
	}
	defer rows.Close()

	var out []model.Reflection
	for rows.Next() {
		var r model.Reflection
		var insights, themes, patterns, progress, createdAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.CompanionID, &r.Type, &r.Content,
			&insights, &themes, &patterns, &progress, &r.TriggerReason, &createdAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(insights), &r.Insights)
		json.Unmarshal([]byte(themes), &r.KeyThemes)
		json.Unmarshal([]byte(patterns), &r.EmotionalPatterns)
		json.Unmarshal([]byte(progress), &r.RelationshipProgress)
		r.Timestamp = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveDream inserts a dream.
func (s *SQLiteStore) SaveDream(ctx context.Context, d model.DreamState) error {
	connections := d.Connections
	if connections == nil {
		connections = map[string]int{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dreams (id, user_id, companion_id, content, emotional_state, symbolism, connections, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.CompanionID, d.DreamContent, mustJSON(d.EmotionalState),
		mustJSON(nonNilStrings(d.Symbolism)), mustJSON(connections), formatTime(d.Timestamp))
	if err != nil {
		return fmt.Errorf("insert dream: %w", err)
	}
	return nil
}

// ListDreams returns dreams for a user, newest first.
func (s *SQLiteStore) ListDreams(ctx context.Context, userID, companionID int64, limit int) ([]model.DreamState, error) {
	where, args := pairScope(userID, companionID)
	query := `SELECT id, user_id, companion_id, content, emotional_state, symbolism, connections, created_at
	          FROM dreams WHERE ` + where + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dreams: %w", err)
	}
	defer rows.Close()

	var out []model.DreamState
	for rows.Next() {
		var d model.DreamState
		var state, symbolism, connections, createdAt string
		if err := rows.Scan(&d.ID, &d.UserID, &d.CompanionID, &d.DreamContent,
			&state, &symbolism, &connections, &createdAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(state), &d.EmotionalState)
		json.Unmarshal([]byte(symbolism), &d.Symbolism)
		json.Unmarshal([]byte(connections), &d.Connections)
		d.Timestamp = parseTime(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

func pairScope(userID, companionID int64) (string, []interface{}) {
	where := []string{"user_id = ?"}
	args := []interface{}{userID}
	if companionID != 0 {
		where = append(where, "companion_id = ?")
		args = append(args, companionID)
	}
	return strings.Join(where, " AND "), args
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
