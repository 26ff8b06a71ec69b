package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rcliao/companion-state/internal/model"
)

// LoadRelationship returns the stored record for p, or ErrNotFound.
func (s *SQLiteStore) LoadRelationship(ctx context.Context, p model.Pair) (*model.RelationshipRecord, error) {
	var (
		rec                  model.RelationshipRecord
		recent, typeCounts   string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT intimacy, trust, compatibility, communication, consistency,
		       recent, interaction_count, type_counts, created_at, updated_at
		FROM relationships WHERE user_id = ? AND companion_id = ?`,
		p.UserID, p.CompanionID).Scan(
		&rec.Metrics.Intimacy, &rec.Metrics.Trust, &rec.Metrics.Compatibility,
		&rec.Metrics.Communication, &rec.Metrics.Consistency,
		&recent, &rec.InteractionCount, &typeCounts, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load relationship %s: %w", p, err)
	}

	rec.Pair = p
	rec.CreatedAt = parseTime(createdAt)
	rec.LastUpdate = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(recent), &rec.Recent); err != nil {
		return nil, fmt.Errorf("decode recent interactions %s: %w", p, err)
	}
	rec.TypeCounts = map[model.EventType]int{}
	if err := json.Unmarshal([]byte(typeCounts), &rec.TypeCounts); err != nil {
		return nil, fmt.Errorf("decode type counts %s: %w", p, err)
	}
	return &rec, nil
}

// SaveRelationship upserts rec and appends ev to the interaction log atomically.
func (s *SQLiteStore) SaveRelationship(ctx context.Context, rec model.RelationshipRecord, ev *model.InteractionEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m := rec.Metrics
	_, err = tx.ExecContext(ctx, `
		INSERT INTO relationships (user_id, companion_id, intimacy, trust, compatibility,
		                           communication, consistency, recent, interaction_count,
		                           type_counts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, companion_id) DO UPDATE SET
			intimacy = excluded.intimacy,
			trust = excluded.trust,
			compatibility = excluded.compatibility,
			communication = excluded.communication,
			consistency = excluded.consistency,
			recent = excluded.recent,
			interaction_count = excluded.interaction_count,
			type_counts = excluded.type_counts,
			updated_at = excluded.updated_at`,
		rec.Pair.UserID, rec.Pair.CompanionID,
		m.Intimacy, m.Trust, m.Compatibility, m.Communication, m.Consistency,
		mustJSON(nonNilEvents(rec.Recent)), rec.InteractionCount, mustJSON(rec.TypeCounts),
		formatTime(rec.CreatedAt), formatTime(rec.LastUpdate))
	if err != nil {
		return fmt.Errorf("upsert relationship %s: %w", rec.Pair, err)
	}

	if ev != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO interaction_events (id, user_id, companion_id, type, quality,
			                                emotional_depth, shared_interests, consistency, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			NewID(), rec.Pair.UserID, rec.Pair.CompanionID, ev.Type, ev.Quality,
			ev.EmotionalDepth, ev.SharedInterests, ev.Consistency, formatTime(ev.Timestamp))
		if err != nil {
			return fmt.Errorf("insert interaction event: %w", err)
		}
	}

	return tx.Commit()
}

// CountInteractions returns how many raw events are logged for p.
func (s *SQLiteStore) CountInteractions(ctx context.Context, p model.Pair) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interaction_events WHERE user_id = ? AND companion_id = ?`,
		p.UserID, p.CompanionID).Scan(&n)
	return n, err
}

func nonNilEvents(evs []model.InteractionEvent) []model.InteractionEvent {
	if evs == nil {
		return []model.InteractionEvent{}
	}
	return evs
}
