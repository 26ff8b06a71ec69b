package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/companion-state/internal/model"
)

// LoadCooldown returns the last firing time of k. ok is false if k never fired.
func (s *SQLiteStore) LoadCooldown(ctx context.Context, k model.CooldownKey) (time.Time, bool, error) {
	var firedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT fired_at FROM cooldowns WHERE companion_id = ? AND type = ?`,
		k.CompanionID, k.Type).Scan(&firedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load cooldown %d/%s: %w", k.CompanionID, k.Type, err)
	}
	return parseTime(firedAt), true, nil
}

// SaveCooldown upserts the firing time of k.
func (s *SQLiteStore) SaveCooldown(ctx context.Context, k model.CooldownKey, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cooldowns (companion_id, type, fired_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (companion_id, type) DO UPDATE
		 SET fired_at = excluded.fired_at`,
		k.CompanionID, k.Type, formatTime(t))
	if err != nil {
		return fmt.Errorf("save cooldown %d/%s: %w", k.CompanionID, k.Type, err)
	}
	return nil
}

// ClearCooldown removes k.
func (s *SQLiteStore) ClearCooldown(ctx context.Context, k model.CooldownKey) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cooldowns WHERE companion_id = ? AND type = ?`, k.CompanionID, k.Type)
	if err != nil {
		return fmt.Errorf("clear cooldown %d/%s: %w", k.CompanionID, k.Type, err)
	}
	return nil
}
