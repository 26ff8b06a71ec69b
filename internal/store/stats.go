package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/companion-state/internal/model"
)

// FactStats returns aggregate counts for the facts of one user, optionally
// narrowed to one companion. CreatedSince counts active and archived facts
// created at or after since; AvgAge is over active facts at now.
func (s *SQLiteStore) FactStats(ctx context.Context, userID, companionID int64, since, now time.Time) (*FactStats, error) {
	st := &FactStats{ByType: map[model.FactType]int{}}

	where := []string{"user_id = ?"}
	args := []interface{}{userID}
	if companionID != 0 {
		where = append(where, "companion_id = ?")
		args = append(args, companionID)
	}
	scope := strings.Join(where, " AND ")

	rows, err := s.db.QueryContext(ctx,
		`SELECT state, type, COUNT(*), COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		 FROM memory_facts WHERE `+scope+` GROUP BY state, type`,
		append([]interface{}{formatTime(since)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("fact stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state, typ string
		var count, recent int
		if err := rows.Scan(&state, &typ, &count, &recent); err != nil {
			return nil, err
		}
		switch model.FactState(state) {
		case model.FactActive:
			st.Active += count
			st.ByType[model.FactType(typ)] += count
			st.CreatedSince += recent
		case model.FactArchived:
			st.Archived += count
			st.CreatedSince += recent
		case model.FactDeleted:
			st.Deleted += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Age is computed in Go: the fixed-width text timestamps are not
	// something SQLite date functions parse reliably.
	ageRows, err := s.db.QueryContext(ctx,
		`SELECT created_at FROM memory_facts WHERE `+scope+` AND state = ?`,
		append(args, model.FactActive)...)
	if err != nil {
		return nil, fmt.Errorf("fact ages: %w", err)
	}
	defer ageRows.Close()

	var total time.Duration
	var n int
	for ageRows.Next() {
		var createdAt string
		if err := ageRows.Scan(&createdAt); err != nil {
			return nil, err
		}
		total += now.Sub(parseTime(createdAt))
		n++
	}
	if n > 0 {
		st.AvgAge = total / time.Duration(n)
	}

	return st, ageRows.Err()
}
