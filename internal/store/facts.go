package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/companion-state/internal/model"
)

const factColumns = `id, user_id, companion_id, type, text, created_at, last_accessed_at,
	access_count, salience, state, archived_at, deleted_at, embedding`

// PutFact inserts or replaces a fact.
func (s *SQLiteStore) PutFact(ctx context.Context, f model.MemoryFact) error {
	return putFact(ctx, s.db, f)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putFact(ctx context.Context, db execer, f model.MemoryFact) error {
	state := f.State
	if state == "" {
		state = model.FactActive
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO memory_facts (`+factColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			type = excluded.type,
			text = excluded.text,
			created_at = excluded.created_at,
			last_accessed_at = excluded.last_accessed_at,
			access_count = excluded.access_count,
			salience = excluded.salience,
			state = excluded.state,
			archived_at = excluded.archived_at,
			deleted_at = excluded.deleted_at,
			embedding = COALESCE(excluded.embedding, memory_facts.embedding)`,
		f.ID, f.UserID, f.CompanionID, f.Type, f.Text,
		formatTime(f.CreatedAt), formatTime(f.LastAccessedAt),
		f.AccessCount, f.Salience, state,
		nullTime(f.ArchivedAt), nullTime(f.DeletedAt), encodeEmbedding(f.Embedding))
	if err != nil {
		return fmt.Errorf("put fact %s: %w", f.ID, err)
	}
	return nil
}

// GetFact returns the fact with the given id in any state, or ErrNotFound.
func (s *SQLiteStore) GetFact(ctx context.Context, id string) (*model.MemoryFact, error) {
	f, err := scanFact(s.db.QueryRowContext(ctx,
		`SELECT `+factColumns+` FROM memory_facts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fact %s: %w", id, err)
	}
	return &f, nil
}

// ListFacts returns facts matching the filter, most recently accessed first.
func (s *SQLiteStore) ListFacts(ctx context.Context, p FactFilter) ([]model.MemoryFact, error) {
	where := []string{"1 = 1"}
	args := []interface{}{}

	if p.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, p.UserID)
	}
	if p.CompanionID != 0 {
		where = append(where, "companion_id = ?")
		args = append(args, p.CompanionID)
	}
	if len(p.States) > 0 {
		marks := make([]string, len(p.States))
		for i, st := range p.States {
			marks[i] = "?"
			args = append(args, st)
		}
		where = append(where, "state IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT ` + factColumns + ` FROM memory_facts WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY last_accessed_at DESC, id DESC`
	if p.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	var facts []model.MemoryFact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// TouchFact records one access of a non-deleted fact.
func (s *SQLiteStore) TouchFact(ctx context.Context, id string, at time.Time, salience float64) (*model.MemoryFact, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memory_facts
		SET access_count = access_count + 1, last_accessed_at = ?, salience = ?
		WHERE id = ? AND state != ?`,
		formatTime(at), salience, id, model.FactDeleted)
	if err != nil {
		return nil, fmt.Errorf("touch fact %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetFact(ctx, id)
}

// SetFactState moves a fact to state, stamping archived_at or deleted_at.
func (s *SQLiteStore) SetFactState(ctx context.Context, id string, state model.FactState, at time.Time) error {
	var col string
	switch state {
	case model.FactArchived:
		col = "archived_at"
	case model.FactDeleted:
		col = "deleted_at"
	case model.FactActive:
		col = "archived_at"
	default:
		return fmt.Errorf("invalid fact state %q", state)
	}

	stamp := nullTime(&at)
	if state == model.FactActive {
		stamp = nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE memory_facts SET state = ?, `+col+` = ? WHERE id = ?`, state, stamp, id)
	if err != nil {
		return fmt.Errorf("set fact state %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// versionMatch narrows a statement to a row still at the given version.
const versionMatch = ` AND state = ? AND access_count = ? AND last_accessed_at = ?`

func (v FactVersion) args(lead ...any) []any {
	return append(lead, v.State, v.AccessCount, formatTime(v.LastAccessedAt))
}

// ApplyConsolidation applies one batch in a single transaction.
func (s *SQLiteStore) ApplyConsolidation(ctx context.Context, b ConsolidationBatch) (ConsolidationApplied, error) {
	var out ConsolidationApplied
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return out, err
	}
	defer tx.Rollback()

	for _, m := range b.Merges {
		ok, err := applyMerge(ctx, tx, m)
		if err != nil {
			return ConsolidationApplied{}, err
		}
		if !ok {
			out.Skipped++
			continue
		}
		out.Absorbed += len(m.Absorbed)
	}

	at := formatTime(b.At)
	for _, v := range b.Archive {
		res, err := tx.ExecContext(ctx,
			`UPDATE memory_facts SET state = ?, archived_at = ? WHERE id = ?`+versionMatch,
			v.args(model.FactArchived, at, v.ID)...)
		if err != nil {
			return ConsolidationApplied{}, fmt.Errorf("archive fact %s: %w", v.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			out.Archived++
		} else {
			out.Skipped++
		}
	}

	for _, v := range b.Delete {
		res, err := tx.ExecContext(ctx, `DELETE FROM memory_facts WHERE id = ?`+versionMatch, v.args(v.ID)...)
		if err != nil {
			return ConsolidationApplied{}, fmt.Errorf("delete fact %s: %w", v.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			out.Deleted++
		} else {
			out.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return ConsolidationApplied{}, err
	}
	return out, nil
}

// applyMerge writes one merge under a savepoint and rolls it back when any
// member changed since it was read.
func applyMerge(ctx context.Context, tx *sql.Tx, m FactMerge) (bool, error) {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT consolidate_merge`); err != nil {
		return false, fmt.Errorf("merge into %s: %w", m.Base.ID, err)
	}
	ok, err := mergeRows(ctx, tx, m)
	if err != nil {
		return false, err
	}
	if !ok {
		if _, err := tx.ExecContext(ctx, `ROLLBACK TO consolidate_merge`); err != nil {
			return false, fmt.Errorf("undo merge into %s: %w", m.Base.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `RELEASE consolidate_merge`); err != nil {
		return false, fmt.Errorf("merge into %s: %w", m.Base.ID, err)
	}
	return ok, nil
}

func mergeRows(ctx context.Context, tx *sql.Tx, m FactMerge) (bool, error) {
	f := m.Survivor
	res, err := tx.ExecContext(ctx, `
		UPDATE memory_facts
		SET created_at = ?, last_accessed_at = ?, access_count = ?, salience = ?
		WHERE id = ?`+versionMatch,
		m.Base.args(formatTime(f.CreatedAt), formatTime(f.LastAccessedAt), f.AccessCount, f.Salience, m.Base.ID)...)
	if err != nil {
		return false, fmt.Errorf("merge into %s: %w", m.Base.ID, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return false, nil
	}
	for _, v := range m.Absorbed {
		res, err := tx.ExecContext(ctx, `DELETE FROM memory_facts WHERE id = ?`+versionMatch, v.args(v.ID)...)
		if err != nil {
			return false, fmt.Errorf("remove merged fact %s: %w", v.ID, err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return false, nil
		}
	}
	return true, nil
}

func scanFact(row scanner) (model.MemoryFact, error) {
	var f model.MemoryFact
	var createdAt, lastAccessed, state string
	var archivedAt, deletedAt sql.NullString
	var embedding []byte

	err := row.Scan(
		&f.ID, &f.UserID, &f.CompanionID, &f.Type, &f.Text, &createdAt, &lastAccessed,
		&f.AccessCount, &f.Salience, &state, &archivedAt, &deletedAt, &embedding,
	)
	if err != nil {
		return f, err
	}

	f.CreatedAt = parseTime(createdAt)
	f.LastAccessedAt = parseTime(lastAccessed)
	f.State = model.FactState(state)
	f.ArchivedAt = scanNullTime(archivedAt)
	f.DeletedAt = scanNullTime(deletedAt)
	f.Embedding = decodeEmbedding(embedding)

	return f, nil
}
