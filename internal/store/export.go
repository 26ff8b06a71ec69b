package store

import (
	"context"

	"github.com/rcliao/companion-state/internal/model"
)

// ExportFacts returns all active and archived facts, optionally filtered by user.
func (s *SQLiteStore) ExportFacts(ctx context.Context, userID int64) ([]model.MemoryFact, error) {
	return s.ListFacts(ctx, FactFilter{
		UserID: userID,
		States: []model.FactState{model.FactActive, model.FactArchived},
	})
}

// ImportFacts stores facts from an export. Facts keep their ids, so
// importing the same export twice overwrites rather than duplicates.
func (s *SQLiteStore) ImportFacts(ctx context.Context, facts []model.MemoryFact) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	imported := 0
	for _, f := range facts {
		if f.ID == "" {
			f.ID = NewID()
		}
		if err := putFact(ctx, tx, f); err != nil {
			return 0, err
		}
		imported++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return imported, nil
}
