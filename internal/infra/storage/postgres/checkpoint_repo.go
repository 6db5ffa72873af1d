package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/indexing/gaps"
)

// CheckpointRepo implements storage.CheckpointRepository using PostgreSQL.
type CheckpointRepo struct {
	db *DB
}

// NewCheckpointRepo creates a new PostgreSQL checkpoint repository.
func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

// GetAll retrieves all checkpoints, ascending by range start.
func (r *CheckpointRepo) GetAll(ctx context.Context) ([]*domain.ScanCheckpoint, error) {
	query := `
		SELECT id, range_start, range_end, completed_at
		FROM scan_checkpoints
		ORDER BY range_start ASC
	`

	var rows []*domain.ScanCheckpoint
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get checkpoints: %w", err)
	}
	return rows, nil
}

// Compact rewrites overlapping/adjacent checkpoint rows as their merged
// union. Runs in one transaction so coverage never shrinks observably.
func (r *CheckpointRepo) Compact(ctx context.Context) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rows []*domain.ScanCheckpoint
	err = tx.SelectContext(ctx, &rows, `
		SELECT id, range_start, range_end, completed_at
		FROM scan_checkpoints
		ORDER BY range_start ASC
		FOR UPDATE
	`)
	if err != nil {
		return fmt.Errorf("failed to lock checkpoints: %w", err)
	}
	if len(rows) <= 1 {
		return tx.Commit()
	}

	ranges := make([]gaps.Range, 0, len(rows))
	for _, cp := range rows {
		ranges = append(ranges, gaps.Range{Start: cp.RangeStart, End: cp.RangeEnd})
	}
	merged := gaps.MergeRanges(ranges)
	if len(merged) == len(rows) {
		return tx.Commit() // already compact
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scan_checkpoints`); err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	now := time.Now().UTC()
	for _, m := range merged {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scan_checkpoints (range_start, range_end, completed_at)
			VALUES ($1, $2, $3)
		`, m.Start, m.End, now)
		if err != nil {
			return fmt.Errorf("failed to write merged checkpoint: %w", err)
		}
	}

	return tx.Commit()
}
