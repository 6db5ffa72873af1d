package storage

import (
	"context"
	"errors"

	"github.com/verushub/stakewatch/internal/core/domain"
)

var (
	// ErrSummaryNotFound is returned when no summary exists for an address.
	ErrSummaryNotFound = errors.New("summary not found")
)

// RewardRepository handles stake-reward storage operations.
type RewardRepository interface {
	// GetByAddress retrieves all rewards for an address, ascending by height.
	GetByAddress(ctx context.Context, address string) ([]*domain.StakeReward, error)

	// CountByAddress returns the number of reward rows for an address.
	CountByAddress(ctx context.Context, address string) (int, error)
}

// CheckpointRepository handles scan coverage records.
type CheckpointRepository interface {
	// GetAll retrieves all checkpoints, ascending by range start.
	GetAll(ctx context.Context) ([]*domain.ScanCheckpoint, error)

	// Compact rewrites overlapping/adjacent checkpoints as their merged union.
	Compact(ctx context.Context) error
}

// SummaryRepository handles the materialized per-address aggregates.
type SummaryRepository interface {
	// Get retrieves the summary for an address.
	Get(ctx context.Context, address string) (*domain.IdentitySummary, error)

	// Recompute rebuilds the summary for one address from the reward table.
	Recompute(ctx context.Context, address string) error

	// ReconcileAll rebuilds every summary from the reward table, correcting
	// any drift accumulated by incremental updates.
	ReconcileAll(ctx context.Context) error
}

// BatchWriter commits one scan batch atomically: reward inserts, the covering
// checkpoint, and the summary deltas for actually-inserted rows either all
// land or none do.
type BatchWriter interface {
	// WriteBatch persists rewards idempotently (duplicate (txid, output_index)
	// rows are absorbed) and, when checkpoint is non-nil, records the covered
	// range in the same transaction. Returns the number of rows actually
	// inserted.
	WriteBatch(ctx context.Context, rewards []*domain.StakeReward, checkpoint *domain.ScanCheckpoint) (int, error)
}

// Store bundles the persistence surface the scanners and coordinator consume.
type Store interface {
	BatchWriter
	Rewards() RewardRepository
	Checkpoints() CheckpointRepository
	Summaries() SummaryRepository
}
