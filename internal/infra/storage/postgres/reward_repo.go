package postgres

import (
	"context"
	"fmt"

	"github.com/verushub/stakewatch/internal/core/domain"
)

// RewardRepo implements storage.RewardRepository using PostgreSQL.
type RewardRepo struct {
	db *DB
}

// NewRewardRepo creates a new PostgreSQL reward repository.
func NewRewardRepo(db *DB) *RewardRepo {
	return &RewardRepo{db: db}
}

// GetByAddress retrieves all rewards for an address, ascending by height.
func (r *RewardRepo) GetByAddress(ctx context.Context, address string) ([]*domain.StakeReward, error) {
	query := `
		SELECT identity_address, block_height, block_time, txid, output_index, amount
		FROM stake_rewards
		WHERE identity_address = $1
		ORDER BY block_height ASC, output_index ASC
	`

	var rows []*domain.StakeReward
	if err := r.db.SelectContext(ctx, &rows, query, address); err != nil {
		return nil, fmt.Errorf("failed to get rewards: %w", err)
	}
	return rows, nil
}

// CountByAddress returns the number of reward rows for an address.
func (r *RewardRepo) CountByAddress(ctx context.Context, address string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM stake_rewards WHERE identity_address = $1`, address)
	if err != nil {
		return 0, fmt.Errorf("failed to count rewards: %w", err)
	}
	return count, nil
}
