package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/infra/storage"
)

// SummaryRepo implements storage.SummaryRepository using PostgreSQL.
type SummaryRepo struct {
	db *DB
}

// NewSummaryRepo creates a new PostgreSQL summary repository.
func NewSummaryRepo(db *DB) *SummaryRepo {
	return &SummaryRepo{db: db}
}

// Get retrieves the summary for an address.
func (r *SummaryRepo) Get(ctx context.Context, address string) (*domain.IdentitySummary, error) {
	query := `
		SELECT identity_address, total_stakes, total_reward_amount,
		       first_stake_height, last_stake_height, last_stake_time
		FROM identity_summaries
		WHERE identity_address = $1
	`

	var row domain.IdentitySummary
	err := r.db.GetContext(ctx, &row, query, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return &row, nil
}

const aggregateQuery = `
	SELECT identity_address,
	       COUNT(*)            AS total_stakes,
	       SUM(amount)         AS total_reward_amount,
	       MIN(block_height)   AS first_stake_height,
	       MAX(block_height)   AS last_stake_height,
	       MAX(block_time)     AS last_stake_time
	FROM stake_rewards
`

// Recompute rebuilds the summary for one address from the reward table.
func (r *SummaryRepo) Recompute(ctx context.Context, address string) error {
	query := `
		INSERT INTO identity_summaries
			(identity_address, total_stakes, total_reward_amount, first_stake_height, last_stake_height, last_stake_time)
		` + aggregateQuery + `
		WHERE identity_address = $1
		GROUP BY identity_address
		ON CONFLICT (identity_address) DO UPDATE SET
			total_stakes = EXCLUDED.total_stakes,
			total_reward_amount = EXCLUDED.total_reward_amount,
			first_stake_height = EXCLUDED.first_stake_height,
			last_stake_height = EXCLUDED.last_stake_height,
			last_stake_time = EXCLUDED.last_stake_time
	`
	if _, err := r.db.ExecContext(ctx, query, address); err != nil {
		return fmt.Errorf("failed to recompute summary: %w", err)
	}
	return nil
}

// ReconcileAll rebuilds every summary from the reward table and removes
// summaries with no backing rewards. Corrects any incremental drift.
func (r *SummaryRepo) ReconcileAll(ctx context.Context) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rebuild := `
		INSERT INTO identity_summaries
			(identity_address, total_stakes, total_reward_amount, first_stake_height, last_stake_height, last_stake_time)
		` + aggregateQuery + `
		GROUP BY identity_address
		ON CONFLICT (identity_address) DO UPDATE SET
			total_stakes = EXCLUDED.total_stakes,
			total_reward_amount = EXCLUDED.total_reward_amount,
			first_stake_height = EXCLUDED.first_stake_height,
			last_stake_height = EXCLUDED.last_stake_height,
			last_stake_time = EXCLUDED.last_stake_time
	`
	if _, err := tx.ExecContext(ctx, rebuild); err != nil {
		return fmt.Errorf("failed to rebuild summaries: %w", err)
	}

	prune := `
		DELETE FROM identity_summaries s
		WHERE NOT EXISTS (
			SELECT 1 FROM stake_rewards r WHERE r.identity_address = s.identity_address
		)
	`
	if _, err := tx.ExecContext(ctx, prune); err != nil {
		return fmt.Errorf("failed to prune summaries: %w", err)
	}

	return tx.Commit()
}
