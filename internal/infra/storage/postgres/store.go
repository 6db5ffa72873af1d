package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/indexing/metrics"
	"github.com/verushub/stakewatch/internal/infra/storage"
)

// Store implements storage.Store on PostgreSQL. All batch writes go through
// one transaction so a checkpoint can never advance past ungranted rewards.
type Store struct {
	db          *DB
	rewards     *RewardRepo
	checkpoints *CheckpointRepo
	summaries   *SummaryRepo
}

// NewStore creates the PostgreSQL store.
func NewStore(db *DB) *Store {
	return &Store{
		db:          db,
		rewards:     NewRewardRepo(db),
		checkpoints: NewCheckpointRepo(db),
		summaries:   NewSummaryRepo(db),
	}
}

func (s *Store) Rewards() storage.RewardRepository         { return s.rewards }
func (s *Store) Checkpoints() storage.CheckpointRepository { return s.checkpoints }
func (s *Store) Summaries() storage.SummaryRepository      { return s.summaries }

// WriteBatch inserts the batch's rewards idempotently, applies the summary
// deltas for rows actually inserted, and records the covering checkpoint, all
// in one transaction. Duplicate (txid, output_index) rows are absorbed by the
// conflict clause; their deltas are excluded via RETURNING, keeping summaries
// exactly equal to the reward aggregate.
func (s *Store) WriteBatch(
	ctx context.Context,
	rewards []*domain.StakeReward,
	checkpoint *domain.ScanCheckpoint,
) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	if len(rewards) > 0 {
		metrics.DBBatchSize.Observe(float64(len(rewards)))

		var sb strings.Builder
		sb.WriteString(`
			INSERT INTO stake_rewards (identity_address, block_height, block_time, txid, output_index, amount)
			VALUES `)
		args := make([]any, 0, len(rewards)*6)
		for i, r := range rewards {
			if i > 0 {
				sb.WriteString(", ")
			}
			base := i * 6
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6)
			args = append(args,
				r.IdentityAddress, r.BlockHeight, r.BlockTime, r.TxID, r.OutputIndex, r.Amount)
		}
		sb.WriteString(`
			ON CONFLICT (txid, output_index) DO NOTHING
			RETURNING identity_address, block_height, block_time, amount`)

		rows, err := tx.QueryxContext(ctx, sb.String(), args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert rewards: %w", err)
		}

		deltas := make(map[string]*domain.IdentitySummary)
		for rows.Next() {
			var r struct {
				IdentityAddress string    `db:"identity_address"`
				BlockHeight     uint64    `db:"block_height"`
				BlockTime       time.Time `db:"block_time"`
				Amount          int64     `db:"amount"`
			}
			if err := rows.StructScan(&r); err != nil {
				rows.Close()
				return 0, fmt.Errorf("failed to scan inserted reward: %w", err)
			}
			inserted++
			d, ok := deltas[r.IdentityAddress]
			if !ok {
				d = &domain.IdentitySummary{IdentityAddress: r.IdentityAddress}
				deltas[r.IdentityAddress] = d
			}
			d.Apply(&domain.StakeReward{
				IdentityAddress: r.IdentityAddress,
				BlockHeight:     r.BlockHeight,
				BlockTime:       r.BlockTime,
				Amount:          r.Amount,
			})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("failed to read inserted rewards: %w", err)
		}

		for _, d := range deltas {
			if err := applySummaryDelta(ctx, tx, d); err != nil {
				return 0, err
			}
		}
	}

	if checkpoint != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scan_checkpoints (range_start, range_end, completed_at)
			VALUES ($1, $2, $3)
		`, checkpoint.RangeStart, checkpoint.RangeEnd, checkpoint.CompletedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to save checkpoint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return inserted, nil
}

func applySummaryDelta(ctx context.Context, tx *sqlx.Tx, d *domain.IdentitySummary) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO identity_summaries
			(identity_address, total_stakes, total_reward_amount, first_stake_height, last_stake_height, last_stake_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identity_address) DO UPDATE SET
			total_stakes = identity_summaries.total_stakes + EXCLUDED.total_stakes,
			total_reward_amount = identity_summaries.total_reward_amount + EXCLUDED.total_reward_amount,
			first_stake_height = LEAST(identity_summaries.first_stake_height, EXCLUDED.first_stake_height),
			last_stake_height = GREATEST(identity_summaries.last_stake_height, EXCLUDED.last_stake_height),
			last_stake_time = GREATEST(identity_summaries.last_stake_time, EXCLUDED.last_stake_time)
	`, d.IdentityAddress, d.TotalStakes, d.TotalRewardAmount,
		d.FirstStakeHeight, d.LastStakeHeight, d.LastStakeTime)
	if err != nil {
		return fmt.Errorf("failed to apply summary delta: %w", err)
	}
	return nil
}
