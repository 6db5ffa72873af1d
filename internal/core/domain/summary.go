package domain

import "time"

// IdentitySummary is the materialized per-address aggregate over StakeReward
// rows. It is a cache: it must always equal re-aggregating the reward table
// for the address.
type IdentitySummary struct {
	IdentityAddress   string    `db:"identity_address"    json:"identity_address"`
	TotalStakes       int64     `db:"total_stakes"        json:"total_stakes"`
	TotalRewardAmount int64     `db:"total_reward_amount" json:"total_reward_amount"`
	FirstStakeHeight  uint64    `db:"first_stake_height"  json:"first_stake_height"`
	LastStakeHeight   uint64    `db:"last_stake_height"   json:"last_stake_height"`
	LastStakeTime     time.Time `db:"last_stake_time"     json:"last_stake_time"`
}

// Apply folds a reward into the summary.
func (s *IdentitySummary) Apply(r *StakeReward) {
	if s.TotalStakes == 0 || r.BlockHeight < s.FirstStakeHeight {
		s.FirstStakeHeight = r.BlockHeight
	}
	if r.BlockHeight > s.LastStakeHeight {
		s.LastStakeHeight = r.BlockHeight
		s.LastStakeTime = r.BlockTime
	}
	s.TotalStakes++
	s.TotalRewardAmount += r.Amount
}
