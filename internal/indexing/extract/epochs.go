package extract

import "github.com/verushub/stakewatch/internal/core/domain"

// Reward-rate epoch schedule: the per-block stake reward starts at 24 coins
// and halves at each issuance step-down.
const (
	initialReward   = 24 * domain.CoinSats
	halvingInterval = 2_102_400
)

// Epoch is a period with a constant expected stake reward.
type Epoch struct {
	Index       int
	StartHeight uint64
	Reward      int64
}

// EpochAt returns the reward-rate epoch containing height.
func EpochAt(height uint64) Epoch {
	idx := int(height / halvingInterval)
	reward := initialReward >> uint(idx)
	return Epoch{
		Index:       idx,
		StartHeight: uint64(idx) * halvingInterval,
		Reward:      reward,
	}
}

// ExpectedRewards returns the amounts considered normal at height: the
// epoch's own reward plus its neighbours, since blocks right at a halving
// boundary have historically paid either side's rate.
func ExpectedRewards(height uint64) []int64 {
	epoch := EpochAt(height)
	amounts := []int64{epoch.Reward}
	if epoch.Index > 0 {
		amounts = append(amounts, epoch.Reward<<1)
	}
	if next := epoch.Reward >> 1; next > 0 {
		amounts = append(amounts, next)
	}
	return amounts
}
