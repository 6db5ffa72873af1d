// Package extract identifies stake-reward outputs in blocks.
//
// Extraction is pure: no I/O, no retries. Malformed blocks simply yield no
// matches; callers decide what to log.
package extract

import (
	"time"

	"github.com/verushub/stakewatch/internal/core/domain"
)

// AnyIdentity selects "any address" mode: every identity-style address found
// in the reward transaction is a candidate beneficiary.
const AnyIdentity = ""

// Match is one recognized stake reward plus validation context. Amounts
// outside the epoch's expected set are flagged, never rejected.
type Match struct {
	Reward    domain.StakeReward
	Epoch     Epoch
	Anomalous bool
}

// FromBlock extracts stake rewards from a block for the target address, or
// for every identity-style address when target is AnyIdentity.
//
// A proof-of-work block never pays stake rewards and yields nothing. Within
// the reward transaction, only the first output matching a given address is
// canonical; later occurrences are change and must not be double-counted.
func FromBlock(b *domain.Block, target string) []Match {
	if b == nil || !b.IsStake() {
		return nil
	}
	tx := b.RewardTransaction()
	if tx == nil {
		return nil
	}
	return fromOutputs(tx, b.Height, b.Time, target)
}

// FromTransaction applies the same matching rule to a single transaction that
// is already known to be the reward transaction of a stake block. Used by the
// address-indexed fast path, where blocks are not walked.
func FromTransaction(tx *domain.Transaction, target string) []Match {
	if tx == nil || !tx.IsCoinbase {
		return nil
	}
	return fromOutputs(tx, tx.BlockHeight, tx.BlockTime, target)
}

func fromOutputs(tx *domain.Transaction, height uint64, blockTime time.Time, target string) []Match {
	seen := make(map[string]bool)
	var matches []Match

	for _, out := range tx.Outputs {
		addr := beneficiary(&out, target)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true

		epoch := EpochAt(height)
		matches = append(matches, Match{
			Reward: domain.StakeReward{
				IdentityAddress: addr,
				BlockHeight:     height,
				BlockTime:       blockTime,
				TxID:            tx.TxID,
				OutputIndex:     out.Index,
				Amount:          out.ValueSats,
			},
			Epoch:     epoch,
			Anomalous: !expected(out.ValueSats, height),
		})
	}
	return matches
}

// beneficiary returns the address the output pays, restricted to the target
// (or to any identity-style address in AnyIdentity mode).
func beneficiary(out *domain.Output, target string) string {
	if target != AnyIdentity {
		if out.PaysAddress(target) {
			return target
		}
		return ""
	}
	for _, a := range out.Addresses {
		if domain.IsIdentityAddress(a) {
			return a
		}
	}
	return ""
}

func expected(amount int64, height uint64) bool {
	for _, want := range ExpectedRewards(height) {
		if amount == want {
			return true
		}
	}
	return false
}
