// Package memory provides an in-memory storage.Store for running without a
// database and for unit tests. Semantics mirror the PostgreSQL store,
// including duplicate-key absorption and exact summary deltas.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/infra/storage"
)

// Store is the in-memory implementation of storage.Store.
type Store struct {
	mu          sync.RWMutex
	rewards     map[string]*domain.StakeReward // key: txid:outputIndex
	checkpoints []*domain.ScanCheckpoint
	summaries   map[string]*domain.IdentitySummary
	nextCPID    int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		rewards:   make(map[string]*domain.StakeReward),
		summaries: make(map[string]*domain.IdentitySummary),
		nextCPID:  1,
	}
}

func rewardKey(txid string, outputIndex int) string {
	return fmt.Sprintf("%s:%d", txid, outputIndex)
}

// WriteBatch inserts rewards idempotently and records the checkpoint
// atomically under one lock.
func (s *Store) WriteBatch(
	ctx context.Context,
	rewards []*domain.StakeReward,
	checkpoint *domain.ScanCheckpoint,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range rewards {
		key := rewardKey(r.TxID, r.OutputIndex)
		if _, exists := s.rewards[key]; exists {
			continue
		}
		cp := *r
		s.rewards[key] = &cp
		inserted++

		sum, ok := s.summaries[r.IdentityAddress]
		if !ok {
			sum = &domain.IdentitySummary{IdentityAddress: r.IdentityAddress}
			s.summaries[r.IdentityAddress] = sum
		}
		sum.Apply(r)
	}

	if checkpoint != nil {
		cp := *checkpoint
		cp.ID = s.nextCPID
		s.nextCPID++
		if cp.CompletedAt.IsZero() {
			cp.CompletedAt = time.Now().UTC()
		}
		s.checkpoints = append(s.checkpoints, &cp)
	}
	return inserted, nil
}

func (s *Store) Rewards() storage.RewardRepository         { return (*rewardRepo)(s) }
func (s *Store) Checkpoints() storage.CheckpointRepository { return (*checkpointRepo)(s) }
func (s *Store) Summaries() storage.SummaryRepository      { return (*summaryRepo)(s) }

type rewardRepo Store

func (r *rewardRepo) GetByAddress(ctx context.Context, address string) ([]*domain.StakeReward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.StakeReward
	for _, reward := range r.rewards {
		if reward.IdentityAddress == address {
			cp := *reward
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockHeight != out[j].BlockHeight {
			return out[i].BlockHeight < out[j].BlockHeight
		}
		return out[i].OutputIndex < out[j].OutputIndex
	})
	return out, nil
}

func (r *rewardRepo) CountByAddress(ctx context.Context, address string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, reward := range r.rewards {
		if reward.IdentityAddress == address {
			count++
		}
	}
	return count, nil
}

type checkpointRepo Store

func (r *checkpointRepo) GetAll(ctx context.Context) ([]*domain.ScanCheckpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.ScanCheckpoint, len(r.checkpoints))
	for i, cp := range r.checkpoints {
		c := *cp
		out[i] = &c
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RangeStart < out[j].RangeStart })
	return out, nil
}

func (r *checkpointRepo) Compact(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.checkpoints) <= 1 {
		return nil
	}

	sort.Slice(r.checkpoints, func(i, j int) bool {
		return r.checkpoints[i].RangeStart < r.checkpoints[j].RangeStart
	})

	merged := []*domain.ScanCheckpoint{r.checkpoints[0]}
	for _, cp := range r.checkpoints[1:] {
		last := merged[len(merged)-1]
		if cp.RangeStart <= last.RangeEnd+1 {
			if cp.RangeEnd > last.RangeEnd {
				last.RangeEnd = cp.RangeEnd
			}
			if cp.CompletedAt.After(last.CompletedAt) {
				last.CompletedAt = cp.CompletedAt
			}
		} else {
			merged = append(merged, cp)
		}
	}
	r.checkpoints = merged
	return nil
}

type summaryRepo Store

func (r *summaryRepo) Get(ctx context.Context, address string) (*domain.IdentitySummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sum, ok := r.summaries[address]
	if !ok {
		return nil, storage.ErrSummaryNotFound
	}
	cp := *sum
	return &cp, nil
}

func (r *summaryRepo) Recompute(ctx context.Context, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recomputeLocked(address)
	return nil
}

func (r *summaryRepo) ReconcileAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	addrs := make(map[string]bool)
	for _, reward := range r.rewards {
		addrs[reward.IdentityAddress] = true
	}
	for addr := range r.summaries {
		addrs[addr] = true
	}
	for addr := range addrs {
		r.recomputeLocked(addr)
	}
	return nil
}

func (r *summaryRepo) recomputeLocked(address string) {
	var sum *domain.IdentitySummary
	for _, reward := range r.rewards {
		if reward.IdentityAddress != address {
			continue
		}
		if sum == nil {
			sum = &domain.IdentitySummary{IdentityAddress: address}
		}
		sum.Apply(reward)
	}
	if sum == nil {
		delete(r.summaries, address)
		return
	}
	r.summaries[address] = sum
}
