package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/indexing/extract"
	"github.com/verushub/stakewatch/internal/indexing/metrics"
	"github.com/verushub/stakewatch/internal/infra/chain"
	"github.com/verushub/stakewatch/internal/infra/storage"
)

// DefaultConcurrency bounds parallel transaction fetches so a fast scan
// amortizes network latency without overwhelming the node.
const DefaultConcurrency = 8

// FastScanner resolves one address's full reward history through the node's
// address-transaction index, in seconds instead of a full block walk.
type FastScanner struct {
	node        chain.Node
	store       storage.Store
	batchSize   int
	concurrency int
	log         *slog.Logger
}

// NewFastScanner creates a fast scanner. concurrency <= 0 selects the default.
func NewFastScanner(node chain.Node, store storage.Store, batchSize, concurrency int) *FastScanner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &FastScanner{
		node:        node,
		store:       store,
		batchSize:   batchSize,
		concurrency: concurrency,
		log:         slog.Default().With("component", "fast-scanner"),
	}
}

// Scan collects every stake reward ever paid to address via the address
// index. Returns chain.ErrNoAddressIndex when the node lacks the index; the
// coordinator falls back to the range path. Results are persisted through the
// same store as range scans, so they are indistinguishable from a full walk.
// No checkpoints are written: a fast scan covers an address, not a height
// range.
func (s *FastScanner) Scan(ctx context.Context, address string) (*domain.ScanResult, error) {
	res := &domain.ScanResult{StartedAt: time.Now().UTC()}

	if !s.node.HasAddressIndex(ctx) {
		return res, chain.ErrNoAddressIndex
	}

	// Two index calls: current unspent state plus full history.
	utxos, err := s.node.UnspentOutputs(ctx, address)
	if err != nil {
		return res, fmt.Errorf("failed to fetch utxos: %w", err)
	}
	txids, err := s.node.TransactionIDs(ctx, address)
	if err != nil {
		return res, fmt.Errorf("failed to fetch tx history: %w", err)
	}
	s.log.Info("fast scan started",
		"address", address, "utxos", len(utxos), "txids", len(txids))

	pool := pond.NewPool(s.concurrency)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var mu sync.Mutex
	var matches []extract.Match
	var fetchErr error

	for _, txid := range txids {
		txid := txid
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			found, err := s.inspect(groupCtx, txid, address)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if fetchErr == nil {
					fetchErr = err
				}
				return
			}
			matches = append(matches, found...)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return res, fmt.Errorf("fast scan pool failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if fetchErr != nil {
		return res, fetchErr
	}

	// Ascending height order, same as a block walk would produce.
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Reward.BlockHeight < matches[j].Reward.BlockHeight
	})

	for start := 0; start < len(matches); start += s.batchSize {
		chunk := matches[start:min(start+s.batchSize, len(matches))]
		rewards := make([]*domain.StakeReward, len(chunk))
		for i := range chunk {
			if chunk[i].Anomalous {
				metrics.RewardAnomalies.Inc()
				res.AnomalousCount++
			}
			rewards[i] = &chunk[i].Reward
		}
		inserted, err := s.store.WriteBatch(ctx, rewards, nil)
		if err != nil {
			return res, fmt.Errorf("failed to persist fast scan batch: %w", err)
		}
		res.RecordsFound += len(rewards)
		res.RecordsNew += inserted
		metrics.RewardsIndexed.WithLabelValues("fast").Add(float64(inserted))
	}

	// Rebuild the summary from the reward table so the lookup surface shows
	// exact aggregates right after the scan.
	if res.RecordsNew > 0 {
		if err := s.store.Summaries().Recompute(ctx, address); err != nil {
			return res, fmt.Errorf("failed to recompute summary: %w", err)
		}
	}

	res.FinishedAt = time.Now().UTC()
	return res, nil
}

// inspect decides whether one historical transaction is a stake reward paying
// address: it must be the coinbase of a stake-validated block.
func (s *FastScanner) inspect(ctx context.Context, txid, address string) ([]extract.Match, error) {
	tx, err := s.node.Transaction(ctx, txid)
	if err != nil {
		if errors.Is(err, chain.ErrMalformedData) || errors.Is(err, chain.ErrBlockNotFound) {
			s.log.Warn("skipping unreadable transaction", "txid", txid, "error", err)
			metrics.MalformedBlocks.Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("fetch failed for tx %s: %w", txid, err)
	}
	if !tx.IsCoinbase {
		return nil, nil
	}

	header, err := s.node.BlockHeader(ctx, tx.BlockHash)
	if err != nil {
		if errors.Is(err, chain.ErrMalformedData) || errors.Is(err, chain.ErrBlockNotFound) {
			s.log.Warn("skipping coinbase with unreadable block", "txid", txid, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("header fetch failed for tx %s: %w", txid, err)
	}
	if !header.IsStake() {
		return nil, nil
	}

	return extract.FromTransaction(tx, address), nil
}
