package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/indexing/extract"
	"github.com/verushub/stakewatch/internal/infra/chain"
	"github.com/verushub/stakewatch/internal/infra/storage/memory"
)

func TestFastScanCollectsAddressRewards(t *testing.T) {
	node := newMockNode()
	reward := int64(24 * domain.CoinSats)
	node.addStakeBlock(10, testAddrA, reward)
	node.addStakeBlock(20, testAddrB, reward)
	node.addStakeBlock(30, testAddrA, reward)
	node.addWorkBlock(40)

	// A plain spend involving the address must not be mistaken for a reward.
	node.txs["spend-1"] = &domain.Transaction{
		TxID:        "spend-1",
		BlockHash:   "hash-40",
		BlockHeight: 40,
		IsCoinbase:  false,
		Outputs: []domain.Output{
			{Index: 0, ValueSats: 1000, Addresses: []string{testAddrA}},
		},
	}
	node.txids[testAddrA] = append(node.txids[testAddrA], "spend-1")

	store := memory.NewStore()
	res, err := NewFastScanner(node, store, 0, 2).Scan(context.Background(), testAddrA)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.RecordsNew != 2 {
		t.Errorf("RecordsNew = %d, want 2", res.RecordsNew)
	}

	rewards, err := store.Rewards().GetByAddress(context.Background(), testAddrA)
	if err != nil {
		t.Fatalf("GetByAddress: %v", err)
	}
	if len(rewards) != 2 {
		t.Fatalf("stored %d rewards, want 2", len(rewards))
	}
	if rewards[0].BlockHeight != 10 || rewards[1].BlockHeight != 30 {
		t.Errorf("heights = %d, %d; want 10, 30", rewards[0].BlockHeight, rewards[1].BlockHeight)
	}

	// Fast scans never claim height coverage.
	cps, err := store.Checkpoints().GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(cps) != 0 {
		t.Errorf("fast scan wrote %d checkpoints, want 0", len(cps))
	}
}

func TestFastScanWithoutAddressIndex(t *testing.T) {
	node := newMockNode()
	node.hasIndex = false

	store := memory.NewStore()
	_, err := NewFastScanner(node, store, 0, 2).Scan(context.Background(), testAddrA)
	if !errors.Is(err, chain.ErrNoAddressIndex) {
		t.Fatalf("err = %v, want ErrNoAddressIndex", err)
	}
}

func TestFastScanMatchesRangeScan(t *testing.T) {
	node := newMockNode()
	reward := int64(24 * domain.CoinSats)
	for h := uint64(0); h <= 20; h++ {
		if h%3 == 0 {
			node.addStakeBlock(h, testAddrA, reward)
		} else {
			node.addWorkBlock(h)
		}
	}

	// Fast first, then a full walk over the same heights: the walk must find
	// every reward already present and insert nothing.
	store := memory.NewStore()
	fastRes, err := NewFastScanner(node, store, 0, 4).Scan(context.Background(), testAddrA)
	if err != nil {
		t.Fatalf("fast scan: %v", err)
	}
	rangeRes, err := NewRangeScanner(node, store, 0).Scan(context.Background(), 0, 20, extract.AnyIdentity)
	if err != nil {
		t.Fatalf("range scan: %v", err)
	}
	if rangeRes.RecordsFound != fastRes.RecordsNew {
		t.Errorf("range found %d, fast inserted %d; expected identical reward sets",
			rangeRes.RecordsFound, fastRes.RecordsNew)
	}
	if rangeRes.RecordsNew != 0 {
		t.Errorf("range scan inserted %d new rows after fast scan, want 0", rangeRes.RecordsNew)
	}

	sum, err := store.Summaries().Get(context.Background(), testAddrA)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalStakes != int64(fastRes.RecordsNew) {
		t.Errorf("summary TotalStakes = %d, want %d", sum.TotalStakes, fastRes.RecordsNew)
	}
}

func TestFastScanFlagsOffScheduleAmounts(t *testing.T) {
	node := newMockNode()
	node.addStakeBlock(10, testAddrA, 24*domain.CoinSats)
	node.addStakeBlock(20, testAddrA, 7*domain.CoinSats) // not on the schedule

	store := memory.NewStore()
	res, err := NewFastScanner(node, store, 0, 2).Scan(context.Background(), testAddrA)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.RecordsNew != 2 {
		t.Errorf("RecordsNew = %d, want 2 (anomalies are flagged, not dropped)", res.RecordsNew)
	}
	if res.AnomalousCount != 1 {
		t.Errorf("AnomalousCount = %d, want 1", res.AnomalousCount)
	}
}
