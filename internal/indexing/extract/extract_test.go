package extract

import (
	"testing"
	"time"

	"github.com/verushub/stakewatch/internal/core/domain"
)

const (
	testAddr  = "iS8TfRPfVpKo5FVfSUzfHBQxo9KuzpnqLU"
	otherAddr = "iGTs4S3LZuaRGZjfbzTMXBKMzQnfLVHnK7"
	rawAddr   = "RYQbUr9WtRRAnMjuddZGryLNXqFvoyGHiD"
)

func stakeBlock(height uint64, outputs []domain.Output) *domain.Block {
	return &domain.Block{
		Height:         height,
		Hash:           "00000000abc",
		Time:           time.Unix(1700000000, 0),
		ValidationType: domain.ValidationStake,
		Transactions: []domain.Transaction{
			{
				TxID:       "tx0",
				IsCoinbase: true,
				Outputs:    outputs,
			},
		},
	}
}

func TestFromBlockRejectsWorkBlocks(t *testing.T) {
	b := stakeBlock(100, []domain.Output{
		{Index: 0, ValueSats: 24 * domain.CoinSats, Addresses: []string{testAddr}},
	})
	b.ValidationType = domain.ValidationWork

	if got := FromBlock(b, testAddr); len(got) != 0 {
		t.Fatalf("expected no matches from work block, got %d", len(got))
	}
}

func TestFromBlockFirstOutputTieBreak(t *testing.T) {
	// Target appears in outputs 0 and 2; only output 0 is the reward, the
	// second occurrence is change.
	b := stakeBlock(100, []domain.Output{
		{Index: 0, ValueSats: 24 * domain.CoinSats, Addresses: []string{testAddr}},
		{Index: 1, ValueSats: 5 * domain.CoinSats, Addresses: []string{otherAddr}},
		{Index: 2, ValueSats: 3 * domain.CoinSats, Addresses: []string{testAddr}},
	})

	got := FromBlock(b, testAddr)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if got[0].Reward.OutputIndex != 0 {
		t.Errorf("expected output 0, got %d", got[0].Reward.OutputIndex)
	}
	if got[0].Reward.Amount != 24*domain.CoinSats {
		t.Errorf("expected amount %d, got %d", 24*domain.CoinSats, got[0].Reward.Amount)
	}
}

func TestFromBlockAnyIdentityMode(t *testing.T) {
	b := stakeBlock(100, []domain.Output{
		{Index: 0, ValueSats: 24 * domain.CoinSats, Addresses: []string{testAddr}},
		{Index: 1, ValueSats: 2 * domain.CoinSats, Addresses: []string{rawAddr}},
		{Index: 2, ValueSats: 1 * domain.CoinSats, Addresses: []string{otherAddr}},
	})

	got := FromBlock(b, AnyIdentity)
	if len(got) != 2 {
		t.Fatalf("expected 2 identity matches, got %d", len(got))
	}
	if got[0].Reward.IdentityAddress != testAddr || got[1].Reward.IdentityAddress != otherAddr {
		t.Errorf("unexpected beneficiaries: %s, %s",
			got[0].Reward.IdentityAddress, got[1].Reward.IdentityAddress)
	}
}

func TestFromBlockEmptyBlock(t *testing.T) {
	b := &domain.Block{
		Height:         100,
		ValidationType: domain.ValidationStake,
	}
	if got := FromBlock(b, testAddr); got != nil {
		t.Fatalf("expected nil for block without transactions, got %v", got)
	}
}

func TestEpochConsistency(t *testing.T) {
	cases := []struct {
		height    uint64
		amount    int64
		anomalous bool
	}{
		{100, 24 * domain.CoinSats, false},
		{halvingInterval + 5, 12 * domain.CoinSats, false},
		// Block just past the halving still paying the old rate is expected.
		{halvingInterval + 5, 24 * domain.CoinSats, false},
		{100, 7 * domain.CoinSats, true},
	}

	for _, tc := range cases {
		b := stakeBlock(tc.height, []domain.Output{
			{Index: 0, ValueSats: tc.amount, Addresses: []string{testAddr}},
		})
		got := FromBlock(b, testAddr)
		if len(got) != 1 {
			t.Fatalf("height %d: expected 1 match, got %d", tc.height, len(got))
		}
		if got[0].Anomalous != tc.anomalous {
			t.Errorf("height %d amount %d: anomalous = %v, want %v",
				tc.height, tc.amount, got[0].Anomalous, tc.anomalous)
		}
	}
}

func TestEpochAt(t *testing.T) {
	if e := EpochAt(0); e.Index != 0 || e.Reward != 24*domain.CoinSats {
		t.Errorf("epoch 0: got index %d reward %d", e.Index, e.Reward)
	}
	if e := EpochAt(halvingInterval); e.Index != 1 || e.Reward != 12*domain.CoinSats {
		t.Errorf("epoch 1: got index %d reward %d", e.Index, e.Reward)
	}
	if e := EpochAt(2*halvingInterval + 1); e.Reward != 6*domain.CoinSats {
		t.Errorf("epoch 2: got reward %d", e.Reward)
	}
}

func TestFromTransactionRequiresCoinbase(t *testing.T) {
	tx := &domain.Transaction{
		TxID:        "tx1",
		BlockHeight: 100,
		IsCoinbase:  false,
		Outputs: []domain.Output{
			{Index: 0, ValueSats: 24 * domain.CoinSats, Addresses: []string{testAddr}},
		},
	}
	if got := FromTransaction(tx, testAddr); len(got) != 0 {
		t.Fatalf("expected no matches from non-coinbase tx, got %d", len(got))
	}

	tx.IsCoinbase = true
	if got := FromTransaction(tx, testAddr); len(got) != 1 {
		t.Fatalf("expected 1 match from coinbase tx, got %d", len(got))
	}
}
