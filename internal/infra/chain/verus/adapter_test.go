package verus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/infra/chain"
	"github.com/verushub/stakewatch/internal/infra/rpc"
)

// fakeNode implements rpc.Provider with canned per-method responses.
type fakeNode struct {
	responses map[string]any
	errs      map[string]error
}

func (f *fakeNode) Name() string { return "fake" }

func (f *fakeNode) Call(ctx context.Context, method string, params ...any) (any, error) {
	if err, ok := f.errs[method]; ok {
		return nil, err
	}
	return f.responses[method], nil
}

func newAdapter(node *fakeNode) *Adapter {
	cfg := rpc.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiple: 1}
	return NewAdapter(rpc.NewClientWithRetry(cfg, node))
}

func TestCurrentHeight(t *testing.T) {
	a := newAdapter(&fakeNode{responses: map[string]any{"getblockcount": float64(2500000)}})

	height, err := a.CurrentHeight(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if height != 2500000 {
		t.Errorf("expected height 2500000, got %d", height)
	}
}

func TestBlockAtParsesStakeBlock(t *testing.T) {
	a := newAdapter(&fakeNode{responses: map[string]any{
		"getblockhash": "000000aa",
		"getblock": map[string]any{
			"hash":           "000000aa",
			"height":         float64(100),
			"time":           float64(1700000000),
			"validationtype": "stake",
			"tx": []any{
				map[string]any{
					"txid": "coinstake1",
					"vin":  []any{map[string]any{"coinbase": "abcd"}},
					"vout": []any{
						map[string]any{
							"n":     float64(0),
							"value": float64(24),
							"scriptPubKey": map[string]any{
								"addresses": []any{"iS8TfRPfVpKo5FVfSUzfHBQxo9KuzpnqLU"},
							},
						},
					},
				},
			},
		},
	}})

	block, err := a.BlockAt(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !block.IsStake() {
		t.Error("expected stake validation")
	}
	if block.Time != time.Unix(1700000000, 0).UTC() {
		t.Errorf("unexpected block time %v", block.Time)
	}

	tx := block.RewardTransaction()
	if tx == nil || tx.TxID != "coinstake1" {
		t.Fatalf("unexpected reward transaction: %+v", tx)
	}
	if !tx.IsCoinbase {
		t.Error("expected coinbase flag")
	}
	if tx.Outputs[0].ValueSats != 24*domain.CoinSats {
		t.Errorf("expected %d sats, got %d", 24*domain.CoinSats, tx.Outputs[0].ValueSats)
	}
}

func TestBlockAtLegacyBlocktype(t *testing.T) {
	a := newAdapter(&fakeNode{responses: map[string]any{
		"getblockhash": "000000bb",
		"getblock": map[string]any{
			"hash":      "000000bb",
			"height":    float64(50),
			"time":      float64(1600000000),
			"blocktype": "minted",
			"tx":        []any{},
		},
	}})

	block, err := a.BlockAt(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !block.IsStake() {
		t.Error("minted blocktype should map to stake validation")
	}
}

func TestBlockAtNotFound(t *testing.T) {
	a := newAdapter(&fakeNode{errs: map[string]error{
		"getblockhash": errors.New("rpc error -8: Block height out of range"),
	}})

	_, err := a.BlockAt(context.Background(), 99999999)
	if !errors.Is(err, chain.ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestValueRounding(t *testing.T) {
	// 5.99999999 coins must not lose a satoshi to float truncation.
	if got := toSats(5.99999999); got != 599999999 {
		t.Errorf("expected 599999999, got %d", got)
	}
	if got := toSats(12.0); got != 12*domain.CoinSats {
		t.Errorf("expected %d, got %d", 12*domain.CoinSats, got)
	}
}

func TestAddressIndexUnavailable(t *testing.T) {
	a := newAdapter(&fakeNode{errs: map[string]error{
		"getaddresstxids": errors.New("rpc error -32602: Address index not enabled"),
	}})

	if a.HasAddressIndex(context.Background()) {
		t.Error("expected capability probe to report no address index")
	}
	if _, err := a.TransactionIDs(context.Background(), "iS8TfRPfVpKo5FVfSUzfHBQxo9KuzpnqLU"); !errors.Is(err, chain.ErrNoAddressIndex) {
		t.Fatalf("expected ErrNoAddressIndex, got %v", err)
	}
}

func TestTransactionIDs(t *testing.T) {
	a := newAdapter(&fakeNode{responses: map[string]any{
		"getaddresstxids": []any{"tx1", "tx2", "tx3"},
	}})

	txids, err := a.TransactionIDs(context.Background(), "iS8TfRPfVpKo5FVfSUzfHBQxo9KuzpnqLU")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txids) != 3 || txids[0] != "tx1" {
		t.Errorf("unexpected txids: %v", txids)
	}
}

func TestIdentity(t *testing.T) {
	a := newAdapter(&fakeNode{responses: map[string]any{
		"getidentity": map[string]any{
			"identity": map[string]any{
				"name":             "alice",
				"identityaddress":  "iS8TfRPfVpKo5FVfSUzfHBQxo9KuzpnqLU",
				"primaryaddresses": []any{"RYQbUr9WtRRAnMjuddZGryLNXqFvoyGHiD"},
			},
		},
	}})

	id, err := a.Identity(context.Background(), "alice@")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.IdentityAddr != "iS8TfRPfVpKo5FVfSUzfHBQxo9KuzpnqLU" {
		t.Errorf("unexpected identity address %s", id.IdentityAddr)
	}
	if len(id.PrimaryAddrs) != 1 {
		t.Errorf("expected 1 primary address, got %d", len(id.PrimaryAddrs))
	}
}
