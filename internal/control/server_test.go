package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/indexing/gaps"
	"github.com/verushub/stakewatch/internal/indexing/scan"
	"github.com/verushub/stakewatch/internal/infra/chain"
	"github.com/verushub/stakewatch/internal/infra/storage/memory"
)

const testAddr = "iS8TfRPfVpKo5FVfSUzfHBQxo9KuzpnqLU"

// stubNode is a minimal chain.Node for handler tests.
type stubNode struct {
	tip      uint64
	hasIndex bool
	identity *domain.Identity
}

func (n *stubNode) CurrentHeight(ctx context.Context) (uint64, error) { return n.tip, nil }
func (n *stubNode) BlockAt(ctx context.Context, height uint64) (*domain.Block, error) {
	return nil, chain.ErrBlockNotFound
}
func (n *stubNode) BlockHeader(ctx context.Context, hash string) (*domain.Block, error) {
	return nil, chain.ErrBlockNotFound
}
func (n *stubNode) Transaction(ctx context.Context, txid string) (*domain.Transaction, error) {
	return nil, chain.ErrBlockNotFound
}
func (n *stubNode) UnspentOutputs(ctx context.Context, address string) ([]domain.UTXO, error) {
	if !n.hasIndex {
		return nil, chain.ErrNoAddressIndex
	}
	return nil, nil
}
func (n *stubNode) TransactionIDs(ctx context.Context, address string) ([]string, error) {
	if !n.hasIndex {
		return nil, chain.ErrNoAddressIndex
	}
	return nil, nil
}
func (n *stubNode) Identity(ctx context.Context, name string) (*domain.Identity, error) {
	if n.identity == nil {
		return nil, chain.ErrBlockNotFound
	}
	return n.identity, nil
}
func (n *stubNode) HasAddressIndex(ctx context.Context) bool { return n.hasIndex }

func newTestServer(node chain.Node, store *memory.Store) (*Server, *scan.Coordinator) {
	detector := gaps.NewDetector(store.Checkpoints(), 0)
	coordinator := scan.NewCoordinator(
		scan.Config{MaxAttempts: 1, InitialBackoff: time.Millisecond, LeaseTTL: time.Second},
		node,
		scan.NewRangeScanner(node, store, 0),
		scan.NewFastScanner(node, store, 0, 2),
		detector,
		nil,
		0,
	)
	return NewServer(0, coordinator, detector, store, node), coordinator
}

func TestHandleFastScanStatuses(t *testing.T) {
	store := memory.NewStore()
	srv, c := newTestServer(&stubNode{hasIndex: true}, store)
	defer c.Stop()

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest("POST", "/scan/fast?address="+testAddr, nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest("POST", "/scan/fast?address=notanaddress", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid address status = %d, want 400", rec.Code)
	}
}

func TestHandleFastScanWithoutIndex(t *testing.T) {
	store := memory.NewStore()
	srv, c := newTestServer(&stubNode{hasIndex: false}, store)
	defer c.Stop()

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest("POST", "/scan/fast?address="+testAddr, nil))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["hint"] == "" {
		t.Error("capability-unavailable response carries no fallback hint")
	}
}

func TestHandleBackfillValidation(t *testing.T) {
	store := memory.NewStore()
	srv, c := newTestServer(&stubNode{hasIndex: true}, store)
	defer c.Stop()

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(
		"POST", "/scan/backfill", strings.NewReader(`{"start":100,"end":50}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(
		"POST", "/scan/backfill", strings.NewReader(`{"start":0}`)))
	if rec.Code != http.StatusAccepted {
		t.Errorf("open-ended backfill status = %d, want 202", rec.Code)
	}
}

func TestHandleSummaryNotFound(t *testing.T) {
	store := memory.NewStore()
	srv, c := newTestServer(&stubNode{hasIndex: true}, store)
	defer c.Stop()

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/summary?address="+testAddr, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleSummaryAndRewards(t *testing.T) {
	store := memory.NewStore()
	reward := &domain.StakeReward{
		IdentityAddress: testAddr,
		BlockHeight:     12,
		BlockTime:       time.Unix(1600000000, 0).UTC(),
		TxID:            "tx-1",
		OutputIndex:     0,
		Amount:          24 * domain.CoinSats,
	}
	if _, err := store.WriteBatch(context.Background(), []*domain.StakeReward{reward}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	srv, c := newTestServer(&stubNode{hasIndex: true}, store)
	defer c.Stop()

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/summary?address="+testAddr, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d, want 200", rec.Code)
	}
	var sum domain.IdentitySummary
	if err := json.NewDecoder(rec.Body).Decode(&sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.TotalStakes != 1 || sum.LastStakeHeight != 12 {
		t.Errorf("summary = %+v, want 1 stake at height 12", sum)
	}

	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/rewards?address="+testAddr, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("rewards status = %d, want 200", rec.Code)
	}
	var body struct {
		Count   int                   `json:"count"`
		Rewards []*domain.StakeReward `json:"rewards"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode rewards: %v", err)
	}
	if body.Count != 1 || len(body.Rewards) != 1 || body.Rewards[0].TxID != "tx-1" {
		t.Errorf("rewards body = %+v, want the seeded reward", body)
	}
}

func TestHandleIdentityLookup(t *testing.T) {
	store := memory.NewStore()
	node := &stubNode{
		hasIndex: true,
		identity: &domain.Identity{Name: "alice@", IdentityAddr: testAddr},
	}
	srv, c := newTestServer(node, store)
	defer c.Stop()

	// Unknown address: lookup succeeds and a fast scan is kicked off.
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/identity?name=alice@", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["scan"] != string(scan.StatusAccepted) {
		t.Errorf("scan = %v, want accepted", body["scan"])
	}

	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/identity", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want 400", rec.Code)
	}
}

func TestHandleCoverage(t *testing.T) {
	store := memory.NewStore()
	if _, err := store.WriteBatch(context.Background(), nil, &domain.ScanCheckpoint{
		RangeStart: 0,
		RangeEnd:   4,
	}); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	srv, c := newTestServer(&stubNode{hasIndex: true, tip: 9}, store)
	defer c.Stop()

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/coverage", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body coverageResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Covered) != 1 || body.Covered[0].End != 4 {
		t.Errorf("covered = %v, want [0-4]", body.Covered)
	}
	if len(body.Gaps) != 1 || body.Gaps[0].Start != 5 || body.Gaps[0].End != 9 {
		t.Errorf("gaps = %v, want [5-9]", body.Gaps)
	}
	if body.Tip != 9 {
		t.Errorf("tip = %d, want 9", body.Tip)
	}
}
