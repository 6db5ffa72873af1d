// Package chain defines the read-only node surface the indexer consumes.
package chain

import (
	"context"
	"errors"

	"github.com/verushub/stakewatch/internal/core/domain"
)

var (
	// ErrNoAddressIndex is returned when the node does not expose an
	// address-transaction index. A capability gap, not a failure: callers
	// fall back to the range-scan path.
	ErrNoAddressIndex = errors.New("address index not available on node")

	// ErrBlockNotFound is returned for heights past the tip or unknown hashes.
	ErrBlockNotFound = errors.New("block not found")

	// ErrMalformedData marks a structural anomaly in node responses. Not
	// transient: the offending unit is skipped and logged, never retried.
	ErrMalformedData = errors.New("malformed chain data")
)

// Node is the remote blockchain node. All operations are read-only queries;
// the indexer never submits transactions.
type Node interface {
	// CurrentHeight returns the node's best block height.
	CurrentHeight(ctx context.Context) (uint64, error)

	// BlockAt retrieves the block at height with full transaction detail.
	BlockAt(ctx context.Context, height uint64) (*domain.Block, error)

	// BlockHeader retrieves block metadata by hash, without transactions.
	BlockHeader(ctx context.Context, hash string) (*domain.Block, error)

	// Transaction retrieves a transaction with its outputs and block context.
	Transaction(ctx context.Context, txid string) (*domain.Transaction, error)

	// UnspentOutputs retrieves the address's current unspent output set.
	// Returns ErrNoAddressIndex if the node lacks an address index.
	UnspentOutputs(ctx context.Context, address string) ([]domain.UTXO, error)

	// TransactionIDs retrieves every transaction id ever involving address.
	// Returns ErrNoAddressIndex if the node lacks an address index.
	TransactionIDs(ctx context.Context, address string) ([]string, error)

	// Identity resolves a named identity to its addresses.
	Identity(ctx context.Context, name string) (*domain.Identity, error)

	// HasAddressIndex probes whether the fast-scan index calls are available.
	HasAddressIndex(ctx context.Context) bool
}
