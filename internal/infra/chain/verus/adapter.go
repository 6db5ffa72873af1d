// Package verus adapts a Verus-style daemon (JSON-RPC 1.0) to the chain.Node
// surface. Responses are parsed from their generic JSON shapes; coin amounts
// are converted to satoshis with rounding so no floating value is persisted.
package verus

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/infra/chain"
	"github.com/verushub/stakewatch/internal/infra/rpc"
)

// Adapter implements chain.Node against a Verus daemon.
type Adapter struct {
	client *rpc.Client
	log    *slog.Logger

	probeOnce sync.Once
	hasIndex  bool
}

// NewAdapter creates a node adapter over the given RPC client.
func NewAdapter(client *rpc.Client) *Adapter {
	return &Adapter{
		client: client,
		log:    slog.Default().With("component", "verus"),
	}
}

// CurrentHeight returns the node's best block height.
func (a *Adapter) CurrentHeight(ctx context.Context) (uint64, error) {
	result, err := a.client.Call(ctx, "getblockcount")
	if err != nil {
		return 0, fmt.Errorf("failed to get block count: %w", err)
	}

	height, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: invalid block count response", chain.ErrMalformedData)
	}
	return uint64(height), nil
}

// BlockAt retrieves the block at height with full transaction detail.
func (a *Adapter) BlockAt(ctx context.Context, height uint64) (*domain.Block, error) {
	hashResult, err := a.client.Call(ctx, "getblockhash", height)
	if err != nil {
		if isNotFound(err) {
			return nil, chain.ErrBlockNotFound
		}
		return nil, fmt.Errorf("failed to get block hash: %w", err)
	}

	blockHash, ok := hashResult.(string)
	if !ok {
		return nil, fmt.Errorf("%w: invalid block hash response", chain.ErrMalformedData)
	}

	// Verbosity 2 includes full transaction objects.
	result, err := a.client.Call(ctx, "getblock", blockHash, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}

	blockData, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: invalid block data format", chain.ErrMalformedData)
	}

	return a.parseBlock(blockData, true)
}

// BlockHeader retrieves block metadata by hash, without transaction detail.
func (a *Adapter) BlockHeader(ctx context.Context, hash string) (*domain.Block, error) {
	result, err := a.client.Call(ctx, "getblock", hash, 1)
	if err != nil {
		if isNotFound(err) {
			return nil, chain.ErrBlockNotFound
		}
		return nil, fmt.Errorf("failed to get block header: %w", err)
	}

	blockData, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: invalid block data format", chain.ErrMalformedData)
	}

	return a.parseBlock(blockData, false)
}

// Transaction retrieves a transaction with outputs and block context.
func (a *Adapter) Transaction(ctx context.Context, txid string) (*domain.Transaction, error) {
	result, err := a.client.Call(ctx, "getrawtransaction", txid, 1)
	if err != nil {
		if isNotFound(err) {
			return nil, chain.ErrBlockNotFound
		}
		return nil, fmt.Errorf("failed to get transaction %s: %w", txid, err)
	}

	txData, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: invalid transaction format for %s", chain.ErrMalformedData, txid)
	}

	return a.parseTransaction(txData)
}

// UnspentOutputs retrieves the address's current unspent output set.
func (a *Adapter) UnspentOutputs(ctx context.Context, address string) ([]domain.UTXO, error) {
	result, err := a.client.Call(ctx, "getaddressutxos", map[string]any{
		"addresses": []string{address},
	})
	if err != nil {
		if isNoIndex(err) {
			return nil, chain.ErrNoAddressIndex
		}
		return nil, fmt.Errorf("failed to get utxos: %w", err)
	}

	items, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: invalid utxo response", chain.ErrMalformedData)
	}

	utxos := make([]domain.UTXO, 0, len(items))
	for _, item := range items {
		u, ok := item.(map[string]any)
		if !ok {
			continue
		}
		utxos = append(utxos, domain.UTXO{
			TxID:        str(u["txid"]),
			OutputIndex: int(num(u["outputIndex"])),
			ValueSats:   int64(num(u["satoshis"])),
			BlockHeight: uint64(num(u["height"])),
		})
	}
	return utxos, nil
}

// TransactionIDs retrieves every transaction id ever involving address.
func (a *Adapter) TransactionIDs(ctx context.Context, address string) ([]string, error) {
	result, err := a.client.Call(ctx, "getaddresstxids", map[string]any{
		"addresses": []string{address},
	})
	if err != nil {
		if isNoIndex(err) {
			return nil, chain.ErrNoAddressIndex
		}
		return nil, fmt.Errorf("failed to get address txids: %w", err)
	}

	items, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: invalid txid response", chain.ErrMalformedData)
	}

	txids := make([]string, 0, len(items))
	for _, item := range items {
		if id, ok := item.(string); ok {
			txids = append(txids, id)
		}
	}
	return txids, nil
}

// Identity resolves a named identity to its addresses.
func (a *Adapter) Identity(ctx context.Context, name string) (*domain.Identity, error) {
	result, err := a.client.Call(ctx, "getidentity", name)
	if err != nil {
		return nil, fmt.Errorf("failed to get identity %s: %w", name, err)
	}

	data, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: invalid identity response", chain.ErrMalformedData)
	}
	info, ok := data["identity"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: identity payload missing", chain.ErrMalformedData)
	}

	identity := &domain.Identity{
		Name:           str(info["name"]),
		IdentityAddr:   str(info["identityaddress"]),
		RevocationAddr: str(info["revocationauthority"]),
		RecoveryAddr:   str(info["recoveryauthority"]),
	}
	if primaries, ok := info["primaryaddresses"].([]any); ok {
		for _, p := range primaries {
			if addr, ok := p.(string); ok {
				identity.PrimaryAddrs = append(identity.PrimaryAddrs, addr)
			}
		}
	}
	return identity, nil
}

// HasAddressIndex probes once whether the node was built with -addressindex.
func (a *Adapter) HasAddressIndex(ctx context.Context) bool {
	a.probeOnce.Do(func() {
		_, err := a.client.Call(ctx, "getaddresstxids", map[string]any{
			"addresses": []string{},
		})
		a.hasIndex = err == nil || !isNoIndex(err)
		if !a.hasIndex {
			a.log.Info("node has no address index, fast scans unavailable")
		}
	})
	return a.hasIndex
}

func (a *Adapter) parseBlock(data map[string]any, withTxs bool) (*domain.Block, error) {
	hash := str(data["hash"])
	if hash == "" {
		return nil, fmt.Errorf("%w: block missing hash", chain.ErrMalformedData)
	}

	block := &domain.Block{
		Height:         uint64(num(data["height"])),
		Hash:           hash,
		Time:           time.Unix(int64(num(data["time"])), 0).UTC(),
		ValidationType: validation(data),
	}

	if !withTxs {
		return block, nil
	}

	txsRaw, ok := data["tx"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: block %d has no transaction list", chain.ErrMalformedData, block.Height)
	}

	for i, txRaw := range txsRaw {
		txData, ok := txRaw.(map[string]any)
		if !ok {
			a.log.Warn("skipping invalid transaction", "height", block.Height, "index", i)
			continue
		}
		tx, err := a.parseTransaction(txData)
		if err != nil {
			a.log.Warn("failed to parse transaction", "height", block.Height, "index", i, "error", err)
			continue
		}
		tx.BlockHash = block.Hash
		tx.BlockHeight = block.Height
		tx.BlockTime = block.Time
		block.Transactions = append(block.Transactions, *tx)
	}

	return block, nil
}

func (a *Adapter) parseTransaction(data map[string]any) (*domain.Transaction, error) {
	txid := str(data["txid"])
	if txid == "" {
		return nil, fmt.Errorf("%w: transaction missing txid", chain.ErrMalformedData)
	}

	tx := &domain.Transaction{
		TxID:        txid,
		BlockHash:   str(data["blockhash"]),
		BlockHeight: uint64(num(data["height"])),
		BlockTime:   time.Unix(int64(num(data["blocktime"])), 0).UTC(),
	}

	if vins, ok := data["vin"].([]any); ok && len(vins) > 0 {
		if vin, ok := vins[0].(map[string]any); ok {
			_, tx.IsCoinbase = vin["coinbase"]
		}
	}

	vouts, ok := data["vout"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s has no outputs", chain.ErrMalformedData, txid)
	}

	for _, voutRaw := range vouts {
		voutData, ok := voutRaw.(map[string]any)
		if !ok {
			continue
		}

		out := domain.Output{
			Index:     int(num(voutData["n"])),
			ValueSats: toSats(num(voutData["value"])),
		}
		if spk, ok := voutData["scriptPubKey"].(map[string]any); ok {
			if addrs, ok := spk["addresses"].([]any); ok {
				for _, addr := range addrs {
					if s, ok := addr.(string); ok {
						out.Addresses = append(out.Addresses, s)
					}
				}
			}
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	return tx, nil
}

// validation reads the block-level validation tag. Older daemons only expose
// blocktype ("minted" for stake).
func validation(data map[string]any) domain.ValidationType {
	switch str(data["validationtype"]) {
	case "stake":
		return domain.ValidationStake
	case "work":
		return domain.ValidationWork
	}
	if str(data["blocktype"]) == "minted" {
		return domain.ValidationStake
	}
	return domain.ValidationWork
}

func toSats(coins float64) int64 {
	return int64(math.Round(coins * float64(domain.CoinSats)))
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

func isNotFound(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "out of range") || strings.Contains(s, "not found")
}

func isNoIndex(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "address index not enabled") ||
		strings.Contains(s, "addressindex not enabled") ||
		strings.Contains(s, "address index not available")
}
