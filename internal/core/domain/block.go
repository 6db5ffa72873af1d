package domain

import "time"

// ValidationType identifies how a block was validated.
type ValidationType string

const (
	ValidationStake ValidationType = "stake"
	ValidationWork  ValidationType = "work"
)

// Block represents a blockchain block as returned by the node.
type Block struct {
	Height         uint64
	Hash           string
	Time           time.Time
	ValidationType ValidationType
	Transactions   []Transaction
}

// IsStake reports whether the block was validated by staking. Only stake
// blocks can pay stake rewards.
func (b *Block) IsStake() bool {
	return b.ValidationType == ValidationStake
}

// RewardTransaction returns the reward-bearing transaction of the block (by
// chain convention the first one), or nil if the block carries none.
func (b *Block) RewardTransaction() *Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return &b.Transactions[0]
}

// Transaction represents a transaction with its outputs.
type Transaction struct {
	TxID        string
	BlockHash   string
	BlockHeight uint64
	BlockTime   time.Time
	IsCoinbase  bool
	Outputs     []Output
}

// Output is one transaction output.
type Output struct {
	Index     int
	ValueSats int64
	Addresses []string
}

// PaysAddress reports whether the output's spending condition resolves to addr.
func (o *Output) PaysAddress(addr string) bool {
	for _, a := range o.Addresses {
		if a == addr {
			return true
		}
	}
	return false
}

// UTXO is an unspent output belonging to an address.
type UTXO struct {
	TxID        string
	OutputIndex int
	ValueSats   int64
	BlockHeight uint64
}
