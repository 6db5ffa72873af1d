package domain

import "time"

// CoinSats is the number of smallest currency units in one coin.
const CoinSats int64 = 100_000_000

// StakeReward is one persisted staking-reward event. Rows are immutable once
// written; (TxID, OutputIndex) is unique so re-scanning a block never
// duplicates a record.
type StakeReward struct {
	IdentityAddress string    `db:"identity_address" json:"identity_address"`
	BlockHeight     uint64    `db:"block_height"      json:"block_height"`
	BlockTime       time.Time `db:"block_time"        json:"block_time"`
	TxID            string    `db:"txid"              json:"txid"`
	OutputIndex     int       `db:"output_index"      json:"output_index"`
	Amount          int64     `db:"amount"            json:"amount"`
}
