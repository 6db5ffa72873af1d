package domain

import "time"

// ScanTarget identifies a unit of mutual exclusion for the coordinator: a
// single address (fast scan) or the chain-wide backfill target.
type ScanTarget string

// ChainTarget is the tip-following global scan target.
const ChainTarget ScanTarget = "chain"

// AddressTarget builds the scan target for a single address.
func AddressTarget(addr string) ScanTarget {
	return ScanTarget("address:" + addr)
}

// ScanState is the coordinator state for one target.
type ScanState string

const (
	ScanStateIdle     ScanState = "idle"
	ScanStateRunning  ScanState = "running"
	ScanStateRetrying ScanState = "retrying"
	ScanStateFailed   ScanState = "failed"
)

// ScanResult describes the outcome of one completed scan run.
type ScanResult struct {
	JobID          string     `json:"job_id"`
	Target         ScanTarget `json:"target"`
	RecordsFound   int        `json:"records_found"`
	RecordsNew     int        `json:"records_new"`
	BlocksScanned  uint64     `json:"blocks_scanned"`
	AnomalousCount int        `json:"anomalous_count"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
	Err            string     `json:"error,omitempty"`
}
