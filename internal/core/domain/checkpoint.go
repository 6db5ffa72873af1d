package domain

import "time"

// ScanCheckpoint asserts that the inclusive height range [RangeStart, RangeEnd]
// has been fully scanned. Multiple checkpoints from different backfill runs may
// exist; coverage is their union.
type ScanCheckpoint struct {
	ID          int64     `db:"id"`
	RangeStart  uint64    `db:"range_start"`
	RangeEnd    uint64    `db:"range_end"`
	CompletedAt time.Time `db:"completed_at"`
}
