// Package gaps computes uncovered block-height ranges from persisted scan
// checkpoints. Detection is database-only; no node calls are made.
package gaps

import (
	"context"
	"fmt"

	"github.com/verushub/stakewatch/internal/core/domain"
	"github.com/verushub/stakewatch/internal/indexing/metrics"
	"github.com/verushub/stakewatch/internal/infra/storage"
)

// Detector finds uncovered ranges between genesis and the chain tip.
type Detector struct {
	checkpoints storage.CheckpointRepository
	genesis     uint64
}

// NewDetector creates a gap detector starting coverage at genesisHeight.
func NewDetector(checkpoints storage.CheckpointRepository, genesisHeight uint64) *Detector {
	return &Detector{
		checkpoints: checkpoints,
		genesis:     genesisHeight,
	}
}

// FindGaps returns the uncovered sub-ranges of [genesis, chainTip], ascending,
// so backfill naturally works oldest-first.
func (d *Detector) FindGaps(ctx context.Context, chainTip uint64) ([]Range, error) {
	cps, err := d.checkpoints.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoints: %w", err)
	}

	covered := make([]Range, 0, len(cps))
	for _, cp := range cps {
		covered = append(covered, Range{Start: cp.RangeStart, End: cp.RangeEnd})
	}

	uncovered := Complement(MergeRanges(covered), d.genesis, chainTip)
	metrics.CoverageGaps.Set(float64(len(uncovered)))
	return uncovered, nil
}

// Coverage returns the merged covered ranges, for the coverage query surface.
func (d *Detector) Coverage(ctx context.Context) ([]Range, error) {
	cps, err := d.checkpoints.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoints: %w", err)
	}

	covered := make([]Range, 0, len(cps))
	for _, cp := range cps {
		covered = append(covered, Range{Start: cp.RangeStart, End: cp.RangeEnd})
	}
	return MergeRanges(covered), nil
}

// FromCheckpoints converts checkpoint rows to merged ranges. Helper for
// callers that already hold the rows.
func FromCheckpoints(cps []*domain.ScanCheckpoint) []Range {
	ranges := make([]Range, 0, len(cps))
	for _, cp := range cps {
		ranges = append(ranges, Range{Start: cp.RangeStart, End: cp.RangeEnd})
	}
	return MergeRanges(ranges)
}
