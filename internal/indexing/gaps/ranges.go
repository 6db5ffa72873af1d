package gaps

import (
	"fmt"
	"sort"
)

// Range is an inclusive block-height interval.
type Range struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// String returns the range in "start-end" format.
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Size returns the number of blocks in the range.
func (r Range) Size() uint64 {
	return r.End - r.Start + 1
}

// Split splits the range into chunks of at most maxSize blocks.
func (r Range) Split(maxSize uint64) []Range {
	if r.Size() <= maxSize {
		return []Range{r}
	}

	var chunks []Range
	current := r.Start

	for current <= r.End {
		chunkEnd := min(current+maxSize-1, r.End)
		chunks = append(chunks, Range{Start: current, End: chunkEnd})
		current = chunkEnd + 1
	}

	return chunks
}

// Overlaps checks if two ranges overlap or are adjacent.
func (r Range) Overlaps(other Range) bool {
	return r.Start <= other.End+1 && other.Start <= r.End+1
}

// Merge merges two overlapping/adjacent ranges.
func (r Range) Merge(other Range) Range {
	start := r.Start
	if other.Start < start {
		start = other.Start
	}
	end := r.End
	if other.End > end {
		end = other.End
	}
	return Range{Start: start, End: end}
}

// MergeRanges merges overlapping and adjacent ranges, ascending by start.
func MergeRanges(ranges []Range) []Range {
	if len(ranges) <= 1 {
		return ranges
	}

	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Start < ranges[j].Start
	})

	merged := []Range{ranges[0]}

	for i := 1; i < len(ranges); i++ {
		last := &merged[len(merged)-1]
		current := ranges[i]

		if last.Overlaps(current) {
			*last = last.Merge(current)
		} else {
			merged = append(merged, current)
		}
	}

	return merged
}

// Complement returns the sub-ranges of [start, end] not covered by covered.
// covered must already be merged and ascending. Results are ascending.
func Complement(covered []Range, start, end uint64) []Range {
	if start > end {
		return nil
	}

	var out []Range
	next := start

	for _, c := range covered {
		if c.End < next {
			continue
		}
		if c.Start > end {
			break
		}
		if c.Start > next {
			out = append(out, Range{Start: next, End: c.Start - 1})
		}
		if c.End >= end {
			return out
		}
		next = c.End + 1
	}

	if next <= end {
		out = append(out, Range{Start: next, End: end})
	}
	return out
}
