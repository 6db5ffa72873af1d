package gaps

import "testing"

func TestMergeRanges(t *testing.T) {
	in := []Range{
		{Start: 150, End: 199},
		{Start: 0, End: 99},
		{Start: 80, End: 120},
		{Start: 121, End: 130},
	}

	got := MergeRanges(in)
	want := []Range{{Start: 0, End: 130}, {Start: 150, End: 199}}

	if len(got) != len(want) {
		t.Fatalf("expected %d ranges, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestComplement(t *testing.T) {
	// Checkpoints covering [0,99] and [150,200] against tip 200 leave exactly
	// the gap [100,149].
	covered := []Range{{Start: 0, End: 99}, {Start: 150, End: 200}}

	got := Complement(covered, 0, 200)
	if len(got) != 1 || got[0] != (Range{Start: 100, End: 149}) {
		t.Fatalf("expected [100-149], got %v", got)
	}
}

func TestComplementUncoveredTail(t *testing.T) {
	covered := []Range{{Start: 0, End: 49}}

	got := Complement(covered, 0, 100)
	if len(got) != 1 || got[0] != (Range{Start: 50, End: 100}) {
		t.Fatalf("expected [50-100], got %v", got)
	}
}

func TestComplementFullCoverage(t *testing.T) {
	covered := []Range{{Start: 0, End: 200}}

	if got := Complement(covered, 0, 200); len(got) != 0 {
		t.Fatalf("expected no gaps, got %v", got)
	}
}

func TestComplementEmptyCoverage(t *testing.T) {
	got := Complement(nil, 10, 20)
	if len(got) != 1 || got[0] != (Range{Start: 10, End: 20}) {
		t.Fatalf("expected [10-20], got %v", got)
	}
}

func TestSplit(t *testing.T) {
	r := Range{Start: 0, End: 249}
	chunks := r.Split(100)

	want := []Range{{0, 99}, {100, 199}, {200, 249}}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %v", len(want), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: got %v, want %v", i, chunks[i], want[i])
		}
	}
}

func TestOverlapsAdjacent(t *testing.T) {
	a := Range{Start: 0, End: 99}
	b := Range{Start: 100, End: 150}
	if !a.Overlaps(b) {
		t.Error("adjacent ranges should overlap for merge purposes")
	}
	c := Range{Start: 102, End: 150}
	if a.Overlaps(c) {
		t.Error("ranges separated by a gap must not overlap")
	}
}
