package arena

import "testing"

func TestSegmentAllocateExclusive(t *testing.T) {
	s := NewSegment(16)
	off1, sl1, ok := s.Allocate(6)
	if !ok || off1 != 0 || len(sl1) != 6 {
		t.Fatalf("first allocate: off=%d len=%d ok=%v", off1, len(sl1), ok)
	}
	off2, sl2, ok := s.Allocate(6)
	if !ok || off2 != 6 || len(sl2) != 6 {
		t.Fatalf("second allocate: off=%d len=%d ok=%v", off2, len(sl2), ok)
	}
	// Ranges must not overlap.
	sl1[0] = 1
	if sl2[0] != 0 {
		t.Fatalf("allocations overlap: writing sl1 changed sl2")
	}
	if _, _, ok := s.Allocate(5); ok {
		t.Fatalf("expected allocate past capacity to fail")
	}
}

func TestSegmentResetReclaimsCursor(t *testing.T) {
	s := NewSegment(8)
	if _, _, ok := s.Allocate(8); !ok {
		t.Fatalf("expected full allocation to succeed")
	}
	if _, _, ok := s.Allocate(1); ok {
		t.Fatalf("expected allocation to fail once full")
	}
	s.Reset()
	if _, _, ok := s.Allocate(8); !ok {
		t.Fatalf("expected allocation to succeed after reset")
	}
}

func TestSegmentListRejectsOversizeAllocation(t *testing.T) {
	sl := NewSegmentList(4, 2)
	if _, _, _, err := sl.Allocate(5); err == nil {
		t.Fatalf("expected oversize allocation to fail")
	}
}

func TestSegmentListGrowsUpToMax(t *testing.T) {
	sl := NewSegmentList(4, 2)
	for i := 0; i < 2; i++ {
		if _, _, _, err := sl.Allocate(4); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}
	if _, _, _, err := sl.Allocate(1); err == nil {
		t.Fatalf("expected allocation to fail once segment list is exhausted")
	}
	if got := sl.SegmentCount(); got != 2 {
		t.Fatalf("SegmentCount() = %d, want 2", got)
	}
}

func TestSegmentListCloneIsIndependent(t *testing.T) {
	sl := NewSegmentList(4, 2)
	_, _, slice, err := sl.Allocate(4)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	slice[0] = 42

	clone := sl.Clone()
	clone.Get(0, 0, 4)[0] = 7

	if got := sl.Get(0, 0, 4)[0]; got != 42 {
		t.Fatalf("original mutated by clone write: got %v", got)
	}
}
