package arena

import "github.com/behrlich/simcore/errs"

// DefaultSegmentSize is 64MB expressed in float32 elements, matching the
// spec's default segment capacity.
const DefaultSegmentSize = (64 << 20) / 4

// Segment owns a contiguous, fixed-capacity float32 buffer and a bump
// cursor. It is never freed mid-life, only reset.
type Segment struct {
	buf    []float32
	cursor uint32
}

// NewSegment allocates a zeroed segment with room for capFloats float32s.
func NewSegment(capFloats uint32) *Segment {
	return &Segment{buf: make([]float32, capFloats)}
}

// Capacity returns the segment's total float32 capacity.
func (s *Segment) Capacity() uint32 { return uint32(len(s.buf)) }

// Allocate reserves n floats from the bump cursor, returning the offset
// and a zeroed mutable slice, or ok=false if the segment has no room.
func (s *Segment) Allocate(n uint32) (offset uint32, slice []float32, ok bool) {
	if n == 0 {
		return s.cursor, s.buf[s.cursor:s.cursor], true
	}
	end := s.cursor + n
	if end < s.cursor || end > uint32(len(s.buf)) {
		return 0, nil, false
	}
	slice = s.buf[s.cursor:end]
	for i := range slice {
		slice[i] = 0
	}
	offset = s.cursor
	s.cursor = end
	return offset, slice, true
}

// Shared returns a read slice at (offset, length).
func (s *Segment) Shared(offset, length uint32) []float32 {
	return s.buf[offset : offset+length]
}

// Mutable returns a writable slice at (offset, length).
func (s *Segment) Mutable(offset, length uint32) []float32 {
	return s.buf[offset : offset+length]
}

// Reset rewinds the bump cursor without freeing the backing buffer.
func (s *Segment) Reset() { s.cursor = 0 }

// Clone returns a deep copy up to the current cursor's worth of used
// bytes plus the unused tail, matching capacity for structural symmetry.
func (s *Segment) Clone() *Segment {
	c := &Segment{buf: make([]float32, len(s.buf)), cursor: s.cursor}
	copy(c.buf, s.buf)
	return c
}

// SegmentList is an ordered, growable list of Segments, capped at
// maxSegments, all sharing one segment size. Allocations never span
// segments.
type SegmentList struct {
	segments    []*Segment
	segmentSize uint32
	maxSegments int
	cur         int
}

// NewSegmentList creates an empty list with the given per-segment
// capacity (in float32s) and segment count cap.
func NewSegmentList(segmentSize uint32, maxSegments int) *SegmentList {
	return &SegmentList{segmentSize: segmentSize, maxSegments: maxSegments}
}

// Allocate finds room for n floats, trying the current segment, then any
// later segment with room, then appending a fresh segment up to
// maxSegments. Allocations larger than segmentSize are rejected.
func (sl *SegmentList) Allocate(n uint32) (segIdx int, offset uint32, slice []float32, err error) {
	if n > sl.segmentSize {
		return 0, 0, nil, errs.New("SegmentList.Allocate", errs.StepAllocationFailed, "allocation larger than segment size")
	}
	for i := sl.cur; i < len(sl.segments); i++ {
		if off, sl2, ok := sl.segments[i].Allocate(n); ok {
			sl.cur = i
			return i, off, sl2, nil
		}
	}
	if len(sl.segments) >= sl.maxSegments {
		return 0, 0, nil, errs.New("SegmentList.Allocate", errs.StepAllocationFailed, "segment list exhausted")
	}
	seg := NewSegment(sl.segmentSize)
	off, sl2, ok := seg.Allocate(n)
	if !ok {
		return 0, 0, nil, errs.New("SegmentList.Allocate", errs.StepAllocationFailed, "new segment too small")
	}
	sl.segments = append(sl.segments, seg)
	sl.cur = len(sl.segments) - 1
	return sl.cur, off, sl2, nil
}

// Get returns a mutable slice at (segIdx, offset, length).
func (sl *SegmentList) Get(segIdx int, offset, length uint32) []float32 {
	return sl.segments[segIdx].Mutable(offset, length)
}

// Reset rewinds every segment's cursor without discarding the segments.
func (sl *SegmentList) Reset() {
	for _, s := range sl.segments {
		s.Reset()
	}
	sl.cur = 0
}

// Clone deep-copies every segment, used to build owned snapshots.
func (sl *SegmentList) Clone() *SegmentList {
	c := &SegmentList{segmentSize: sl.segmentSize, maxSegments: sl.maxSegments, cur: sl.cur}
	c.segments = make([]*Segment, len(sl.segments))
	for i, s := range sl.segments {
		c.segments[i] = s.Clone()
	}
	return c
}

// SegmentCount reports the number of segments currently allocated.
func (sl *SegmentList) SegmentCount() int { return len(sl.segments) }

// BytesUsed reports the cumulative bump-cursor bytes across all segments,
// used for the Metrics.MemoryBytes figure.
func (sl *SegmentList) BytesUsed() uint64 {
	var total uint64
	for _, s := range sl.segments {
		total += uint64(s.cursor) * 4
	}
	return total
}
