package arena

// sparseSlot is one retired-or-live record in the slab.
type sparseSlot struct {
	fieldID    FieldID
	generation uint32
	segment    int
	offset     uint32
	length     uint32
	live       bool
}

// SparseSlab tracks copy-on-write allocations for Sparse fields: a
// growable slot pool, a free list of retired slot indices, and an
// insertion-ordered map of field id to its currently live slot.
type SparseSlab struct {
	slots     []sparseSlot
	freeList  []int
	liveIndex map[FieldID]int
	liveOrder []FieldID
}

// NewSparseSlab returns an empty slab.
func NewSparseSlab() *SparseSlab {
	return &SparseSlab{liveIndex: make(map[FieldID]int)}
}

// Allocate asks segList for room for length floats, retires any prior
// live slot for fieldID, and records the new slot as live. Returns a
// Handle describing the fresh sparse storage.
func (s *SparseSlab) Allocate(segList *SegmentList, fieldID FieldID, length uint32, generation uint32) (Handle, []float32, error) {
	segIdx, offset, slice, err := segList.Allocate(length)
	if err != nil {
		return Handle{}, nil, err
	}

	if prevIdx, ok := s.liveIndex[fieldID]; ok {
		s.slots[prevIdx].live = false
		s.freeList = append(s.freeList, prevIdx)
		delete(s.liveIndex, fieldID)
		s.removeFromOrder(fieldID)
	}

	rec := sparseSlot{fieldID: fieldID, generation: generation, segment: segIdx, offset: offset, length: length, live: true}

	var idx int
	if n := len(s.freeList); n > 0 {
		idx = s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		s.slots[idx] = rec
	} else {
		idx = len(s.slots)
		s.slots = append(s.slots, rec)
	}

	s.liveIndex[fieldID] = idx
	s.liveOrder = append(s.liveOrder, fieldID)

	return Handle{Generation: generation, Segment: segIdx, Offset: offset, Length: length, Location: LocSparse}, slice, nil
}

// LiveHandle returns the handle for the field's currently live slot.
func (s *SparseSlab) LiveHandle(fieldID FieldID) (Handle, bool) {
	idx, ok := s.liveIndex[fieldID]
	if !ok {
		return Handle{}, false
	}
	r := s.slots[idx]
	return Handle{Generation: r.generation, Segment: r.segment, Offset: r.offset, Length: r.length, Location: LocSparse}, true
}

// LiveFields returns field ids with a live slot, in insertion order.
func (s *SparseSlab) LiveFields() []FieldID {
	out := make([]FieldID, 0, len(s.liveOrder))
	for _, id := range s.liveOrder {
		if _, ok := s.liveIndex[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// LiveCount returns the number of currently live slots, used for the P3
// sparse-uniqueness property check (exactly one live slot per field).
func (s *SparseSlab) LiveCount() int { return len(s.liveIndex) }

func (s *SparseSlab) removeFromOrder(id FieldID) {
	for i, v := range s.liveOrder {
		if v == id {
			s.liveOrder = append(s.liveOrder[:i], s.liveOrder[i+1:]...)
			return
		}
	}
}
