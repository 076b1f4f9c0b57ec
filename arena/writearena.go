package arena

import "github.com/behrlich/simcore/errs"

// WriteArena is the staging-side guard a propagator writes through during
// one tick. Reads resolve against the staging descriptor: PerTick fields
// always read their staging slice, and Sparse fields not yet written this
// tick read the published copy. Writes return the PerTick slice that
// BeginTick pre-allocated, or copy-on-write fresh storage for Sparse
// fields. Static fields are always refused once the arena has left
// construction.
type WriteArena struct {
	desc         *FieldDescriptor
	perTick      *SegmentList
	sparseList   *SegmentList
	sparseSlab   *SparseSlab
	staticHandle *StaticHandle
	published    *Snapshot
	generation   uint64
	written      map[FieldID]bool
}

// Write returns a mutable slice for id. A PerTick field gets the slice
// BeginTick pre-allocated for this tick; a Sparse field's first write this
// tick copies its published value into fresh storage. Subsequent writes
// to the same field within the same tick reuse that slice.
func (w *WriteArena) Write(id FieldID) ([]float32, error) {
	h, meta, ok := w.desc.Get(id)
	if !ok {
		return nil, errs.New("WriteArena.Write", errs.StepAllocationFailed, "unknown field id")
	}

	switch meta.Mutability {
	case Static:
		return nil, errs.New("WriteArena.Write", errs.StepAllocationFailed, "static fields are write-once at construction")

	case PerTick:
		if w.written[id] {
			return w.perTick.Get(h.Segment, h.Offset, h.Length), nil
		}
		segIdx, offset, slice, err := w.perTick.Allocate(meta.TotalLen)
		if err != nil {
			return nil, err
		}
		w.desc.SetHandle(id, Handle{Generation: uint32(w.generation), Segment: segIdx, Offset: offset, Length: meta.TotalLen, Location: LocPerTick})
		if w.written == nil {
			w.written = make(map[FieldID]bool)
		}
		w.written[id] = true
		return slice, nil

	case Sparse:
		if h.Location == LocSparse && h.Generation == uint32(w.generation) {
			return w.sparseList.Get(h.Segment, h.Offset, h.Length), nil
		}

		var prev []float32
		if h.Location == LocSparse && h.Length > 0 {
			prev = w.sparseList.Get(h.Segment, h.Offset, h.Length)
		}
		newH, slice, err := w.sparseSlab.Allocate(w.sparseList, id, meta.TotalLen, uint32(w.generation))
		if err != nil {
			return nil, err
		}
		copy(slice, prev)
		w.desc.SetHandle(id, newH)
		if w.written == nil {
			w.written = make(map[FieldID]bool)
		}
		w.written[id] = true
		return slice, nil

	default:
		return nil, errs.New("WriteArena.Write", errs.StepAllocationFailed, "unknown mutability class")
	}
}

// Read resolves a field against the staging generation. A PerTick field
// returns its staging slice, which BeginTick pre-allocates zeroed, so it
// holds only what was written earlier this tick; it does not fall back to
// the previous generation (ReadPrevious does that). A Sparse field returns
// this tick's copy if written, else the published value; a Static field
// returns the shared static value.
func (w *WriteArena) Read(id FieldID) ([]float32, bool) {
	if w.written[id] {
		h, _, ok := w.desc.Get(id)
		if !ok {
			return nil, false
		}
		switch h.Location {
		case LocPerTick:
			return w.perTick.Get(h.Segment, h.Offset, h.Length), true
		case LocSparse:
			return w.sparseList.Get(h.Segment, h.Offset, h.Length), true
		}
	}

	_, meta, ok := w.desc.Get(id)
	if !ok {
		return nil, false
	}
	if meta.Mutability == Static {
		return w.staticHandle.Read(id)
	}
	if w.published != nil {
		return w.published.Read(id)
	}
	return nil, false
}

// ReadPrevious resolves a field strictly against the previous published
// generation, ignoring any write already made to it earlier this tick.
// Static fields have no "previous" distinct from their shared value.
func (w *WriteArena) ReadPrevious(id FieldID) ([]float32, bool) {
	_, meta, ok := w.desc.Get(id)
	if !ok {
		return nil, false
	}
	if meta.Mutability == Static {
		return w.staticHandle.Read(id)
	}
	if w.published != nil {
		return w.published.Read(id)
	}
	return nil, false
}

// Meta returns the metadata recorded for a field.
func (w *WriteArena) Meta(id FieldID) (FieldMeta, bool) {
	_, meta, ok := w.desc.Get(id)
	return meta, ok
}

// Generation returns the tick id this arena is staging.
func (w *WriteArena) Generation() uint64 { return w.generation }
