package arena

import "github.com/behrlich/simcore/errs"

// StaticArena is a single flat float32 buffer with an insertion-ordered
// map from field id to (offset, length). Writable only before Share is
// called; thereafter it is read-only and safe to hand out by reference
// to any number of snapshots.
type StaticArena struct {
	buf    []float32
	order  []FieldID
	ranges map[FieldID][2]uint32 // offset, length
	shared bool
}

// StaticFieldDef is a (field, length-in-floats) pair used to construct a
// StaticArena.
type StaticFieldDef struct {
	ID     FieldID
	Length uint32
}

// NewStaticArena builds the flat buffer for the given (field, length)
// pairs, in the order given. Duplicate field ids are a construction
// error.
func NewStaticArena(defs []StaticFieldDef) (*StaticArena, error) {
	a := &StaticArena{ranges: make(map[FieldID][2]uint32, len(defs))}
	var total uint64
	for _, d := range defs {
		if _, dup := a.ranges[d.ID]; dup {
			return nil, errs.New("NewStaticArena", errs.ConfigArena, "duplicate field id in static arena")
		}
		newTotal := total + uint64(d.Length)
		if newTotal > uint64(^uint32(0)) {
			return nil, errs.New("NewStaticArena", errs.ConfigArena, "static arena length overflow")
		}
		a.ranges[d.ID] = [2]uint32{uint32(total), d.Length}
		a.order = append(a.order, d.ID)
		total = newTotal
	}
	a.buf = make([]float32, total)
	return a, nil
}

// Read returns a shared slice for the field, or ok=false if unknown.
func (a *StaticArena) Read(id FieldID) ([]float32, bool) {
	r, ok := a.ranges[id]
	if !ok {
		return nil, false
	}
	return a.buf[r[0] : r[0]+r[1]], true
}

// Write returns a mutable slice for the field. Refused once the arena
// has been Shared.
func (a *StaticArena) Write(id FieldID) ([]float32, error) {
	if a.shared {
		return nil, errs.New("StaticArena.Write", errs.StepAllocationFailed, "static arena already shared, write refused")
	}
	r, ok := a.ranges[id]
	if !ok {
		return nil, errs.New("StaticArena.Write", errs.StepAllocationFailed, "unknown static field")
	}
	return a.buf[r[0] : r[0]+r[1]], nil
}

// Share marks the arena read-only and returns a reference-counted (by
// Go's GC) read-only handle safe to send across threads.
func (a *StaticArena) Share() *StaticHandle {
	a.shared = true
	return &StaticHandle{arena: a}
}

// StaticHandle exposes only read access to a shared StaticArena.
type StaticHandle struct {
	arena *StaticArena
}

// Read returns a shared slice for the field, or ok=false if unknown.
func (h *StaticHandle) Read(id FieldID) ([]float32, bool) { return h.arena.Read(id) }

// RangeOf returns the (offset, length) a field occupies in the flat
// buffer, used by the PingPongArena constructor to populate the
// descriptor's static handles.
func (a *StaticArena) RangeOf(id FieldID) (offset, length uint32, ok bool) {
	r, ok := a.ranges[id]
	if !ok {
		return 0, 0, false
	}
	return r[0], r[1], true
}
