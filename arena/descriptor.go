package arena

import "github.com/behrlich/simcore/errs"

// FieldMeta is metadata recorded alongside a field's current Handle.
type FieldMeta struct {
	Name       string
	Components int
	Mutability Mutability
	TotalLen   uint32
}

type descriptorEntry struct {
	handle Handle
	meta   FieldMeta
}

// FieldDescriptor is an insertion-ordered map from field id to its
// current (handle, metadata). A world keeps two instances — published
// and staging — swapped at publish.
type FieldDescriptor struct {
	order   []FieldID
	entries map[FieldID]descriptorEntry
}

// NewFieldDescriptor builds a descriptor from field definitions and the
// world-wide cell count N. Handles are left zero-valued; callers (the
// PingPongArena constructor) populate them once storage is allocated.
func NewFieldDescriptor(defs []FieldDef, n uint32) (*FieldDescriptor, error) {
	d := &FieldDescriptor{entries: make(map[FieldID]descriptorEntry, len(defs))}
	for _, def := range defs {
		if _, dup := d.entries[def.ID]; dup {
			return nil, errs.New("NewFieldDescriptor", errs.ConfigArena, "duplicate field id")
		}
		comps := def.ComponentsPerCell()
		total := uint64(n) * uint64(comps)
		if total > uint64(^uint32(0)) {
			return nil, errs.New("NewFieldDescriptor", errs.ConfigArena, "N*components overflow")
		}
		d.entries[def.ID] = descriptorEntry{meta: FieldMeta{
			Name:       def.Name,
			Components: comps,
			Mutability: def.Mutability,
			TotalLen:   uint32(total),
		}}
		d.order = append(d.order, def.ID)
	}
	return d, nil
}

// Get returns the (handle, metadata) pair for id.
func (d *FieldDescriptor) Get(id FieldID) (Handle, FieldMeta, bool) {
	e, ok := d.entries[id]
	if !ok {
		return Handle{}, FieldMeta{}, false
	}
	return e.handle, e.meta, true
}

// SetHandle updates the handle for an already-registered field.
func (d *FieldDescriptor) SetHandle(id FieldID, h Handle) {
	e := d.entries[id]
	e.handle = h
	d.entries[id] = e
}

// Fields returns field ids in insertion order.
func (d *FieldDescriptor) Fields() []FieldID {
	out := make([]FieldID, len(d.order))
	copy(out, d.order)
	return out
}

// FieldsByMutability returns field ids of the given mutability class, in
// insertion order. Used by the tick engine's pre-allocation phase.
func (d *FieldDescriptor) FieldsByMutability(m Mutability) []FieldID {
	var out []FieldID
	for _, id := range d.order {
		if d.entries[id].meta.Mutability == m {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns an independent copy of the descriptor (new backing map
// and order slice; Handle/FieldMeta values are copied by value).
func (d *FieldDescriptor) Clone() *FieldDescriptor {
	c := &FieldDescriptor{entries: make(map[FieldID]descriptorEntry, len(d.entries))}
	c.order = make([]FieldID, len(d.order))
	copy(c.order, d.order)
	for k, v := range d.entries {
		c.entries[k] = v
	}
	return c
}
