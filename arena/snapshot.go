package arena

// Snapshot is a borrowed, read-only view over one published generation of
// the arena. It shares backing storage with the PingPongArena it was
// taken from and must not outlive the next Publish call on that arena.
type Snapshot struct {
	tickID     uint64
	worldGen   uint64
	desc       *FieldDescriptor
	staticH    *StaticHandle
	perTick    *SegmentList
	sparseList *SegmentList
}

// TickID returns the tick this snapshot was published at.
func (s *Snapshot) TickID() uint64 { return s.tickID }

// WorldGen returns the world generation of the publish this snapshot
// views.
func (s *Snapshot) WorldGen() uint64 { return s.worldGen }

// Read resolves a field by id against whichever backing store its
// Location points to.
func (s *Snapshot) Read(id FieldID) ([]float32, bool) {
	h, meta, ok := s.desc.Get(id)
	if !ok {
		return nil, false
	}
	switch h.Location {
	case LocStatic:
		return s.staticH.Read(id)
	case LocPerTick:
		return s.perTick.Get(h.Segment, h.Offset, h.Length), true
	case LocSparse:
		return s.sparseList.Get(h.Segment, h.Offset, h.Length), true
	default:
		_ = meta
		return nil, false
	}
}

// Fields returns the field ids known to this snapshot's descriptor.
func (s *Snapshot) Fields() []FieldID { return s.desc.Fields() }

// Meta returns the metadata recorded for a field.
func (s *Snapshot) Meta(id FieldID) (FieldMeta, bool) {
	_, meta, ok := s.desc.Get(id)
	return meta, ok
}

// OwnedSnapshot is a fully-cloned, thread-safe-to-share copy of a
// published generation, suitable for handing to the SnapshotRing and
// reading from egress worker goroutines concurrently with further ticks.
//
// Sparse fields are deep-copied in full on every owned snapshot rather
// than refcounted against the live slab; refcounting sparse slots would
// save copies for fields that rarely change, but it is not implemented
// here.
type OwnedSnapshot struct {
	tickID     uint64
	worldGen   uint64
	desc       *FieldDescriptor
	staticH    *StaticHandle
	perTick    *SegmentList
	sparseList *SegmentList
}

// NewOwnedSnapshot deep-clones the per-tick and sparse backing storage of
// a borrowed Snapshot into an independently owned copy. The static arena
// is never cloned: it is write-once and already safe to share by
// reference once StaticArena.Share has been called.
func NewOwnedSnapshot(s *Snapshot) *OwnedSnapshot {
	return &OwnedSnapshot{
		tickID:     s.tickID,
		worldGen:   s.worldGen,
		desc:       s.desc.Clone(),
		staticH:    s.staticH,
		perTick:    s.perTick.Clone(),
		sparseList: s.sparseList.Clone(),
	}
}

// TickID returns the tick this snapshot was published at.
func (s *OwnedSnapshot) TickID() uint64 { return s.tickID }

// WorldGen returns the world generation of the publish this snapshot
// was cloned from.
func (s *OwnedSnapshot) WorldGen() uint64 { return s.worldGen }

// Read resolves a field by id against the owned backing stores.
func (s *OwnedSnapshot) Read(id FieldID) ([]float32, bool) {
	h, _, ok := s.desc.Get(id)
	if !ok {
		return nil, false
	}
	switch h.Location {
	case LocStatic:
		return s.staticH.Read(id)
	case LocPerTick:
		return s.perTick.Get(h.Segment, h.Offset, h.Length), true
	case LocSparse:
		return s.sparseList.Get(h.Segment, h.Offset, h.Length), true
	default:
		return nil, false
	}
}

// Fields returns the field ids known to this snapshot's descriptor.
func (s *OwnedSnapshot) Fields() []FieldID { return s.desc.Fields() }

// Meta returns the metadata recorded for a field.
func (s *OwnedSnapshot) Meta(id FieldID) (FieldMeta, bool) {
	_, meta, ok := s.desc.Get(id)
	return meta, ok
}
