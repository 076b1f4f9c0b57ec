package arena

import (
	"sync"

	"github.com/behrlich/simcore/errs"
)

// PingPongArena owns all backing storage for one simulation world: a
// write-once static pool, two alternating per-tick segment lists, and a
// single persistent sparse slab shared by both sides (sparse values
// survive until explicitly overwritten, so there is nothing to
// ping-pong for them).
//
// BeginTick/Publish drive the double-buffer: BeginTick hands out a
// WriteArena over the currently-inactive per-tick list, seeded with a
// descriptor cloned from the published side; Publish swaps that side in
// as the new published generation. Discarding a WriteArena without
// calling Publish is a rollback: the next BeginTick resets the same
// inactive list and clones the (unchanged) published descriptor again.
type PingPongArena struct {
	mu sync.RWMutex

	staticArena  *StaticArena
	staticHandle *StaticHandle

	perTickA *SegmentList
	perTickB *SegmentList

	sparseList *SegmentList
	sparseSlab *SparseSlab

	descPublished *FieldDescriptor
	publishedIsA  bool

	worldGen uint64
	tickID   uint64
}

// Config bundles the construction-time parameters for a PingPongArena.
type Config struct {
	Defs        []FieldDef
	N           uint32
	SegmentSize uint32
	MaxSegments int
	WorldGen    uint64
}

// NewPingPongArena builds static, per-tick and sparse storage from defs
// and wires an initial (empty) published generation at tick 0.
func NewPingPongArena(cfg Config) (*PingPongArena, error) {
	if cfg.N == 0 {
		return nil, errs.New("NewPingPongArena", errs.ConfigEmptySpace, "N must be > 0")
	}
	if len(cfg.Defs) == 0 {
		return nil, errs.New("NewPingPongArena", errs.ConfigNoFields, "at least one field is required")
	}
	segSize := cfg.SegmentSize
	if segSize == 0 {
		segSize = DefaultSegmentSize
	}
	maxSeg := cfg.MaxSegments
	if maxSeg == 0 {
		maxSeg = 64
	}

	desc, err := NewFieldDescriptor(cfg.Defs, cfg.N)
	if err != nil {
		return nil, err
	}

	var staticDefs []StaticFieldDef
	for _, d := range cfg.Defs {
		if d.Mutability != Static {
			continue
		}
		_, meta, _ := desc.Get(d.ID)
		staticDefs = append(staticDefs, StaticFieldDef{ID: d.ID, Length: meta.TotalLen})
	}
	staticArena, err := NewStaticArena(staticDefs)
	if err != nil {
		return nil, err
	}
	for _, sd := range staticDefs {
		off, length, _ := staticArena.RangeOf(sd.ID)
		desc.SetHandle(sd.ID, Handle{Segment: 0, Offset: off, Length: length, Location: LocStatic})
	}
	for _, id := range desc.FieldsByMutability(Sparse) {
		desc.SetHandle(id, Handle{Location: LocSparse})
	}

	p := &PingPongArena{
		staticArena:   staticArena,
		perTickA:      NewSegmentList(segSize, maxSeg),
		perTickB:      NewSegmentList(segSize, maxSeg),
		sparseList:    NewSegmentList(segSize, maxSeg),
		sparseSlab:    NewSparseSlab(),
		descPublished: desc,
		publishedIsA:  true,
		worldGen:      cfg.WorldGen,
		tickID:        0,
	}
	return p, nil
}

// StaticWriter exposes the write-once arena for pre-tick field
// initialization, before the first BeginTick call shares it read-only.
func (p *PingPongArena) StaticWriter() *StaticArena { return p.staticArena }

// ensureStaticShared shares the static arena read-only on first use. It
// is idempotent: once shared, StaticArena.Share just returns a fresh
// handle over the same (already read-only) buffer.
func (p *PingPongArena) ensureStaticShared() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.staticHandle == nil {
		p.staticHandle = p.staticArena.Share()
	}
}

// BeginTick resets the currently-inactive per-tick segment list and
// returns a WriteArena over it, seeded from the published generation.
func (p *PingPongArena) BeginTick() *WriteArena {
	p.ensureStaticShared()

	p.mu.RLock()
	publishedDesc := p.descPublished
	publishedIsA := p.publishedIsA
	tickID := p.tickID
	p.mu.RUnlock()

	stagingList := p.perTickB
	if !publishedIsA {
		stagingList = p.perTickA
	}
	stagingList.Reset()

	stagingDesc := publishedDesc.Clone()
	generation := tickID + 1
	written := make(map[FieldID]bool)
	for _, id := range stagingDesc.FieldsByMutability(PerTick) {
		_, meta, ok := stagingDesc.Get(id)
		if !ok {
			continue
		}
		segIdx, offset, _, err := stagingList.Allocate(meta.TotalLen)
		if err != nil {
			panic("arena: BeginTick pre-allocation failed for PerTick field " + meta.Name + ": " + err.Error())
		}
		stagingDesc.SetHandle(id, Handle{Generation: uint32(generation), Segment: segIdx, Offset: offset, Length: meta.TotalLen, Location: LocPerTick})
		written[id] = true
	}

	return &WriteArena{
		desc:         stagingDesc,
		perTick:      stagingList,
		sparseList:   p.sparseList,
		sparseSlab:   p.sparseSlab,
		staticHandle: p.staticHandle,
		published:    p.snapshotLocked(publishedDesc, publishedIsA, tickID),
		generation:   generation,
		written:      written,
	}
}

// Publish swaps wa's staging side in as the new published generation.
func (p *PingPongArena) Publish(wa *WriteArena) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.descPublished = wa.desc
	p.publishedIsA = !p.publishedIsA
	p.tickID = wa.generation
	p.worldGen++
}

// Rollback is a no-op beyond documenting intent: discarding wa without
// calling Publish leaves the published generation untouched, and the
// next BeginTick resets the same staging list before reuse.
func (p *PingPongArena) Rollback(wa *WriteArena) {}

// Snapshot returns a borrowed, read-only view of the current published
// generation. The snapshot shares backing storage with the arena and
// must not be retained past the next Publish call.
func (p *PingPongArena) Snapshot() *Snapshot {
	p.ensureStaticShared()

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked(p.descPublished, p.publishedIsA, p.tickID)
}

func (p *PingPongArena) snapshotLocked(desc *FieldDescriptor, publishedIsA bool, tickID uint64) *Snapshot {
	publishedList := p.perTickA
	if !publishedIsA {
		publishedList = p.perTickB
	}
	return &Snapshot{
		tickID:     tickID,
		worldGen:   p.worldGen,
		desc:       desc,
		staticH:    p.staticHandle,
		perTick:    publishedList,
		sparseList: p.sparseList,
	}
}

// OwnedSnapshot returns a fully-cloned, thread-safe-to-share copy of the
// current published generation, suitable for the SnapshotRing.
func (p *PingPongArena) OwnedSnapshot() *OwnedSnapshot {
	return NewOwnedSnapshot(p.Snapshot())
}

// TickID returns the most recently published tick id.
func (p *PingPongArena) TickID() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tickID
}

// WorldGen returns the current world generation: Config.WorldGen at
// construction, incremented by one on every Publish. Rollbacks leave it
// unchanged.
func (p *PingPongArena) WorldGen() uint64 { return p.worldGen }

// MemoryBytes reports approximate live byte usage across per-tick and
// sparse storage, for the Metrics.MemoryBytes gauge. The static arena's
// size is fixed at construction and not included here.
func (p *PingPongArena) MemoryBytes() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.perTickA.BytesUsed() + p.perTickB.BytesUsed() + p.sparseList.BytesUsed()
}
