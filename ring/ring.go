// Package ring implements the fixed-capacity, single-producer,
// multi-consumer snapshot ring: a position-tagged slot array that
// defeats the ABA race where a reader samples the write position, the
// producer wraps the buffer, and the slot holds a different snapshot by
// the time the reader locks it.
package ring

import (
	"sync"
	"sync/atomic"

	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/errs"
)

// slot holds one ring position's occupant plus the monotonic position it
// was written at, guarded by its own mutex so readers never block the
// producer's other slots.
type slot struct {
	mu       sync.Mutex
	tag      uint64
	valid    bool
	snapshot *arena.OwnedSnapshot
	_        [24]byte // pad toward a cache line; avoids false sharing between adjacent slots
}

// Ring is a fixed-capacity SPMC ring of owned snapshots. The tick thread
// is the sole producer; any number of egress workers may read
// concurrently via Latest or GetByPos.
type Ring struct {
	slots    []slot
	writePos atomic.Uint64
}

// New returns a ring with the given capacity, which must be at least 2
// per spec §4.11.
func New(capacity int) (*Ring, error) {
	if capacity < 2 {
		return nil, errs.New("ring.New", errs.ConfigRingBufferTooSmall, "ring capacity must be >= 2")
	}
	return &Ring{slots: make([]slot, capacity)}, nil
}

// Capacity returns the ring's fixed slot count.
func (r *Ring) Capacity() int { return len(r.slots) }

// Push writes snapshot to the next position and returns whichever
// snapshot it evicted, if any, for reclamation accounting.
func (r *Ring) Push(snapshot *arena.OwnedSnapshot) *arena.OwnedSnapshot {
	pos := r.writePos.Load()
	idx := pos % uint64(len(r.slots))
	s := &r.slots[idx]

	s.mu.Lock()
	var evicted *arena.OwnedSnapshot
	if s.valid {
		evicted = s.snapshot
	}
	s.tag = pos
	s.snapshot = snapshot
	s.valid = true
	s.mu.Unlock()

	r.writePos.Store(pos + 1)
	return evicted
}

// Latest returns the most recently pushed snapshot, or ok=false if
// nothing has been pushed yet.
func (r *Ring) Latest() (*arena.OwnedSnapshot, bool) {
	wp := r.writePos.Load()
	if wp == 0 {
		return nil, false
	}
	return r.GetByPos(wp - 1)
}

// GetByPos returns the snapshot pushed at position pos, or ok=false if
// that position has not yet been written or has since been evicted.
func (r *Ring) GetByPos(pos uint64) (*arena.OwnedSnapshot, bool) {
	wp := r.writePos.Load()
	if pos >= wp {
		return nil, false
	}
	if wp-pos > uint64(len(r.slots)) {
		return nil, false
	}

	idx := pos % uint64(len(r.slots))
	s := &r.slots[idx]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.valid && s.tag == pos {
		return s.snapshot, true
	}
	return nil, false
}

// WritePos returns the producer's current monotonic write position
// (the position the next Push will occupy).
func (r *Ring) WritePos() uint64 { return r.writePos.Load() }
