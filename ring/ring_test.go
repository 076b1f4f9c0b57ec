package ring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/simcore/arena"
)

func newTaggedSnapshot(t *testing.T, a *arena.PingPongArena, value float32) *arena.OwnedSnapshot {
	t.Helper()
	wa := a.BeginTick()
	v, err := wa.Write(1)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	v[0] = value
	a.Publish(wa)
	return a.OwnedSnapshot()
}

func newRingTestArena(t *testing.T) *arena.PingPongArena {
	t.Helper()
	defs := []arena.FieldDef{{ID: 1, Name: "f", Type: arena.FieldScalar, Mutability: arena.PerTick}}
	a, err := arena.NewPingPongArena(arena.Config{Defs: defs, N: 1, SegmentSize: 64, MaxSegments: 4})
	if err != nil {
		t.Fatalf("NewPingPongArena: %v", err)
	}
	return a
}

func TestRingRejectsTooSmallCapacity(t *testing.T) {
	if _, err := New(1); err == nil {
		t.Fatalf("expected capacity < 2 to be rejected")
	}
}

func TestRingTagConsistency(t *testing.T) {
	a := newRingTestArena(t)
	r, err := New(4)
	require.NoError(t, err)

	snap := newTaggedSnapshot(t, a, 1)
	r.Push(snap)
	writePosBefore := r.WritePos() - 1

	got, ok := r.GetByPos(writePosBefore)
	require.True(t, ok)
	require.Equal(t, snap.TickID(), got.TickID())

	for i := 0; i < 4; i++ {
		r.Push(newTaggedSnapshot(t, a, float32(i+2)))
	}

	_, ok = r.GetByPos(writePosBefore)
	require.False(t, ok, "expected position %d to be evicted after 4 further pushes", writePosBefore)
}

func TestRingABASafety(t *testing.T) {
	a := newRingTestArena(t)
	r, err := New(4)
	require.NoError(t, err)

	// Push positions 0..3 (tick ids 1..4).
	for i := 0; i < 4; i++ {
		r.Push(newTaggedSnapshot(t, a, float32(i)))
	}
	// Push 4 more, wrapping (positions 4..7, tick ids 5..8).
	for i := 0; i < 4; i++ {
		r.Push(newTaggedSnapshot(t, a, float32(i)))
	}

	_, ok := r.GetByPos(0)
	require.False(t, ok, "GetByPos(0) should be absent after wraparound, not the new occupant")

	got, ok := r.GetByPos(4)
	require.True(t, ok)
	require.Equal(t, uint64(5), got.TickID())
}

func TestRingLatestReturnsNewestPush(t *testing.T) {
	a := newRingTestArena(t)
	r, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := r.Latest(); ok {
		t.Fatalf("expected Latest() to be absent before any push")
	}

	r.Push(newTaggedSnapshot(t, a, 1))
	second := newTaggedSnapshot(t, a, 2)
	r.Push(second)

	got, ok := r.Latest()
	if !ok || got.TickID() != second.TickID() {
		t.Fatalf("Latest() = %v, ok=%v, want tick %d", got, ok, second.TickID())
	}
}

func TestRingPushReturnsEvictedOccupant(t *testing.T) {
	a := newRingTestArena(t)
	r, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := newTaggedSnapshot(t, a, 1)
	if evicted := r.Push(first); evicted != nil {
		t.Fatalf("expected no eviction on first push into empty slot")
	}
	r.Push(newTaggedSnapshot(t, a, 2))
	evicted := r.Push(newTaggedSnapshot(t, a, 3))
	if evicted == nil || evicted.TickID() != first.TickID() {
		t.Fatalf("expected third push to evict the first snapshot (capacity 2)")
	}
}
