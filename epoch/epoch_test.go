package epoch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAdvanceMonotonic(t *testing.T) {
	var c Counter
	prev := c.Load()
	for i := 0; i < 5; i++ {
		next := c.Advance()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestMinPinnedEpochSentinelIffNonePinned(t *testing.T) {
	workers := []*WorkerEpoch{NewWorkerEpoch(), NewWorkerEpoch(), NewWorkerEpoch()}

	require.Equal(t, Sentinel, MinPinnedEpoch(workers))

	workers[1].Pin(5)
	assert.Equal(t, uint64(5), MinPinnedEpoch(workers))

	workers[2].Pin(2)
	assert.Equal(t, uint64(2), MinPinnedEpoch(workers))

	workers[1].Unpin()
	workers[2].Unpin()
	assert.Equal(t, Sentinel, MinPinnedEpoch(workers))
}

func TestPinSnapshotConsistency(t *testing.T) {
	w := NewWorkerEpoch()

	_, _, ok := w.PinSnapshot()
	require.False(t, ok, "expected PinSnapshot to be absent before any pin")

	w.Pin(7)
	e, start, ok := w.PinSnapshot()
	require.True(t, ok, "expected PinSnapshot to succeed while pinned")
	assert.Equal(t, uint64(7), e)
	assert.NotZero(t, start, "expected PinSnapshot start to be a recorded timestamp")

	w.Unpin()
	_, _, ok = w.PinSnapshot()
	assert.False(t, ok, "expected PinSnapshot to be absent after unpin")
}

func TestForceUnpinClearsCancel(t *testing.T) {
	w := NewWorkerEpoch()
	w.Pin(3)
	w.RequestCancel()

	w.ForceUnpin()

	assert.False(t, w.IsCancelled(), "expected cancel flag cleared after ForceUnpin")
	_, _, ok := w.PinSnapshot()
	assert.False(t, ok, "expected worker to be unpinned after ForceUnpin")
}
