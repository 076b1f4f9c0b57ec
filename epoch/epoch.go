// Package epoch implements lock-free epoch pinning: a monotonic global
// counter the tick thread advances after every publish, and per-worker
// pin cells workers use to declare "I am reading a snapshot as of this
// epoch" so the tick thread knows which generations are still observed.
package epoch

import (
	"sync/atomic"
	"time"
)

// Sentinel marks a WorkerEpoch cell as unpinned.
const Sentinel = ^uint64(0)

// Counter is an atomic monotonic epoch counter. The tick thread advances
// it with release semantics after each publish; workers read it with
// acquire semantics before pinning. Go's atomic package is sequentially
// consistent, which is strictly stronger than the acquire/release pair
// this protocol requires.
type Counter struct {
	v atomic.Uint64
}

// Advance increments the counter and returns the new value. Each call
// returns a strictly greater value than the previous (P10).
func (c *Counter) Advance() uint64 { return c.v.Add(1) }

// Load returns the current epoch value.
func (c *Counter) Load() uint64 { return c.v.Load() }

// WorkerEpoch is one egress worker's pin cell. Cells are padded to at
// least 128 bytes so adjacent workers in a slice never share a cache
// line, which would otherwise serialize unrelated workers' pin/unpin
// traffic on architectures with 128-byte cache lines.
type WorkerEpoch struct {
	pinnedEpoch atomic.Uint64
	pinStart    atomic.Int64
	lastQuiesce atomic.Int64
	cancel      atomic.Bool
	_           [100]byte // pad struct to 128 bytes
}

// NewWorkerEpoch returns an unpinned cell.
func NewWorkerEpoch() *WorkerEpoch {
	w := &WorkerEpoch{}
	w.pinnedEpoch.Store(Sentinel)
	return w
}

// Pin records that this worker is now reading at epoch e. pin_start is
// written before pinned_epoch so a stall detector that observes a
// pinned epoch always sees an already-updated start time.
func (w *WorkerEpoch) Pin(e uint64) {
	w.pinStart.Store(time.Now().UnixNano())
	w.pinnedEpoch.Store(e)
}

// Unpin clears the pin and records the quiesce time.
func (w *WorkerEpoch) Unpin() {
	w.pinnedEpoch.Store(Sentinel)
	w.lastQuiesce.Store(time.Now().UnixNano())
}

// PinSnapshot returns a consistent (pinned_epoch, pin_start) pair, or
// ok=false if the worker was not continuously pinned across the read.
// Guards the read-repin-read race: reads pinned_epoch, then pin_start,
// then re-reads pinned_epoch; a mismatch means the worker unpinned and
// possibly repinned between the two pinned_epoch reads.
func (w *WorkerEpoch) PinSnapshot() (pinnedEpoch uint64, pinStart int64, ok bool) {
	for attempt := 0; attempt < 3; attempt++ {
		e1 := w.pinnedEpoch.Load()
		if e1 == Sentinel {
			return 0, 0, false
		}
		start := w.pinStart.Load()
		e2 := w.pinnedEpoch.Load()
		if e1 == e2 {
			return e1, start, true
		}
	}
	return 0, 0, false
}

// RequestCancel asks the worker to cooperatively abandon its current
// task.
func (w *WorkerEpoch) RequestCancel() { w.cancel.Store(true) }

// ClearCancel resets the cancellation flag.
func (w *WorkerEpoch) ClearCancel() { w.cancel.Store(false) }

// IsCancelled reports whether cancellation has been requested.
func (w *WorkerEpoch) IsCancelled() bool { return w.cancel.Load() }

// ForceUnpin forcibly clears the pin and the cancel flag, used by the
// stall detector once the cooperative-cancel grace period has elapsed.
func (w *WorkerEpoch) ForceUnpin() {
	w.pinnedEpoch.Store(Sentinel)
	w.lastQuiesce.Store(time.Now().UnixNano())
	w.cancel.Store(false)
}

// MinPinnedEpoch returns the smallest pinned epoch across workers, or
// Sentinel if none is currently pinned (P11).
func MinPinnedEpoch(workers []*WorkerEpoch) uint64 {
	min := Sentinel
	for _, w := range workers {
		e := w.pinnedEpoch.Load()
		if e != Sentinel && e < min {
			min = e
		}
	}
	return min
}
