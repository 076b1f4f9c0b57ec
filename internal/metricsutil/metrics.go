// Package metricsutil tracks performance and operational statistics for
// a simulation world: per-tick timings, ingress rejection counters,
// rollback and worker-stall counts, and ring health counters.
package metricsutil

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is the opaque struct exposed to callers, per spec §6: a stable
// field set of atomic counters plus a per-propagator timing table
// guarded by its own mutex (propagator names are not known until pipeline
// construction, so that table cannot be a fixed array of atomics).
type Metrics struct {
	TickTotalNs    atomic.Uint64
	CommandNs      atomic.Uint64
	PublishNs      atomic.Uint64
	MemoryBytes    atomic.Uint64
	SparseReuse    atomic.Uint64
	SparseRetired  atomic.Uint64
	RollbackCount  atomic.Uint64
	WorkerStalls   atomic.Uint64
	ForceUnpins    atomic.Uint64
	RingEvictions  atomic.Uint64
	RingStaleReads atomic.Uint64
	RingSkewTicks  atomic.Uint64

	IngressQueueFull     atomic.Uint64
	IngressStale         atomic.Uint64
	IngressTickDisabled  atomic.Uint64
	IngressUnsupported   atomic.Uint64
	IngressNotApplied    atomic.Uint64
	IngressAccepted      atomic.Uint64

	mu              sync.Mutex
	propagatorNs    map[string]uint64
	startTime       int64
}

// NewMetrics returns a zeroed metrics instance stamped with the current
// time as its start time.
func NewMetrics() *Metrics {
	return &Metrics{propagatorNs: make(map[string]uint64), startTime: time.Now().UnixNano()}
}

// RecordPropagatorNs accumulates wall time spent in one propagator's
// Step call this tick.
func (m *Metrics) RecordPropagatorNs(name string, ns uint64) {
	m.mu.Lock()
	m.propagatorNs[name] += ns
	m.mu.Unlock()
}

// PropagatorTimings returns a copy of the accumulated per-propagator
// timing table.
func (m *Metrics) PropagatorTimings() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.propagatorNs))
	for k, v := range m.propagatorNs {
		out[k] = v
	}
	return out
}

// Snapshot is a point-in-time, allocation-free-to-read copy of the
// counters in Metrics, suitable for returning from a tick result.
type Snapshot struct {
	TickTotalNs        uint64
	CommandNs          uint64
	PublishNs          uint64
	MemoryBytes        uint64
	SparseReuse        uint64
	SparseRetired      uint64
	RollbackCount      uint64
	WorkerStalls       uint64
	ForceUnpins        uint64
	RingEvictions      uint64
	RingStaleReads     uint64
	RingSkewTicks      uint64
	IngressQueueFull   uint64
	IngressStale       uint64
	IngressTickDisabled uint64
	IngressUnsupported uint64
	IngressNotApplied  uint64
	IngressAccepted    uint64
	PropagatorNs       map[string]uint64
	UptimeNs           uint64
}

// Snapshot captures the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TickTotalNs:         m.TickTotalNs.Load(),
		CommandNs:           m.CommandNs.Load(),
		PublishNs:           m.PublishNs.Load(),
		MemoryBytes:         m.MemoryBytes.Load(),
		SparseReuse:         m.SparseReuse.Load(),
		SparseRetired:       m.SparseRetired.Load(),
		RollbackCount:       m.RollbackCount.Load(),
		WorkerStalls:        m.WorkerStalls.Load(),
		ForceUnpins:         m.ForceUnpins.Load(),
		RingEvictions:       m.RingEvictions.Load(),
		RingStaleReads:      m.RingStaleReads.Load(),
		RingSkewTicks:       m.RingSkewTicks.Load(),
		IngressQueueFull:    m.IngressQueueFull.Load(),
		IngressStale:        m.IngressStale.Load(),
		IngressTickDisabled: m.IngressTickDisabled.Load(),
		IngressUnsupported:  m.IngressUnsupported.Load(),
		IngressNotApplied:   m.IngressNotApplied.Load(),
		IngressAccepted:     m.IngressAccepted.Load(),
		PropagatorNs:        m.PropagatorTimings(),
		UptimeNs:            uint64(time.Now().UnixNano() - m.startTime),
	}
}
