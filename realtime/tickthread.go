package realtime

import (
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/behrlich/simcore/backoff"
	"github.com/behrlich/simcore/epoch"
	"github.com/behrlich/simcore/ingress"
	"github.com/behrlich/simcore/internal/logging"
	"github.com/behrlich/simcore/internal/metricsutil"
	"github.com/behrlich/simcore/ring"
	"github.com/behrlich/simcore/tick"
)

type cmdBatch struct {
	batch []ingress.Command
	reply chan []ingress.Receipt
}

// TickThreadConfig configures a TickThread.
type TickThreadConfig struct {
	Engine         *tick.Engine
	Ring           *ring.Ring
	Counter        *epoch.Counter
	Workers        []*epoch.WorkerEpoch
	Backoff        *backoff.Backoff
	TickRateHz     float64
	MaxEpochHoldNs int64
	CancelGraceNs  int64
	CommandCh      chan cmdBatch
	Metrics        *metricsutil.Metrics
	Log            *logging.Logger

	// CPUAffinity, if non-empty, pins the tick thread's OS thread to
	// CPUAffinity[0] once LockOSThread has taken effect. Not fatal if the
	// call fails (e.g. unprivileged container).
	CPUAffinity []int
}

// TickThread owns the TickEngine exclusively and runs the realtime-async
// main loop on a dedicated goroutine, pinned to its own OS thread so the
// scheduler never migrates it mid-tick.
type TickThread struct {
	engine         *tick.Engine
	ring           *ring.Ring
	counter        *epoch.Counter
	workers        []*epoch.WorkerEpoch
	backoff        *backoff.Backoff
	tickRateHz     float64
	maxEpochHoldNs int64
	cancelGraceNs  int64
	cmdCh          chan cmdBatch
	metrics        *metricsutil.Metrics
	log            *logging.Logger
	cpuAffinity    []int

	shutdown atomic.Bool
	stopped  chan struct{}
}

// NewTickThread constructs a TickThread. Run must be started on its own
// goroutine by the caller.
func NewTickThread(cfg TickThreadConfig) *TickThread {
	log := cfg.Log
	if log == nil {
		log = logging.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = metricsutil.NewMetrics()
	}
	return &TickThread{
		engine: cfg.Engine, ring: cfg.Ring, counter: cfg.Counter, workers: cfg.Workers,
		backoff: cfg.Backoff, tickRateHz: cfg.TickRateHz,
		maxEpochHoldNs: cfg.MaxEpochHoldNs, cancelGraceNs: cfg.CancelGraceNs,
		cmdCh: cfg.CommandCh, metrics: metrics, log: log,
		cpuAffinity: cfg.CPUAffinity,
		stopped:     make(chan struct{}),
	}
}

// Shutdown signals Run to stop at the next iteration boundary.
func (t *TickThread) Shutdown() { t.shutdown.Store(true) }

// Stopped is closed once Run has returned.
func (t *TickThread) Stopped() <-chan struct{} { return t.stopped }

// Engine returns the underlying tick engine, for egress callers that
// need the current tick id or parameter version alongside a ring read.
func (t *TickThread) Engine() *tick.Engine { return t.engine }

// Run is the tick thread's main loop, per the realtime-async iteration
// order: drain commands, execute one tick, push the published snapshot
// into the ring, advance the epoch, scan for stalled workers, record the
// backoff outcome, then sleep the remainder of the tick budget.
func (t *TickThread) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.stopped)

	if len(t.cpuAffinity) > 0 {
		var mask unix.CPUSet
		mask.Set(t.cpuAffinity[0])
		if err := unix.SchedSetaffinity(0, &mask); err != nil {
			t.log.Error("failed to set tick thread CPU affinity", "cpu", t.cpuAffinity[0], "error", err)
		}
	}

	budget := time.Duration(0)
	if t.tickRateHz > 0 {
		budget = time.Duration(float64(time.Second) / t.tickRateHz)
	}

	for {
		if t.shutdown.Load() {
			return
		}
		if t.engine.TickDisabled() {
			t.idleLoop()
			return
		}

		start := time.Now()
		t.drainCommands()

		res := t.engine.ExecuteTick()
		if res.Err == nil && !res.RolledBack {
			t.ring.Push(t.engine.OwnedSnapshot())
			t.counter.Advance()
			forced := t.scanStalledWorkers(time.Now().UnixNano())
			t.backoff.RecordTick(forced)
		}

		if budget > 0 {
			elapsed := time.Since(start)
			if elapsed < budget {
				time.Sleep(budget - elapsed)
			}
		}
	}
}

func (t *TickThread) idleLoop() {
	for {
		if t.shutdown.Load() {
			return
		}
		t.drainCommands()
		time.Sleep(10 * time.Millisecond)
	}
}

// drainCommands pulls every batch currently queued on cmdCh without
// blocking, submits it to the engine's ingress queue, and replies
// synchronously with the submit receipts.
func (t *TickThread) drainCommands() {
	for {
		select {
		case cb := <-t.cmdCh:
			cb.reply <- t.engine.SubmitCommands(cb.batch)
		default:
			return
		}
	}
}

// scanStalledWorkers requests cooperative cancellation of any worker
// holding its pin past maxEpochHoldNs, and force-unpins (counted as a
// rejection) any worker still held past the additional cancelGraceNs.
// now is passed in (rather than read internally) so stall thresholds can
// be exercised in tests without sleeping real time.
func (t *TickThread) scanStalledWorkers(now int64) (forcedUnpin bool) {
	for _, w := range t.workers {
		_, pinStart, ok := w.PinSnapshot()
		if !ok {
			continue
		}
		holdNs := now - pinStart
		if holdNs > t.maxEpochHoldNs {
			w.RequestCancel()
		}
		if holdNs > t.maxEpochHoldNs+t.cancelGraceNs {
			w.ForceUnpin()
			t.metrics.ForceUnpins.Add(1)
			forcedUnpin = true
		}
	}
	return forcedUnpin
}
