package tick

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/errs"
	"github.com/behrlich/simcore/ingress"
	"github.com/behrlich/simcore/internal/logging"
	"github.com/behrlich/simcore/internal/metricsutil"
)

// maxConsecutiveRollbacks is the number of back-to-back failed ticks
// that latches the engine into a disabled state, per spec §4.8.
const maxConsecutiveRollbacks = 3

// Engine owns the arena, pipeline, ingress queue, RNG, and rollback/
// disable bookkeeping for one simulation world.
type Engine struct {
	arena    *arena.PingPongArena
	pipeline []contract.Propagator
	plan     *Plan
	space    contract.Space
	dt       float64
	queue    *ingress.Queue
	applier  ingress.CommandApplier
	rng      *rand.Rand
	metrics  *metricsutil.Metrics
	log      *logging.Logger

	consecutiveRollbacks int
	tickDisabled         bool

	params       map[string]float64
	paramVersion atomic.Uint64
}

// Config bundles Engine construction parameters.
type Config struct {
	Arena    *arena.PingPongArena
	Pipeline []contract.Propagator
	Space    contract.Space
	Dt       float64
	Queue    *ingress.Queue
	Applier  ingress.CommandApplier
	Seed     int64
	Metrics  *metricsutil.Metrics
	Log      *logging.Logger
}

// NewEngine validates the pipeline and constructs an Engine ready to run
// ticks starting from the arena's current published generation.
func NewEngine(cfg Config) (*Engine, error) {
	knownFields := make(map[arena.FieldID]bool)
	for _, id := range cfg.Arena.Snapshot().Fields() {
		knownFields[id] = true
	}

	plan, err := Validate(cfg.Pipeline, knownFields, cfg.Space, cfg.Dt)
	if err != nil {
		return nil, err
	}

	applier := cfg.Applier
	if applier == nil {
		applier = ingress.DefaultApplier{}
	}
	m := cfg.Metrics
	if m == nil {
		m = metricsutil.NewMetrics()
	}
	log := cfg.Log
	if log == nil {
		log = logging.Default()
	}

	return &Engine{
		arena:    cfg.Arena,
		pipeline: cfg.Pipeline,
		plan:     plan,
		space:    cfg.Space,
		dt:       cfg.Dt,
		queue:    cfg.Queue,
		applier:  applier,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		metrics:  m,
		log:      log,
		params:   make(map[string]float64),
	}, nil
}

// Rng returns the engine's seeded RNG, for propagators that need
// deterministic randomness keyed to world construction.
func (e *Engine) Rng() *rand.Rand { return e.rng }

// TickDisabled reports whether the consecutive-rollback latch has
// tripped. Once true, ExecuteTick refuses to run propagators; Engine has
// no method that clears the latch.
func (e *Engine) TickDisabled() bool { return e.tickDisabled }

// Metrics returns the engine's metrics sink.
func (e *Engine) Metrics() *metricsutil.Metrics { return e.metrics }

// Snapshot returns a borrowed read-only view of the current published
// generation.
func (e *Engine) Snapshot() *arena.Snapshot { return e.arena.Snapshot() }

// OwnedSnapshot returns a deep-cloned view of the current published
// generation, safe to hand across goroutines (e.g. into the snapshot
// ring for egress workers to read concurrently with the next tick).
func (e *Engine) OwnedSnapshot() *arena.OwnedSnapshot { return e.arena.OwnedSnapshot() }

// ParamVersion returns the monotonic counter bumped every time a
// set-parameter command is applied, surfaced in obs.Metadata so callers
// can detect parameter changes between observations.
func (e *Engine) ParamVersion() uint64 { return e.paramVersion.Load() }

// CurrentTick returns the tick id of the most recently published
// generation, used by egress callers to compute how stale a ring
// snapshot is relative to the engine's current head.
func (e *Engine) CurrentTick() uint64 { return e.arena.TickID() }

// SubmitCommands buffers batch into the ingress queue, stamping receipts
// per command. Safe to call only from the owning tick thread (or, in
// lockstep mode, the single caller thread).
func (e *Engine) SubmitCommands(batch []ingress.Command) []ingress.Receipt {
	receipts := e.queue.Submit(batch, e.tickDisabled)
	for _, r := range receipts {
		switch {
		case r.Accepted:
			e.metrics.IngressAccepted.Add(1)
		case r.Reason == errs.IngressQueueFull:
			e.metrics.IngressQueueFull.Add(1)
		case r.Reason == errs.IngressTickDisabled:
			e.metrics.IngressTickDisabled.Add(1)
		}
	}
	return receipts
}

// Result is the outcome of one ExecuteTick call.
type Result struct {
	TickID         uint64
	Receipts       []ingress.Receipt
	PropagatorNs   map[string]uint64
	CommandNs      uint64
	PublishNs      uint64
	TotalNs        uint64
	RolledBack     bool
	TickDisabled   bool
	FailedStep     string
	Err            error
}

// ExecuteTick runs one tick: drain ingress, apply commands, run the
// pipeline in order, then publish or roll back. See spec §4.8.
func (e *Engine) ExecuteTick() Result {
	start := time.Now()

	if e.tickDisabled {
		return Result{
			TickID:       e.arena.TickID(),
			TickDisabled: true,
			Err:          errs.New("Engine.ExecuteTick", errs.StepTickDisabled, "tick engine is disabled after repeated rollbacks"),
		}
	}

	nextTick := e.arena.TickID() + 1
	valid, staleReceipts := e.queue.Drain(nextTick)
	receipts := append([]ingress.Receipt(nil), staleReceipts...)
	e.metrics.IngressStale.Add(uint64(len(staleReceipts)))

	wa := e.arena.BeginTick()

	cmdStart := time.Now()
	for _, cmd := range valid {
		ctx := ingress.ApplyContext{
			Write: wa,
			Space: e.space,
			SetParameter: func(key string, value float64) {
				e.params[key] = value
				e.paramVersion.Add(1)
			},
		}
		applied, err := e.applier.Apply(ctx, cmd)
		idx := cmd.BatchIndex()
		switch {
		case err != nil && errs.IsKind(err, errs.IngressUnsupportedCommand):
			e.metrics.IngressUnsupported.Add(1)
			receipts = append(receipts, ingress.Receipt{BatchIndex: idx, Accepted: false, Reason: errs.IngressUnsupportedCommand})
		case err != nil || !applied:
			e.metrics.IngressNotApplied.Add(1)
			receipts = append(receipts, ingress.Receipt{BatchIndex: idx, Accepted: false, Reason: errs.IngressNotApplied})
		default:
			tickID := nextTick
			receipts = append(receipts, ingress.Receipt{BatchIndex: idx, Accepted: true, AppliedTick: &tickID})
		}
	}
	commandNs := uint64(time.Since(cmdStart).Nanoseconds())
	e.metrics.CommandNs.Add(commandNs)

	propagatorNs := make(map[string]uint64, len(e.pipeline))
	for _, p := range e.pipeline {
		stepCtx := newStepContext(wa, e.space, nextTick, e.dt, p)
		stepStart := time.Now()
		err := p.Step(stepCtx)
		stepCtx.release()
		elapsed := uint64(time.Since(stepStart).Nanoseconds())
		propagatorNs[p.Name()] = elapsed
		e.metrics.RecordPropagatorNs(p.Name(), elapsed)

		if err != nil {
			e.arena.Rollback(wa)
			e.consecutiveRollbacks++
			e.metrics.RollbackCount.Add(1)
			if e.consecutiveRollbacks >= maxConsecutiveRollbacks {
				e.tickDisabled = true
				e.log.Warn("tick engine latched disabled after consecutive rollbacks", "count", e.consecutiveRollbacks)
			}
			return Result{
				TickID:       e.arena.TickID(),
				Receipts:     receipts,
				PropagatorNs: propagatorNs,
				CommandNs:    commandNs,
				TotalNs:      uint64(time.Since(start).Nanoseconds()),
				RolledBack:   true,
				TickDisabled: e.tickDisabled,
				FailedStep:   p.Name(),
				Err:          errs.Wrap("Engine.ExecuteTick", errs.StepPropagatorFailed, err),
			}
		}
	}

	publishStart := time.Now()
	e.arena.Publish(wa)
	publishNs := uint64(time.Since(publishStart).Nanoseconds())
	e.metrics.PublishNs.Add(publishNs)
	e.metrics.MemoryBytes.Store(e.arena.MemoryBytes())

	e.consecutiveRollbacks = 0

	return Result{
		TickID:       e.arena.TickID(),
		Receipts:     receipts,
		PropagatorNs: propagatorNs,
		CommandNs:    commandNs,
		PublishNs:    publishNs,
		TotalNs:      uint64(time.Since(start).Nanoseconds()),
	}
}
