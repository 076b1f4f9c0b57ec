package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/backoff"
	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/epoch"
	"github.com/behrlich/simcore/errs"
	"github.com/behrlich/simcore/ingress"
	"github.com/behrlich/simcore/internal/logging"
	"github.com/behrlich/simcore/internal/metricsutil"
	"github.com/behrlich/simcore/obs"
	"github.com/behrlich/simcore/ring"
	"github.com/behrlich/simcore/tick"
	"github.com/behrlich/simcore/worker"
)

// Phase is a RealtimeAsyncWorld shutdown state.
type Phase int32

const (
	PhaseRunning Phase = iota
	PhaseDraining
	PhaseQuiescing
	PhaseDropped
)

// AsyncConfig configures the realtime-async orchestration layer that
// wraps a tick.Engine.
type AsyncConfig struct {
	TickRateHz        float64
	RingBufferSize    int
	WorkerCount       int
	CommandChannelLen int
	TaskQueueLen      int
	MaxEpochHoldMs    int64
	CancelGraceMs     int64
	Backoff           backoff.Config
	Metrics           *metricsutil.Metrics
	Log               *logging.Logger

	// CPUAffinity pins the tick thread's goroutine to CPUAffinity[0], if
	// non-empty. See TickThreadConfig.CPUAffinity.
	CPUAffinity []int
}

// Report summarizes shutdown phase timings.
type Report struct {
	DrainingNs  int64
	QuiescingNs int64
	TotalNs     int64
}

// RealtimeAsyncWorld owns a single tick thread and a pool of egress
// worker threads around one tick.Engine, per spec.md §4.17.
type RealtimeAsyncWorld struct {
	tickThread *TickThread
	pool       *worker.Pool
	ring       *ring.Ring
	counter    *epoch.Counter
	cmdCh      chan cmdBatch
	metrics    *metricsutil.Metrics
	log        *logging.Logger

	phase atomic.Int32
	wg    sync.WaitGroup
}

// NewRealtimeAsyncWorld builds the tick engine (identical construction
// to lockstep mode), allocates the ring/epoch/channel plumbing, spawns
// the egress worker pool, and moves the tick engine onto its own
// goroutine.
func NewRealtimeAsyncWorld(engineCfg tick.Config, cfg AsyncConfig) (*RealtimeAsyncWorld, error) {
	engine, err := tick.NewEngine(engineCfg)
	if err != nil {
		return nil, err
	}

	if cfg.RingBufferSize == 0 {
		cfg.RingBufferSize = 4
	}
	ringBuf, err := ring.New(cfg.RingBufferSize)
	if err != nil {
		return nil, err
	}

	log := cfg.Log
	if log == nil {
		log = logging.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = engine.Metrics()
	}

	counter := &epoch.Counter{}

	pool, err := worker.New(worker.Config{
		WorkerCount: cfg.WorkerCount, TaskQueueLen: cfg.TaskQueueLen,
		Counter: counter, Ring: ringBuf, Metrics: metrics, Log: log,
	})
	if err != nil {
		return nil, err
	}

	bo := backoff.New(cfg.Backoff)
	cmdCh := make(chan cmdBatch, cfg.CommandChannelLen)

	tt := NewTickThread(TickThreadConfig{
		Engine: engine, Ring: ringBuf, Counter: counter, Workers: pool.Workers(),
		Backoff: bo, TickRateHz: cfg.TickRateHz,
		MaxEpochHoldNs: cfg.MaxEpochHoldMs * int64(time.Millisecond),
		CancelGraceNs:  cfg.CancelGraceMs * int64(time.Millisecond),
		CommandCh:      cmdCh, Metrics: metrics, Log: log,
		CPUAffinity: cfg.CPUAffinity,
	})

	w := &RealtimeAsyncWorld{
		tickThread: tt, pool: pool, ring: ringBuf, counter: counter,
		cmdCh: cmdCh, metrics: metrics, log: log,
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		tt.Run()
	}()

	return w, nil
}

// SubmitCommands pushes batch onto the command channel and blocks for
// the tick thread's synchronous reply.
func (w *RealtimeAsyncWorld) SubmitCommands(batch []ingress.Command) []ingress.Receipt {
	reply := make(chan []ingress.Receipt, 1)
	select {
	case w.cmdCh <- cmdBatch{batch: batch, reply: reply}:
	case <-w.tickThread.Stopped():
		receipts := make([]ingress.Receipt, len(batch))
		for i := range receipts {
			receipts[i] = ingress.Receipt{BatchIndex: i, Accepted: false, Reason: errs.StepShuttingDown}
		}
		return receipts
	}
	return <-reply
}

// LatestSnapshot returns the ring's newest published generation.
func (w *RealtimeAsyncWorld) LatestSnapshot() (*arena.OwnedSnapshot, bool) {
	return w.ring.Latest()
}

// Observe dispatches a simple (all-fixed-region) observation task to any
// available egress worker and waits for the result.
func (w *RealtimeAsyncWorld) Observe(ctx context.Context, plan *obs.Plan, space contract.Space, output []float32, mask []byte) (obs.Metadata, error) {
	reply := make(chan worker.Result, 1)
	task := worker.Task{
		Kind: worker.KindSimple, Plan: plan, Space: space,
		EngineTick: w.tickThread.Engine().CurrentTick(), ParamVersion: w.tickThread.Engine().ParamVersion(),
		Output: output, Mask: mask, Reply: reply,
	}
	if err := w.pool.Dispatch(ctx, task); err != nil {
		return obs.Metadata{}, err
	}
	res := <-reply
	if res.Err != nil {
		return obs.Metadata{}, res.Err
	}
	return res.Metadata[0], nil
}

// ObserveAgents dispatches a batched per-agent observation task.
func (w *RealtimeAsyncWorld) ObserveAgents(ctx context.Context, plan *obs.Plan, space contract.Space, centers []contract.Coord, output []float32, mask []byte) ([]obs.Metadata, error) {
	reply := make(chan worker.Result, 1)
	task := worker.Task{
		Kind: worker.KindAgents, Plan: plan, Space: space,
		EngineTick: w.tickThread.Engine().CurrentTick(), ParamVersion: w.tickThread.Engine().ParamVersion(),
		AgentCenters: centers, Output: output, Mask: mask, Reply: reply,
	}
	if err := w.pool.Dispatch(ctx, task); err != nil {
		return nil, err
	}
	res := <-reply
	return res.Metadata, res.Err
}

// Metrics returns the world's shared metrics sink.
func (w *RealtimeAsyncWorld) Metrics() *metricsutil.Metrics { return w.metrics }

// Phase returns the current shutdown phase.
func (w *RealtimeAsyncWorld) Phase() Phase { return Phase(w.phase.Load()) }

// Shutdown runs the Running -> Draining -> Quiescing -> Dropped sequence
// and returns phase timings.
func (w *RealtimeAsyncWorld) Shutdown() Report {
	totalStart := time.Now()

	w.phase.Store(int32(PhaseDraining))
	drainStart := time.Now()
	w.tickThread.Shutdown()
	<-w.tickThread.Stopped()
	drainingNs := time.Since(drainStart).Nanoseconds()

	w.phase.Store(int32(PhaseQuiescing))
	quiesceStart := time.Now()
	for _, we := range w.pool.Workers() {
		we.RequestCancel()
	}
	w.pool.Close()
	quiescingNs := time.Since(quiesceStart).Nanoseconds()

	w.phase.Store(int32(PhaseDropped))

	return Report{
		DrainingNs:  drainingNs,
		QuiescingNs: quiescingNs,
		TotalNs:     time.Since(totalStart).Nanoseconds(),
	}
}
