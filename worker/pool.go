// Package worker implements the egress worker pool: a fixed number of
// goroutines that each pin the current epoch, execute an observation
// plan against the latest ring snapshot, and unpin, regardless of
// whether the plan succeeded.
package worker

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/epoch"
	"github.com/behrlich/simcore/errs"
	"github.com/behrlich/simcore/internal/logging"
	"github.com/behrlich/simcore/internal/metricsutil"
	"github.com/behrlich/simcore/obs"
	"github.com/behrlich/simcore/ring"
)

// Kind distinguishes the two observe task shapes.
type Kind int

const (
	// KindSimple observes a plan whose regions are all fixed.
	KindSimple Kind = iota
	// KindAgents observes the same plan once per agent center, batching
	// the per-agent outputs back to back in Output/Mask.
	KindAgents
)

// Task is one observe request dispatched to any available worker.
type Task struct {
	Kind         Kind
	Plan         *obs.Plan
	Space        contract.Space
	EngineTick   uint64
	ParamVersion uint64
	// AgentCenters is used only when Kind == KindAgents: one center per
	// agent, each contributing plan.OutputLen()/plan.MaskLen() elements to
	// Output/Mask in order.
	AgentCenters []contract.Coord
	Output       []float32
	Mask         []byte
	Reply        chan Result
}

// Result is what a worker sends back on Task.Reply.
type Result struct {
	Metadata []obs.Metadata // one entry for Simple, one per agent for Agents
	Err      error
}

// Pool owns the task channel, per-worker epoch cells, and the
// semaphore bounding in-flight observe calls beyond the fixed worker
// count.
type Pool struct {
	taskCh  chan Task
	workers []*epoch.WorkerEpoch
	counter *epoch.Counter
	ring    *ring.Ring
	sem     *semaphore.Weighted
	metrics *metricsutil.Metrics
	log     *logging.Logger
	done    chan struct{}
}

// Config configures a Pool.
type Config struct {
	WorkerCount  int
	TaskQueueLen int
	Counter      *epoch.Counter
	Ring         *ring.Ring
	Metrics      *metricsutil.Metrics
	Log          *logging.Logger
}

// New spawns WorkerCount goroutines and returns the running pool.
func New(cfg Config) (*Pool, error) {
	if cfg.WorkerCount <= 0 {
		return nil, errs.New("worker.New", errs.ConfigWorkerCountZero, "worker count must be positive")
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = metricsutil.NewMetrics()
	}
	log := cfg.Log
	if log == nil {
		log = logging.Default()
	}

	p := &Pool{
		taskCh:  make(chan Task, cfg.TaskQueueLen),
		workers: make([]*epoch.WorkerEpoch, cfg.WorkerCount),
		counter: cfg.Counter,
		ring:    cfg.Ring,
		sem:     semaphore.NewWeighted(int64(cfg.WorkerCount)),
		metrics: metrics,
		log:     log,
		done:    make(chan struct{}),
	}
	for i := range p.workers {
		p.workers[i] = epoch.NewWorkerEpoch()
	}
	for i := range p.workers {
		go p.loop(i)
	}
	return p, nil
}

// Workers returns the pool's epoch cells, indexed the same way the tick
// thread's stall detector iterates them.
func (p *Pool) Workers() []*epoch.WorkerEpoch { return p.workers }

// Dispatch bounds in-flight observe calls with the semaphore before
// handing the task to a worker goroutine, giving backpressure to callers
// that hammer observe faster than the fixed worker count can drain.
func (p *Pool) Dispatch(ctx context.Context, task Task) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return errs.Wrap("worker.Dispatch", errs.ObsWorkerStalled, err)
	}
	select {
	case p.taskCh <- task:
		return nil
	case <-p.done:
		p.sem.Release(1)
		return errs.New("worker.Dispatch", errs.StepShuttingDown, "worker pool closed")
	}
}

// Close stops accepting new tasks and closes the task channel, letting
// in-flight workers drain their current task and exit.
func (p *Pool) Close() {
	close(p.done)
	close(p.taskCh)
}

func (p *Pool) loop(idx int) {
	we := p.workers[idx]
	for task := range p.taskCh {
		res := p.execute(we, task)
		p.sem.Release(1)
		task.Reply <- res
	}
}

func (p *Pool) execute(we *epoch.WorkerEpoch, task Task) Result {
	if we.IsCancelled() {
		we.ClearCancel()
		return Result{Err: errs.New("worker.execute", errs.ObsWorkerStalled, "task cancelled before dispatch")}
	}

	snap, ok := p.ring.Latest()
	if !ok {
		return Result{Err: errs.New("worker.execute", errs.ObsNotAvailable, "no published snapshot available")}
	}

	we.Pin(p.counter.Load())
	defer we.Unpin()

	if task.Kind == KindSimple {
		meta, err := obs.Execute(task.Plan, task.Space, snap, task.EngineTick, task.ParamVersion, task.Output, task.Mask)
		if err != nil {
			return Result{Err: err}
		}
		return Result{Metadata: []obs.Metadata{meta}}
	}

	outLen, maskLen := task.Plan.OutputLen(), task.Plan.MaskLen()
	metas := make([]obs.Metadata, 0, len(task.AgentCenters))
	for i, center := range task.AgentCenters {
		if we.IsCancelled() {
			we.ClearCancel()
			return Result{Metadata: metas, Err: errs.New("worker.execute", errs.ObsWorkerStalled, "task cancelled mid-batch")}
		}
		outSlice := task.Output[i*outLen : (i+1)*outLen]
		maskSlice := task.Mask[i*maskLen : (i+1)*maskLen]
		meta, err := obs.ExecuteForAgent(task.Plan, task.Space, snap, task.EngineTick, task.ParamVersion, center, outSlice, maskSlice)
		if err != nil {
			return Result{Metadata: metas, Err: err}
		}
		metas = append(metas, meta)
	}
	return Result{Metadata: metas}
}
