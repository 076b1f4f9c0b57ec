// Package simcore is the public API: a deterministic, tick-driven
// simulation core with a ping-pong double-buffered arena, a rollback-safe
// tick engine, and an optional realtime-async layer of a dedicated tick
// thread plus an egress worker pool reading through a snapshot ring.
//
// Most types here are re-exports of the narrower internal packages
// (contract, tick, ingress, realtime) so a caller implementing a
// Propagator or Space never needs to import those packages directly —
// mirroring the teacher's root-level Backend/Logger interfaces plus
// internal/backend re-exports.
package simcore

import (
	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/backoff"
	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/errs"
	"github.com/behrlich/simcore/ingress"
	"github.com/behrlich/simcore/internal/logging"
	"github.com/behrlich/simcore/internal/metricsutil"
	"github.com/behrlich/simcore/realtime"
	"github.com/behrlich/simcore/tick"
)

// Public re-exports of the contract package's types, so callers writing
// a Propagator or Space implementation import only this package.
type (
	Propagator  = contract.Propagator
	Space       = contract.Space
	StepContext = contract.StepContext
	RegionSpec  = contract.RegionSpec
	RegionPlan  = contract.RegionPlan
	RegionKind  = contract.RegionKind
	FieldWrite  = contract.FieldWrite
	WriteMode   = contract.WriteMode
	Coord       = contract.Coord
	FieldID     = arena.FieldID
	FieldDef    = arena.FieldDef
	Mutability  = arena.Mutability
	Command     = ingress.Command
	Receipt     = ingress.Receipt
	CommandKind = ingress.Kind
)

const (
	KindSetParameter = ingress.KindSetParameter
	KindSetField     = ingress.KindSetField
	KindCustom       = ingress.KindCustom
)

const (
	WriteFull        = contract.WriteFull
	WriteIncremental = contract.WriteIncremental

	Static  = arena.Static
	PerTick = arena.PerTick
	Sparse  = arena.Sparse

	RegionAll           = contract.RegionAll
	RegionRect          = contract.RegionRect
	RegionDisk          = contract.RegionDisk
	RegionNeighborhood  = contract.RegionNeighborhood
	RegionCoordList     = contract.RegionCoordList
	RegionAgentRelative = contract.RegionAgentRelative
)

// WorldConfig bundles everything needed to construct either a lockstep
// world (NewWorld) or the engine half of a realtime-async world
// (NewRealtimeAsyncWorld).
type WorldConfig struct {
	Fields               []FieldDef
	CellCount            uint32
	SegmentSize          uint32
	MaxSegments          int
	Pipeline             []Propagator
	Space                Space
	Dt                   float64
	IngressQueueCapacity int
	Applier              ingress.CommandApplier
	Seed                 int64
	WorldGen             uint64
	Metrics              *metricsutil.Metrics
	Log                  *logging.Logger
}

func (c WorldConfig) validate() error {
	if c.IngressQueueCapacity <= 0 {
		return errs.New("WorldConfig.validate", errs.ConfigIngressQueueZero, "ingress queue capacity must be positive")
	}
	return nil
}

// AsyncWorldConfig extends WorldConfig with the realtime-async
// orchestration knobs from spec.md §4.17.
//
// RingBufferSize defaults to 4 when left zero — the Open Question #3
// decision recorded in DESIGN.md: a default wide enough to absorb a
// couple of worker-tick skews under the default adaptive-backoff initial
// max-skew of 2, without wasting memory for workloads that never read
// stale history.
type AsyncWorldConfig struct {
	WorldConfig

	TickRateHz        float64
	RingBufferSize    int
	WorkerCount       int
	CommandChannelLen int
	TaskQueueLen      int
	MaxEpochHoldMs    int64
	CancelGraceMs     int64
	Backoff           backoff.Config
}

func (c AsyncWorldConfig) validate() error {
	if err := c.WorldConfig.validate(); err != nil {
		return err
	}
	if c.WorkerCount <= 0 {
		return errs.New("AsyncWorldConfig.validate", errs.ConfigWorkerCountZero, "worker count must be positive")
	}
	return nil
}

func buildEngineConfig(c WorldConfig) (tick.Config, error) {
	if err := c.validate(); err != nil {
		return tick.Config{}, err
	}
	a, err := arena.NewPingPongArena(arena.Config{
		Defs: c.Fields, N: c.CellCount, SegmentSize: c.SegmentSize,
		MaxSegments: c.MaxSegments, WorldGen: c.WorldGen,
	})
	if err != nil {
		return tick.Config{}, err
	}
	return tick.Config{
		Arena: a, Pipeline: c.Pipeline, Space: c.Space, Dt: c.Dt,
		Queue: ingress.NewQueue(c.IngressQueueCapacity), Applier: c.Applier,
		Seed: c.Seed, Metrics: c.Metrics, Log: c.Log,
	}, nil
}

// NewWorld constructs a lockstep world: an arena, ingress queue, and
// validated tick engine, ready for the caller to drive ExecuteTick
// itself (no tick thread, no workers, no ring).
func NewWorld(cfg WorldConfig) (*tick.Engine, error) {
	engineCfg, err := buildEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	return tick.NewEngine(engineCfg)
}

// NewRealtimeAsyncWorld constructs the same engine as NewWorld, plus the
// snapshot ring, epoch counter, adaptive backoff, and egress worker pool,
// and moves the engine onto its own tick-thread goroutine.
func NewRealtimeAsyncWorld(cfg AsyncWorldConfig) (*realtime.RealtimeAsyncWorld, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	engineCfg, err := buildEngineConfig(cfg.WorldConfig)
	if err != nil {
		return nil, err
	}
	ringSize := cfg.RingBufferSize
	if ringSize == 0 {
		ringSize = 4
	}
	return realtime.NewRealtimeAsyncWorld(engineCfg, realtime.AsyncConfig{
		TickRateHz: cfg.TickRateHz, RingBufferSize: ringSize, WorkerCount: cfg.WorkerCount,
		CommandChannelLen: cfg.CommandChannelLen, TaskQueueLen: cfg.TaskQueueLen,
		MaxEpochHoldMs: cfg.MaxEpochHoldMs, CancelGraceMs: cfg.CancelGraceMs,
		Backoff: cfg.Backoff, Metrics: cfg.Metrics, Log: cfg.Log,
	})
}
