package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/backoff"
	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/ingress"
	"github.com/behrlich/simcore/obs"
	"github.com/behrlich/simcore/tick"
)

type worldTestSpace struct{ n int }

func (s worldTestSpace) NDim() int      { return 1 }
func (s worldTestSpace) CellCount() int { return s.n }
func (s worldTestSpace) Neighbors(c contract.Coord) []contract.Coord { return nil }
func (s worldTestSpace) Distance(a, b contract.Coord) float64        { return 0 }
func (s worldTestSpace) Resolve(spec contract.RegionSpec) (contract.RegionPlan, error) {
	coords := make([]contract.Coord, s.n)
	for i := range coords {
		coords[i] = contract.Coord(i)
	}
	return contract.RegionPlan{Coords: coords}, nil
}
func (s worldTestSpace) CanonicalOrdering() []contract.Coord { return nil }
func (s worldTestSpace) CanonicalRank(c contract.Coord) (int, bool) {
	r := int(c)
	if r < 0 || r >= s.n {
		return 0, false
	}
	return r, true
}
func (s worldTestSpace) InstanceID() uint64 { return 1 }

type incrementPropagator struct{ field arena.FieldID }

func (p incrementPropagator) Name() string                  { return "increment" }
func (p incrementPropagator) Reads() []arena.FieldID         { return []arena.FieldID{p.field} }
func (p incrementPropagator) ReadsPrevious() []arena.FieldID { return nil }
func (p incrementPropagator) Writes() []contract.FieldWrite {
	return []contract.FieldWrite{{Field: p.field, Mode: contract.WriteFull}}
}
func (p incrementPropagator) MaxDt(contract.Space) (float64, bool) { return 0, false }
func (p incrementPropagator) Step(ctx contract.StepContext) error {
	in, _ := ctx.Read(p.field)
	out, err := ctx.Write(p.field)
	if err != nil {
		return err
	}
	for i, v := range in {
		out[i] = v + 1
	}
	return nil
}

func newTestWorld(t *testing.T) *RealtimeAsyncWorld {
	t.Helper()
	defs := []arena.FieldDef{{ID: 1, Name: "f", Type: arena.FieldScalar, Mutability: arena.PerTick}}
	a, err := arena.NewPingPongArena(arena.Config{Defs: defs, N: 3, SegmentSize: 64, MaxSegments: 4})
	if err != nil {
		t.Fatalf("NewPingPongArena: %v", err)
	}
	space := worldTestSpace{n: 3}

	engineCfg := tick.Config{
		Arena: a, Pipeline: []contract.Propagator{incrementPropagator{field: 1}},
		Space: space, Dt: 0.1, Queue: ingress.NewQueue(16), Seed: 1,
	}
	asyncCfg := AsyncConfig{
		TickRateHz: 1000, RingBufferSize: 4, WorkerCount: 2,
		CommandChannelLen: 4, TaskQueueLen: 4,
		MaxEpochHoldMs: 1000, CancelGraceMs: 1000,
		Backoff: backoff.DefaultConfig(),
	}
	w, err := NewRealtimeAsyncWorld(engineCfg, asyncCfg)
	if err != nil {
		t.Fatalf("NewRealtimeAsyncWorld: %v", err)
	}
	return w
}

func TestRealtimeAsyncWorldTicksAndObserves(t *testing.T) {
	w := newTestWorld(t)
	defer w.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if snap, ok := w.LatestSnapshot(); ok {
			_ = snap
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the tick thread to publish a snapshot")
		}
		time.Sleep(time.Millisecond)
	}

	space := worldTestSpace{n: 3}
	fields := map[arena.FieldID]int{1: 1}
	spec := obs.Spec{Entries: []obs.Entry{{Field: 1, Region: contract.RegionSpec{Kind: contract.RegionAll}}}}
	plan, err := obs.Compile(spec, space, fields)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	output := make([]float32, plan.OutputLen())
	mask := make([]byte, plan.MaskLen())
	if _, err := w.Observe(ctx, plan, space, output, mask); err != nil {
		t.Fatalf("Observe: %v", err)
	}
}

func TestRealtimeAsyncWorldSubmitCommands(t *testing.T) {
	w := newTestWorld(t)
	defer w.Shutdown()

	receipts := w.SubmitCommands([]ingress.Command{{Kind: ingress.KindSetParameter, ParameterKey: "x", ParameterValue: 1}})
	if len(receipts) != 1 {
		t.Fatalf("len(receipts) = %d, want 1", len(receipts))
	}
}

func TestRealtimeAsyncWorldShutdownReachesDropped(t *testing.T) {
	w := newTestWorld(t)
	report := w.Shutdown()
	if w.Phase() != PhaseDropped {
		t.Fatalf("Phase() after Shutdown = %v, want PhaseDropped", w.Phase())
	}
	if report.TotalNs <= 0 {
		t.Fatalf("report.TotalNs = %d, want > 0", report.TotalNs)
	}
}
