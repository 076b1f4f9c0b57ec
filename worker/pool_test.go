package worker

import (
	"context"
	"testing"
	"time"

	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/epoch"
	"github.com/behrlich/simcore/errs"
	"github.com/behrlich/simcore/obs"
	"github.com/behrlich/simcore/ring"
)

type lineSpace struct{ n int }

func (s lineSpace) NDim() int      { return 1 }
func (s lineSpace) CellCount() int { return s.n }
func (s lineSpace) Neighbors(c contract.Coord) []contract.Coord { return nil }
func (s lineSpace) Distance(a, b contract.Coord) float64        { return 0 }
func (s lineSpace) Resolve(spec contract.RegionSpec) (contract.RegionPlan, error) {
	coords := make([]contract.Coord, s.n)
	for i := range coords {
		coords[i] = contract.Coord(i)
	}
	return contract.RegionPlan{Coords: coords}, nil
}
func (s lineSpace) CanonicalOrdering() []contract.Coord { return nil }
func (s lineSpace) CanonicalRank(c contract.Coord) (int, bool) {
	r := int(c)
	if r < 0 || r >= s.n {
		return 0, false
	}
	return r, true
}
func (s lineSpace) InstanceID() uint64 { return 1 }

func newPoolTestRing(t *testing.T) *ring.Ring {
	t.Helper()
	defs := []arena.FieldDef{{ID: 1, Name: "f", Type: arena.FieldScalar, Mutability: arena.PerTick}}
	a, err := arena.NewPingPongArena(arena.Config{Defs: defs, N: 3, SegmentSize: 64, MaxSegments: 4})
	if err != nil {
		t.Fatalf("NewPingPongArena: %v", err)
	}
	wa := a.BeginTick()
	slice, err := wa.Write(1)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	copy(slice, []float32{1, 2, 3})
	a.Publish(wa)

	r, err := ring.New(2)
	if err != nil {
		t.Fatalf("ring.New: %v", err)
	}
	r.Push(a.OwnedSnapshot())
	return r
}

func TestPoolExecutesSimpleTask(t *testing.T) {
	r := newPoolTestRing(t)
	space := lineSpace{n: 3}
	fields := map[arena.FieldID]int{1: 1}
	spec := obs.Spec{Entries: []obs.Entry{{Field: 1, Region: contract.RegionSpec{Kind: contract.RegionAll}}}}
	plan, err := obs.Compile(spec, space, fields)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	pool, err := New(Config{WorkerCount: 2, TaskQueueLen: 4, Counter: &epoch.Counter{}, Ring: r})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Close()

	output := make([]float32, plan.OutputLen())
	mask := make([]byte, plan.MaskLen())
	reply := make(chan Result, 1)
	task := Task{Kind: KindSimple, Plan: plan, Space: space, Output: output, Mask: mask, Reply: reply}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pool.Dispatch(ctx, task); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case res := <-reply:
		if res.Err != nil {
			t.Fatalf("worker result error: %v", res.Err)
		}
		if output[0] != 1 || output[1] != 2 || output[2] != 3 {
			t.Fatalf("output = %v, want [1 2 3]", output)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for worker reply")
	}
}

func TestPoolRejectsWhenNoSnapshotPublished(t *testing.T) {
	r, err := ring.New(2)
	if err != nil {
		t.Fatalf("ring.New: %v", err)
	}
	space := lineSpace{n: 3}
	fields := map[arena.FieldID]int{1: 1}
	spec := obs.Spec{Entries: []obs.Entry{{Field: 1, Region: contract.RegionSpec{Kind: contract.RegionAll}}}}
	plan, err := obs.Compile(spec, space, fields)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	pool, err := New(Config{WorkerCount: 1, TaskQueueLen: 1, Counter: &epoch.Counter{}, Ring: r})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Close()

	reply := make(chan Result, 1)
	task := Task{Kind: KindSimple, Plan: plan, Space: space, Output: make([]float32, plan.OutputLen()), Mask: make([]byte, plan.MaskLen()), Reply: reply}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pool.Dispatch(ctx, task); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	res := <-reply
	if !errs.IsKind(res.Err, errs.ObsNotAvailable) {
		t.Fatalf("res.Err = %v, want ObsNotAvailable", res.Err)
	}
}
