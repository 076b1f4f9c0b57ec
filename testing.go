package simcore

import "sync"

// MockPropagator is a test double Propagator whose Step is a caller-
// supplied function, with call counts tracked for assertions. Useful for
// exercising TickEngine rollback/disable-latch behavior without writing
// a bespoke type per test.
type MockPropagator struct {
	name     string
	reads    []FieldID
	writes   []FieldWrite
	stepFunc func(StepContext) error

	mu        sync.Mutex
	stepCalls int
}

// NewMockPropagator returns a MockPropagator named name, declaring reads
// and writes, running stepFunc on every Step call.
func NewMockPropagator(name string, reads []FieldID, writes []FieldWrite, stepFunc func(StepContext) error) *MockPropagator {
	return &MockPropagator{name: name, reads: reads, writes: writes, stepFunc: stepFunc}
}

func (m *MockPropagator) Name() string               { return m.name }
func (m *MockPropagator) Reads() []FieldID            { return m.reads }
func (m *MockPropagator) ReadsPrevious() []FieldID    { return nil }
func (m *MockPropagator) Writes() []FieldWrite        { return m.writes }
func (m *MockPropagator) MaxDt(Space) (float64, bool) { return 0, false }

func (m *MockPropagator) Step(ctx StepContext) error {
	m.mu.Lock()
	m.stepCalls++
	m.mu.Unlock()
	if m.stepFunc == nil {
		return nil
	}
	return m.stepFunc(ctx)
}

// StepCalls returns how many times Step has been called.
func (m *MockPropagator) StepCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stepCalls
}

// MockSpace is a minimal n-cell 1D ring Space test double: cell i is
// adjacent to i-1 and i+1 mod n, distance is absolute index difference.
// Region resolution returns RegionCoordList coords as given, resolves
// RegionDisk, RegionNeighborhood and RegionAgentRelative to a wrapped
// window around Center, and treats every other kind (RegionAll,
// RegionRect) as the full ring.
type MockSpace struct {
	n          int
	instanceID uint64

	mu           sync.Mutex
	resolveCalls int
}

// NewMockSpace returns a ring-topology MockSpace of n cells, stamped
// with the given instance id (callers own instance-id monotonicity).
func NewMockSpace(n int, instanceID uint64) *MockSpace {
	return &MockSpace{n: n, instanceID: instanceID}
}

func (s *MockSpace) NDim() int      { return 1 }
func (s *MockSpace) CellCount() int { return s.n }

func (s *MockSpace) Neighbors(c Coord) []Coord {
	return []Coord{s.wrap(int64(c) - 1), s.wrap(int64(c) + 1)}
}

func (s *MockSpace) Distance(a, b Coord) float64 {
	d := int64(a) - int64(b)
	if d < 0 {
		d = -d
	}
	return float64(d)
}

func (s *MockSpace) Resolve(spec RegionSpec) (RegionPlan, error) {
	s.mu.Lock()
	s.resolveCalls++
	s.mu.Unlock()

	switch spec.Kind {
	case RegionCoordList:
		return RegionPlan{Coords: spec.Coords}, nil
	case RegionDisk, RegionNeighborhood, RegionAgentRelative:
		radius := spec.Radius
		if spec.Kind == RegionNeighborhood {
			radius = spec.Depth
		}
		coords := make([]Coord, 0, 2*radius+1)
		for d := -radius; d <= radius; d++ {
			coords = append(coords, s.wrap(int64(spec.Center)+int64(d)))
		}
		return RegionPlan{Coords: coords}, nil
	default: // RegionAll, RegionRect treated as the full ring
		coords := make([]Coord, s.n)
		for i := range coords {
			coords[i] = Coord(i)
		}
		return RegionPlan{Coords: coords}, nil
	}
}

func (s *MockSpace) CanonicalOrdering() []Coord {
	coords := make([]Coord, s.n)
	for i := range coords {
		coords[i] = Coord(i)
	}
	return coords
}

func (s *MockSpace) CanonicalRank(c Coord) (int, bool) {
	r := int(c)
	if r < 0 || r >= s.n {
		return 0, false
	}
	return r, true
}

func (s *MockSpace) InstanceID() uint64 { return s.instanceID }

func (s *MockSpace) wrap(v int64) Coord {
	n := int64(s.n)
	v %= n
	if v < 0 {
		v += n
	}
	return Coord(v)
}

// ResolveCalls returns how many times Resolve has been called, for tests
// asserting plan-cache reuse avoids re-resolving every tick.
func (s *MockSpace) ResolveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveCalls
}

var (
	_ Propagator = (*MockPropagator)(nil)
	_ Space      = (*MockSpace)(nil)
)
