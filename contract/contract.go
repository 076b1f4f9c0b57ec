// Package contract defines the public interfaces a simulation space and
// its propagators implement, plus the value types that cross that
// boundary. It depends only on arena so that tick, obs and the root
// simcore package can all import it without cycles.
package contract

import "github.com/behrlich/simcore/arena"

// Coord is a single simulation coordinate in a Space's native indexing
// scheme (cell index, grid (x, y), entity id, ...). Spaces interpret it;
// the tick engine and obs pipeline treat it as opaque.
type Coord int64

// RegionKind distinguishes what a RegionSpec selects.
type RegionKind int

const (
	RegionAll RegionKind = iota
	RegionRect
	RegionDisk
	RegionNeighborhood
	RegionCoordList
	RegionAgentRelative
)

// RegionSpec describes a region of interest within a Space, used by obs
// gather plans and by propagators that need neighborhood reads.
type RegionSpec struct {
	Kind   RegionKind
	Min    Coord
	Max    Coord
	Center Coord
	Radius int
	Depth  int
	Coords []Coord
	// AgentField names the per-tick field holding the agent-relative
	// center coordinate, used only when Kind is RegionAgentRelative.
	AgentField arena.FieldID
}

// RegionPlan is the resolved, concrete list of coordinates a RegionSpec
// names at a given space topology. Compiled once per topology fingerprint
// and reused across ticks until the fingerprint changes.
type RegionPlan struct {
	Coords []Coord
}

// WriteMode describes how a propagator's write is reconciled against the
// pipeline's other writers of the same field in the same tick.
type WriteMode int

const (
	// WriteFull replaces the field's entire value for the tick. At most
	// one propagator may declare a full write on a given field.
	WriteFull WriteMode = iota
	// WriteIncremental accumulates onto a field already written earlier
	// in pipeline order this tick. Multiple propagators may stack
	// incremental writes, ordered by pipeline position.
	WriteIncremental
)

// FieldWrite declares one field a propagator intends to write, and how.
type FieldWrite struct {
	Field arena.FieldID
	Mode  WriteMode
}

// StepContext is the per-tick handle a propagator uses to read and write
// arena fields and consult the active Space. It is valid only for the
// duration of one Propagator.Step call and must not be retained past it.
type StepContext interface {
	// Reads returns the fields this step resolves against the tick being
	// staged (see Read).
	Reads() []arena.FieldID
	// ReadsPrevious returns the fields this step resolves strictly
	// against the previous published generation, ignoring any write
	// already made to that field earlier in this tick.
	ReadsPrevious() []arena.FieldID
	// Writes returns the field writes this step is permitted to make.
	Writes() []FieldWrite
	// Read resolves a field against the tick being staged: a PerTick
	// field reads its staging slice (zeroed at tick start, holding only
	// this tick's writes); a Sparse field reads this tick's write if
	// already made, else the previous published value; a Static field
	// reads the static value.
	Read(id arena.FieldID) ([]float32, bool)
	// ReadPrevious resolves a field strictly against the previous
	// published generation, bypassing any write already made this tick.
	ReadPrevious(id arena.FieldID) ([]float32, bool)
	// Write returns a mutable slice for id: the storage pre-allocated for
	// this tick (PerTick) or a fresh copy-on-write slice (Sparse).
	Write(id arena.FieldID) ([]float32, error)
	// Scratch returns a zeroed scratch buffer of at least n floats, valid
	// for the duration of this step only.
	Scratch(n int) []float32
	// Space returns the active space topology for this tick.
	Space() Space
	// TickID returns the tick id currently being staged (the tick that
	// will be published if this step succeeds).
	TickID() uint64
	// Dt returns the simulation time step in seconds for this tick.
	Dt() float64
}

// Propagator is one stage of the tick pipeline. Implementations must be
// deterministic given identical inputs and must not retain references to
// the StepContext or any slice it returns past the call to Step.
type Propagator interface {
	// Name identifies the propagator for diagnostics and error Op tags.
	Name() string
	// Reads declares which this-tick fields this propagator reads.
	Reads() []arena.FieldID
	// ReadsPrevious declares which previous-tick fields this propagator
	// reads, bypassing any same-tick write to those fields.
	ReadsPrevious() []arena.FieldID
	// Writes declares which fields this propagator writes and how.
	Writes() []FieldWrite
	// MaxDt returns an optional CFL-style upper bound on dt for the given
	// space, or ok=false if this propagator imposes no bound.
	MaxDt(space Space) (dt float64, ok bool)
	// Step executes one tick's worth of work for this propagator.
	Step(ctx StepContext) error
}

// Space describes simulation topology: how many cells exist, how to
// resolve a RegionSpec into concrete coordinates, and a fingerprint used
// to invalidate compiled obs plans when topology changes.
type Space interface {
	// NDim returns the topology's dimensionality (1 for a ring or graph,
	// 2 for a grid, and so on).
	NDim() int
	// CellCount returns the number of addressable cells/entities.
	CellCount() int
	// Neighbors returns the coordinates adjacent to c, per the space's
	// own notion of adjacency.
	Neighbors(c Coord) []Coord
	// Distance returns the space's native distance between two coords.
	Distance(a, b Coord) float64
	// Resolve expands a RegionSpec into a concrete RegionPlan.
	Resolve(spec RegionSpec) (RegionPlan, error)
	// CanonicalOrdering returns every coord in the space's fixed
	// insertion order; index in this slice is the coord's canonical rank.
	CanonicalOrdering() []Coord
	// CanonicalRank returns c's position in CanonicalOrdering, if any.
	CanonicalRank(c Coord) (rank int, ok bool)
	// InstanceID identifies this space instance. MUST be unique and
	// monotonic per constructed space; backs the obs plan cache
	// fingerprint.
	InstanceID() uint64
}

// TopologyFingerprint is the (instance_id, cell_count) pair ObsPlanCache
// keys compiled plans on. It intentionally excludes world generation: a
// plan compiled against one generation stays valid across generations
// with the same topology unless compiled with CompileBound.
type TopologyFingerprint struct {
	InstanceID uint64
	CellCount  int
}

// Fingerprint returns sp's current topology fingerprint.
func Fingerprint(sp Space) TopologyFingerprint {
	return TopologyFingerprint{InstanceID: sp.InstanceID(), CellCount: sp.CellCount()}
}
