package obs

import (
	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/errs"
)

// Reader is the narrow view of a published generation a Plan executes
// against. arena.Snapshot and arena.OwnedSnapshot both satisfy it.
type Reader interface {
	Read(id arena.FieldID) ([]float32, bool)
	Meta(id arena.FieldID) (arena.FieldMeta, bool)
	TickID() uint64
	WorldGen() uint64
}

type compiledEntry struct {
	field      arena.FieldID
	region     contract.RegionSpec
	coords     []contract.Coord // resolved at compile time; re-resolved per-call for agent-relative regions
	components int
	pool       PoolConfig
	transform  Transform
	outOffset  int
	outLen     int
	maskOffset int
	maskLen    int
}

// Plan is a compiled Spec: per-entry resolved coordinates, output/mask
// layout, and optionally a binding generation.
type Plan struct {
	entries     []compiledEntry
	totalOut    int
	totalMask   int
	fingerprint contract.TopologyFingerprint
	bound       bool
	boundGen    uint64
}

// OutputLen returns the combined output buffer length this plan writes.
func (p *Plan) OutputLen() int { return p.totalOut }

// MaskLen returns the combined validity-mask buffer length.
func (p *Plan) MaskLen() int { return p.totalMask }

// Fingerprint returns the topology fingerprint this plan was compiled
// against.
func (p *Plan) Fingerprint() contract.TopologyFingerprint { return p.fingerprint }

// Compile resolves spec's entries against space into concrete gather
// layouts. fieldComponents supplies each field's fixed per-cell
// component count (stable for the life of the world, unlike topology).
func Compile(spec Spec, space contract.Space, fieldComponents map[arena.FieldID]int) (*Plan, error) {
	return compile(spec, space, fieldComponents, false, 0)
}

// CompileBound is Compile plus a binding to worldGen: Execute against any
// snapshot whose generation differs from worldGen returns
// errs.ObsPlanInvalidated (P13). Unbound plans never return that error.
func CompileBound(spec Spec, space contract.Space, fieldComponents map[arena.FieldID]int, worldGen uint64) (*Plan, error) {
	return compile(spec, space, fieldComponents, true, worldGen)
}

func compile(spec Spec, space contract.Space, fieldComponents map[arena.FieldID]int, bound bool, worldGen uint64) (*Plan, error) {
	entries := make([]compiledEntry, 0, len(spec.Entries))
	outCursor, maskCursor := 0, 0

	for _, e := range spec.Entries {
		comps, ok := fieldComponents[e.Field]
		if !ok {
			return nil, errs.New("obs.Compile", errs.ObsInvalidSpec, "unknown field in observation entry")
		}
		if e.Pool.Kind != PoolNone && comps != 1 {
			return nil, errs.New("obs.Compile", errs.ObsInvalidComposition, "pooling requires a scalar field")
		}

		// Agent-relative regions are resolved here only to size the
		// entry's output; Execute re-resolves them around the agent.
		rp, err := space.Resolve(e.Region)
		if err != nil {
			return nil, errs.Wrap("obs.Compile", errs.ObsInvalidSpec, err)
		}
		var coords []contract.Coord
		if e.Region.Kind != contract.RegionAgentRelative {
			coords = rp.Coords
		}

		n := len(rp.Coords)
		outLen := n * comps
		maskLen := n
		if e.Pool.Kind != PoolNone {
			outLen = 1
			maskLen = 1
		}

		entries = append(entries, compiledEntry{
			field: e.Field, region: e.Region, coords: coords, components: comps,
			pool: e.Pool, transform: e.Transform,
			outOffset: outCursor, outLen: outLen,
			maskOffset: maskCursor, maskLen: maskLen,
		})
		outCursor += outLen
		maskCursor += maskLen
	}

	return &Plan{
		entries: entries, totalOut: outCursor, totalMask: maskCursor,
		fingerprint: contract.Fingerprint(space), bound: bound, boundGen: worldGen,
	}, nil
}

// Metadata accompanies every Execute call.
type Metadata struct {
	TickID          uint64
	WorldGeneration uint64
	ParameterVersion uint64
	AgeTicks        uint64
	Coverage        float64
}

// Execute walks plan's entries against r: gather (optionally pool),
// transform, and write into output/mask. space resolves agent-relative
// regions and canonical coordinate ranks; engineTick is the caller's
// current tick id, used to compute age_ticks.
func Execute(plan *Plan, space contract.Space, r Reader, engineTick uint64, paramVersion uint64, output []float32, mask []byte) (Metadata, error) {
	return execute(plan, space, r, engineTick, paramVersion, output, mask, nil)
}

// ExecuteForAgent behaves like Execute but resolves every agent-relative
// entry's region around center directly, instead of reading the entry's
// declared agent field. Used by the egress worker pool to batch one
// observation per agent without requiring a distinct field per agent.
func ExecuteForAgent(plan *Plan, space contract.Space, r Reader, engineTick uint64, paramVersion uint64, center contract.Coord, output []float32, mask []byte) (Metadata, error) {
	return execute(plan, space, r, engineTick, paramVersion, output, mask, &center)
}

func execute(plan *Plan, space contract.Space, r Reader, engineTick uint64, paramVersion uint64, output []float32, mask []byte, centerOverride *contract.Coord) (Metadata, error) {
	if plan.bound && r.WorldGen() != plan.boundGen {
		return Metadata{}, errs.New("obs.Execute", errs.ObsPlanInvalidated, "snapshot generation does not match plan binding")
	}
	if len(output) < plan.totalOut || len(mask) < plan.totalMask {
		return Metadata{}, errs.New("obs.Execute", errs.ObsInvalidComposition, "output/mask buffer smaller than plan requires")
	}

	var validCells, totalCells int

	for _, ce := range plan.entries {
		coords := ce.coords
		if ce.region.Kind == contract.RegionAgentRelative {
			var resolved []contract.Coord
			var err error
			if centerOverride != nil {
				spec := ce.region
				spec.Center = *centerOverride
				var rp contract.RegionPlan
				rp, err = space.Resolve(spec)
				resolved = rp.Coords
			} else {
				resolved, err = resolveAgentRelative(ce, space, r)
			}
			if err != nil {
				return Metadata{}, err
			}
			coords = resolved
		}

		fieldSlice, haveField := r.Read(ce.field)

		gathered := make([]float32, len(coords)*ce.components)
		gmask := make([]byte, len(coords))
		for i, c := range coords {
			rank, ok := space.CanonicalRank(c)
			if !haveField || !ok {
				continue
			}
			base := rank * ce.components
			if base < 0 || base+ce.components > len(fieldSlice) {
				continue
			}
			copy(gathered[i*ce.components:(i+1)*ce.components], fieldSlice[base:base+ce.components])
			gmask[i] = 1
		}

		if ce.pool.Kind != PoolNone {
			v, m := ApplyPool(ce.pool.Kind, gathered, gmask)
			out := []float32{v}
			ce.transform.Apply(out)
			output[ce.outOffset] = out[0]
			mask[ce.maskOffset] = m
			totalCells++
			if m == 1 {
				validCells++
			}
			continue
		}

		ce.transform.Apply(gathered)
		copy(output[ce.outOffset:ce.outOffset+ce.outLen], gathered)
		copy(mask[ce.maskOffset:ce.maskOffset+ce.maskLen], gmask)
		for _, m := range gmask {
			totalCells++
			if m == 1 {
				validCells++
			}
		}
	}

	coverage := 0.0
	if totalCells > 0 {
		coverage = float64(validCells) / float64(totalCells)
	}

	age := uint64(0)
	if engineTick > r.TickID() {
		age = engineTick - r.TickID()
	}

	return Metadata{
		TickID:           r.TickID(),
		WorldGeneration:  r.WorldGen(),
		ParameterVersion: paramVersion,
		AgeTicks:         age,
		Coverage:         coverage,
	}, nil
}

// resolveAgentRelative re-resolves an agent-relative region each call,
// reading the agent's current-tick position from AgentField and asking
// space to resolve a region centered on it.
func resolveAgentRelative(ce compiledEntry, space contract.Space, r Reader) ([]contract.Coord, error) {
	posField, ok := r.Read(ce.region.AgentField)
	if !ok || len(posField) == 0 {
		return nil, errs.New("obs.Execute", errs.ObsExecutionFailed, "agent-relative region: agent field unavailable")
	}
	spec := ce.region
	spec.Center = contract.Coord(int64(posField[0]))
	rp, err := space.Resolve(spec)
	if err != nil {
		return nil, errs.Wrap("obs.Execute", errs.ObsExecutionFailed, err)
	}
	return rp.Coords, nil
}
