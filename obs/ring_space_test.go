package obs

import (
	"math"

	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/errs"
)

// ringSpace is a minimal 1D ring topology used to exercise plan
// compilation and execution without pulling in a full world.
type ringSpace struct {
	n          int
	instanceID uint64
}

func (s *ringSpace) NDim() int      { return 1 }
func (s *ringSpace) CellCount() int { return s.n }
func (s *ringSpace) Neighbors(c contract.Coord) []contract.Coord {
	return []contract.Coord{s.wrap(int64(c) - 1), s.wrap(int64(c) + 1)}
}
func (s *ringSpace) Distance(a, b contract.Coord) float64 { return math.Abs(float64(a - b)) }
func (s *ringSpace) wrap(v int64) contract.Coord {
	n := int64(s.n)
	v %= n
	if v < 0 {
		v += n
	}
	return contract.Coord(v)
}

func (s *ringSpace) Resolve(spec contract.RegionSpec) (contract.RegionPlan, error) {
	switch spec.Kind {
	case contract.RegionAll:
		coords := make([]contract.Coord, s.n)
		for i := range coords {
			coords[i] = contract.Coord(i)
		}
		return contract.RegionPlan{Coords: coords}, nil
	case contract.RegionCoordList:
		return contract.RegionPlan{Coords: spec.Coords}, nil
	case contract.RegionDisk, contract.RegionAgentRelative, contract.RegionNeighborhood:
		radius := spec.Radius
		if spec.Kind == contract.RegionNeighborhood {
			radius = spec.Depth
		}
		coords := make([]contract.Coord, 0, 2*radius+1)
		for d := -radius; d <= radius; d++ {
			coords = append(coords, s.wrap(int64(spec.Center)+int64(d)))
		}
		return contract.RegionPlan{Coords: coords}, nil
	default:
		return contract.RegionPlan{}, errs.New("ringSpace.Resolve", errs.ObsInvalidSpec, "unsupported region kind")
	}
}

func (s *ringSpace) CanonicalOrdering() []contract.Coord {
	coords := make([]contract.Coord, s.n)
	for i := range coords {
		coords[i] = contract.Coord(i)
	}
	return coords
}

func (s *ringSpace) CanonicalRank(c contract.Coord) (int, bool) {
	r := int(c)
	if r < 0 || r >= s.n {
		return 0, false
	}
	return r, true
}

func (s *ringSpace) InstanceID() uint64 { return s.instanceID }
