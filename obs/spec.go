// Package obs implements the observation pipeline: compiling a caller
// spec against a space into a plan of gather/pool/transform steps, a
// topology-fingerprinted plan cache, and the pooling kernels themselves.
package obs

import (
	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/contract"
)

// PoolKind selects a pooling kernel applied to a gathered window before
// it is written to the output buffer.
type PoolKind int

const (
	PoolNone PoolKind = iota
	PoolMean
	PoolMax
	PoolMin
	PoolSum
)

// PoolConfig configures optional pooling for one observation entry.
type PoolConfig struct {
	Kind PoolKind
}

// TransformKind selects a post-gather value transform.
type TransformKind int

const (
	TransformIdentity TransformKind = iota
	TransformScale
	TransformClip
)

// Transform is applied to every value in an entry's output after
// gather/pool, before it is written to the output buffer.
type Transform struct {
	Kind  TransformKind
	Scale float32
	Min   float32
	Max   float32
}

// Apply runs the transform over buf in place.
func (tr Transform) Apply(buf []float32) {
	switch tr.Kind {
	case TransformScale:
		for i, v := range buf {
			buf[i] = v * tr.Scale
		}
	case TransformClip:
		for i, v := range buf {
			if v < tr.Min {
				buf[i] = tr.Min
			} else if v > tr.Max {
				buf[i] = tr.Max
			}
		}
	}
}

// Dtype labels the logical output dtype an entry's caller expects.
// Gather/pool/transform always operate on float32 internally; dtype is
// informational metadata surfaced to the caller (e.g. for a Python
// binding to choose an array dtype), not a cast performed here.
type Dtype int

const (
	DtypeF32 Dtype = iota
	DtypeI32
	DtypeBool
)

// Entry is one caller-requested observation: a field, a region to
// gather it over, optional pooling, a transform, and the dtype the
// caller expects the result in.
type Entry struct {
	Field     arena.FieldID
	Region    contract.RegionSpec
	Pool      PoolConfig
	Transform Transform
	Dtype     Dtype
}

// Spec is the caller-supplied list of entries that, together, define one
// observation's output layout.
type Spec struct {
	Entries []Entry
}
