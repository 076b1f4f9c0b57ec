// Package tick implements the pipeline validator and the tick engine:
// staging a write arena, running propagators in pipeline order, and
// publishing or atomically rolling back.
package tick

import (
	"fmt"
	"math"

	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/errs"
)

// Plan is the read-resolution plan returned by a successful Validate. It
// records, per field, which propagator (if any) holds the tick's
// authoritative full-write, for diagnostics; read resolution itself is
// performed directly by arena.WriteArena against the staging and
// published generations, so Plan carries no routing table of its own.
type Plan struct {
	FullWriter map[arena.FieldID]string
}

// Validate checks a pipeline against a descriptor's known fields and dt,
// per spec §4.7: every read/write field must exist, no two propagators
// may declare overlapping full writes on the same field, dt must be
// finite and positive and within every propagator's declared MaxDt.
func Validate(pipeline []contract.Propagator, knownFields map[arena.FieldID]bool, space contract.Space, dt float64) (*Plan, error) {
	if len(pipeline) == 0 {
		return nil, errs.New("tick.Validate", errs.ConfigPipeline, "pipeline must be nonempty")
	}
	if dt <= 0 || dt != dt || math.IsInf(dt, 1) { // dt != dt catches NaN
		return nil, errs.New("tick.Validate", errs.ConfigPipeline, "dt must be finite and positive")
	}

	plan := &Plan{FullWriter: make(map[arena.FieldID]string)}

	checkField := func(op, propagator string, id arena.FieldID) error {
		if !knownFields[id] {
			return errs.New(op, errs.ConfigPipeline, fmt.Sprintf("propagator %q references unknown field %d", propagator, id))
		}
		return nil
	}

	for _, p := range pipeline {
		name := p.Name()

		for _, id := range p.Reads() {
			if err := checkField("tick.Validate", name, id); err != nil {
				return nil, err
			}
		}
		for _, id := range p.ReadsPrevious() {
			if err := checkField("tick.Validate", name, id); err != nil {
				return nil, err
			}
		}
		for _, w := range p.Writes() {
			if err := checkField("tick.Validate", name, w.Field); err != nil {
				return nil, err
			}
			if w.Mode == contract.WriteFull {
				if prior, dup := plan.FullWriter[w.Field]; dup {
					return nil, errs.New("tick.Validate", errs.ConfigPipeline,
						fmt.Sprintf("field %d has overlapping full writes from %q and %q", w.Field, prior, name))
				}
				plan.FullWriter[w.Field] = name
			}
		}

		if maxDt, ok := p.MaxDt(space); ok {
			if dt > maxDt {
				return nil, errs.New("tick.Validate", errs.StepDtOutOfRange,
					fmt.Sprintf("dt %v exceeds propagator %q max_dt %v", dt, name, maxDt))
			}
		}
	}

	return plan, nil
}
