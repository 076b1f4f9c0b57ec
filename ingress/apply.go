package ingress

import (
	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/errs"
)

// ApplyContext is the narrow view of a staging tick a CommandApplier
// needs: the write arena to mutate and the space to resolve coordinates
// against, plus a hook for recording parameter changes.
type ApplyContext struct {
	Write        *arena.WriteArena
	Space        contract.Space
	SetParameter func(key string, value float64)
}

// CommandApplier applies one drained command to the staging tick.
// Implementations decide which Kind values they understand; an
// unrecognized Kind should return ok=false with an
// errs.IngressUnsupportedCommand error so the caller can emit the
// correct rejection receipt. This is deliberately an interface, not a
// fixed switch, so new command kinds can be wired in either per-world
// (construct a WorldConfig with a custom Applier) or by rebuilding a
// shared one, matching either framing of the open question on
// unsupported-command configurability.
type CommandApplier interface {
	Apply(ctx ApplyContext, cmd Command) (applied bool, err error)
}

// DefaultApplier understands KindSetParameter and KindSetField. Any
// other Kind is reported as unsupported.
type DefaultApplier struct{}

// Apply implements CommandApplier.
func (DefaultApplier) Apply(ctx ApplyContext, cmd Command) (bool, error) {
	switch cmd.Kind {
	case KindSetParameter:
		ctx.SetParameter(cmd.ParameterKey, cmd.ParameterValue)
		return true, nil

	case KindSetField:
		rank, ok := ctx.Space.CanonicalRank(cmd.Coord)
		if !ok {
			return false, nil
		}
		meta, ok := ctx.Write.Meta(cmd.FieldID)
		if !ok {
			return false, errs.New("DefaultApplier.Apply", errs.IngressNotApplied, "unknown field id")
		}
		slice, err := ctx.Write.Write(cmd.FieldID)
		if err != nil {
			return false, err
		}
		idx := rank * meta.Components
		if idx < 0 || idx >= len(slice) {
			return false, nil
		}
		slice[idx] = cmd.FieldValue
		return true, nil

	default:
		return false, errs.New("DefaultApplier.Apply", errs.IngressUnsupportedCommand, "command kind not understood by DefaultApplier")
	}
}
