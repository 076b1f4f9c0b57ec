// Package errs provides the structured error taxonomy shared across the
// simulation core: step, propagator, ingress, observation and
// configuration failures all carry a stable Kind so callers can branch on
// category without string matching.
package errs

import "errors"

// Kind is a stable error category. Values never change meaning once
// assigned; new kinds are appended, never renumbered.
type Kind string

const (
	// Step kinds.
	StepPropagatorFailed Kind = "step.propagator_failed"
	StepAllocationFailed Kind = "step.allocation_failed"
	StepTickRollback     Kind = "step.tick_rollback"
	StepTickDisabled     Kind = "step.tick_disabled"
	StepDtOutOfRange     Kind = "step.dt_out_of_range"
	StepShuttingDown     Kind = "step.shutting_down"

	// Propagator kinds.
	PropagatorExecutionFailed     Kind = "propagator.execution_failed"
	PropagatorNaNDetected         Kind = "propagator.nan_detected"
	PropagatorConstraintViolation Kind = "propagator.constraint_violation"

	// Ingress kinds.
	IngressQueueFull          Kind = "ingress.queue_full"
	IngressStale              Kind = "ingress.stale"
	IngressTickRollback       Kind = "ingress.tick_rollback"
	IngressTickDisabled       Kind = "ingress.tick_disabled"
	IngressShuttingDown       Kind = "ingress.shutting_down"
	IngressUnsupportedCommand Kind = "ingress.unsupported_command"
	IngressNotApplied         Kind = "ingress.not_applied"

	// Obs kinds.
	ObsPlanInvalidated       Kind = "obs.plan_invalidated"
	ObsTimeoutWaitingForTick Kind = "obs.timeout_waiting_for_tick"
	ObsNotAvailable          Kind = "obs.not_available"
	ObsInvalidComposition    Kind = "obs.invalid_composition"
	ObsExecutionFailed       Kind = "obs.execution_failed"
	ObsInvalidSpec           Kind = "obs.invalid_spec"
	ObsWorkerStalled         Kind = "obs.worker_stalled"

	// Config kinds.
	ConfigPipeline         Kind = "config.pipeline"
	ConfigArena            Kind = "config.arena"
	ConfigEmptySpace       Kind = "config.empty_space"
	ConfigNoFields         Kind = "config.no_fields"
	ConfigRingBufferTooSmall Kind = "config.ring_buffer_too_small"
	ConfigIngressQueueZero Kind = "config.ingress_queue_zero"
	ConfigInvalidTickRate  Kind = "config.invalid_tick_rate"
	ConfigWorkerCountZero  Kind = "config.worker_count_zero"
)

// Error is a structured error carrying the operation that failed, its
// stable Kind, a human-readable message and an optional wrapped cause.
type Error struct {
	Op    string
	Kind  Kind
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Op != "" {
		if e.Msg != "" {
			return "simcore: " + e.Op + ": " + e.Msg
		}
		return "simcore: " + e.Op + ": " + string(e.Kind)
	}
	if e.Msg != "" {
		return "simcore: " + e.Msg
	}
	return "simcore: " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparisons by Kind, ignoring Op/Msg/Inner.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// New creates a structured error for the given operation and kind.
func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// Wrap wraps an existing error under a kind, preserving it as the cause.
func Wrap(op string, kind Kind, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Msg: inner.Error(), Inner: inner}
}

// IsKind reports whether err is (or wraps) a structured Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
