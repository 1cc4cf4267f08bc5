package orchestrator

import "errors"

// Sentinel errors the driver maps into the lab's terminal `error` field.
var (
	ErrPlannerTurnsExhausted = errors.New("planner turn budget exhausted")
	ErrUserReplyTimeout      = errors.New("user did not respond in time")
	ErrPipelineTimeout       = errors.New("pipeline timeout exceeded")
	ErrStageTimeout          = errors.New("stage timeout exceeded")
	ErrPlannerDialogTimeout  = errors.New("planner dialog timeout exceeded")
	ErrValidatorTimeout      = errors.New("validator poll timeout exceeded")
	ErrStageRetriesExhausted = errors.New("stage retry budget exhausted")
	ErrUnparseableOutput     = errors.New("could not parse stage output")
	ErrUnknownRootCause      = errors.New("rca returned an unknown or invalid root cause")
	ErrCancelled             = errors.New("pipeline cancelled")
)

// StageError wraps a failure that occurred while running a specific stage,
// so the driver's top-level error message always names where things went
// wrong (mirrors the lab's `error` field requirement in §4.3).
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }
