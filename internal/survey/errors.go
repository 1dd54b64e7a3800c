package survey

import (
	"errors"
	"fmt"
)

// ErrNoImages is returned when Run is called without any images. Empty
// surveys are rejected at the pipeline boundary rather than producing an
// empty report.
var ErrNoImages = errors.New("survey: at least one image is required")

// StageError tags a collaborator failure with the pipeline stage it occurred
// in and carries the partial state accumulated so far for diagnostics.
type StageError struct {
	Stage string
	State *State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("survey stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageError wraps err, snapshotting the state for the caller.
func stageError(stage string, st *State, err error) *StageError {
	return &StageError{Stage: stage, State: st, Err: err}
}
