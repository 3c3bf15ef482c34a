package streak

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by a run. Match them with errors.Is.
var (
	ErrLoadFailure        = errors.New("load failure")
	ErrEvaluationFailure  = errors.New("evaluation failure")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrResetSweepFailure  = errors.New("reset sweep failure")
)

// JobError ties an error kind to its cause and, for per-child failures, the
// child it happened to.
type JobError struct {
	Kind    error
	ChildID int64
	Err     error
}

func (e *JobError) Error() string {
	if e.ChildID != 0 {
		return fmt.Sprintf("%v: child %d: %v", e.Kind, e.ChildID, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *JobError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
