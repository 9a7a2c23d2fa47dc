package nav

import (
	"errors"
	"fmt"
)

// ErrSkipStage is the control signal a stage returns from MakeView to decline
// participation right now. Like fs.SkipDir it travels the error channel but
// is not a failure; the navigation loop absorbs it silently.
var ErrSkipStage = errors.New("nav: skip stage")

// PretransitionError reports that the awaitable passed to MoveScreen failed
// before any cursor mutation.
type PretransitionError struct {
	Err error
}

func (e *PretransitionError) Error() string {
	return fmt.Sprintf("nav: pretransition: %v", e.Err)
}

func (e *PretransitionError) Unwrap() error { return e.Err }

// ViewError reports that building a stage's view failed. The cursor was
// restored to its pre-move position.
type ViewError struct {
	Stage string
	Err   error
}

func (e *ViewError) Error() string {
	return fmt.Sprintf("nav: build view for %q: %v", e.Stage, e.Err)
}

func (e *ViewError) Unwrap() error { return e.Err }
