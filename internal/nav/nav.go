// Package nav steps an ordered, dynamically filtered sequence of
// configuration stages forward and backward. It owns the cursor and the
// active view, absorbs stages that decline to participate, rolls the cursor
// back on failure, and keeps slow transitions from flickering the UI by
// waiting through the progress indication contract.
package nav

import "context"

// View is whatever a stage builds for display. The engine treats it as
// opaque and hands it to the surface.
type View interface{}

// Stage is one step of the flow. Implementations are read-only from the
// engine's point of view.
type Stage interface {
	// Name identifies the stage in logs and spans.
	Name() string

	// MakeView builds the stage's view. Returning ErrSkipStage (directly or
	// wrapped) means "this stage does not apply right now"; it is absorbed
	// by the navigation loop, never treated as a failure. Any other error
	// aborts the move.
	MakeView(ctx context.Context) (View, error)

	// OnLeave is invoked when navigation departs the stage.
	OnLeave(ctx context.Context) error
}

// Sequence is a read-only view over the stage list. It is owned externally
// and may change length and content between calls; the engine re-queries it
// on every step rather than snapshotting.
type Sequence interface {
	Len() int
	At(i int) Stage
}

// Stages is a Sequence over a slice.
type Stages []Stage

func (s Stages) Len() int       { return len(s) }
func (s Stages) At(i int) Stage { return s[i] }

// Surface is the rendering side the engine drives. All calls are
// fire-and-forget side effects.
type Surface interface {
	ShowIndicator()
	HideIndicator()
	SetActiveView(v View)
	Redraw()
}

// Outcome reports how a move ended.
type Outcome int

const (
	// Aborted means the move failed; the cursor was restored to its
	// pre-move position. Always accompanied by an error.
	Aborted Outcome = iota

	// Settled means the cursor landed on a stage and its view is active.
	Settled

	// NoMove means the move ran off the front of the sequence; the cursor
	// was restored and nothing changed.
	NoMove

	// Finished means the move ran past the last stage; the flow is over.
	Finished
)

func (o Outcome) String() string {
	switch o {
	case Aborted:
		return "aborted"
	case Settled:
		return "settled"
	case NoMove:
		return "no-move"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}
