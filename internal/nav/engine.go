package nav

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/basket/stagehand/internal/flight"
	otelsh "github.com/basket/stagehand/internal/otel"
	"github.com/basket/stagehand/internal/progress"
)

// Pretransition is an operation awaited before a move mutates anything.
// Its failure aborts the move with the cursor unchanged.
type Pretransition func(ctx context.Context) error

// Config wires an Engine. Sequence and Surface are required; everything else
// has a usable zero value.
type Config struct {
	Sequence Sequence
	Surface  Surface

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *otelsh.Metrics

	// Indication overrides the progress thresholds (tests use short ones).
	Indication progress.Config

	// OnFinish is raised once when navigation passes the last stage.
	OnFinish func()

	// Background is the context detached navigation requests run under.
	// Defaults to context.Background().
	Background context.Context
}

// Engine holds the stage cursor and the active view and orchestrates
// forward/backward movement.
//
// At most one move may be in flight at a time: like the render loop it
// serves, the engine expects one logical mover. Detached requests
// (RequestNextScreen and friends) are serialized through an internal gate,
// so rapid repeated input queues instead of racing the cursor. Cursor and
// ActiveStage are safe to call from any goroutine — a render loop may sample
// them while a move runs on another goroutine.
type Engine struct {
	seq     Sequence
	surface Surface
	log     *slog.Logger
	tracer  trace.Tracer
	metrics *otelsh.Metrics
	ind     progress.Config
	bg      context.Context

	// mu guards cursor and active. The indication wrapper runs the move
	// loop on its own goroutine while the caller keeps rendering.
	mu     sync.Mutex
	cursor int
	active Stage

	onFinish   func()
	finishOnce sync.Once

	requests flight.Gate
}

// New builds an Engine positioned before the first stage; the initial
// NextScreen selects the initial screen.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(otelsh.TracerName)
	}
	bg := cfg.Background
	if bg == nil {
		bg = context.Background()
	}
	return &Engine{
		seq:      cfg.Sequence,
		surface:  cfg.Surface,
		log:      log,
		tracer:   tracer,
		metrics:  cfg.Metrics,
		ind:      cfg.Indication,
		bg:       bg,
		cursor:   -1,
		onFinish: cfg.OnFinish,
	}
}

// Cursor returns the current stage index. -1 means before the first stage,
// Len() means past the end.
func (e *Engine) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// ActiveStage returns the stage whose view is currently shown, or nil.
func (e *Engine) ActiveStage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) setCursor(c int) {
	e.mu.Lock()
	e.cursor = c
	e.mu.Unlock()
}

type moveResult struct {
	outcome Outcome
	view    View
}

// MoveScreen advances the cursor by delta and makes the view of the stage it
// lands on active, skipping stages that decline. The whole call is wrapped
// in the progress indication contract so slow pretransitions or skip
// scanning surface the indicator instead of a frozen UI.
//
// pretransition, when non-nil, is awaited first; its failure aborts the move
// before any cursor mutation. On any non-skip failure the cursor is restored
// to its pre-move position and the error propagates — the engine never
// settles on a stage whose view failed to build.
func (e *Engine) MoveScreen(ctx context.Context, delta int, pretransition Pretransition) (Outcome, error) {
	ctx, span := otelsh.StartSpan(ctx, e.tracer, "nav.move_screen",
		otelsh.AttrDelta.Int(delta),
		otelsh.AttrCursor.Int(e.Cursor()),
	)
	defer span.End()
	started := time.Now()

	res, err := progress.Wait(ctx, e.ind,
		func(ctx context.Context) (moveResult, error) {
			return e.move(ctx, delta, pretransition)
		},
		progress.Indicator{
			Show: e.surface.ShowIndicator,
			Hide: e.surface.HideIndicator,
		})

	if e.metrics != nil {
		e.metrics.MoveDuration.Record(ctx, time.Since(started).Seconds())
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.MoveFailures.Add(ctx, 1)
		}
		span.SetAttributes(otelsh.AttrOutcome.String(Aborted.String()))
		return Aborted, err
	}
	span.SetAttributes(otelsh.AttrOutcome.String(res.outcome.String()))

	switch res.outcome {
	case Settled:
		e.surface.SetActiveView(res.view)
		if e.metrics != nil {
			e.metrics.ScreensShown.Add(ctx, 1)
		}
	case Finished:
		e.finishOnce.Do(func() {
			e.log.Info("navigation finished")
			if e.onFinish != nil {
				e.onFinish()
			}
		})
	}
	return res.outcome, nil
}

// move is the unwrapped move loop. It mutates the cursor and is only ever
// entered once at a time.
func (e *Engine) move(ctx context.Context, delta int, pretransition Pretransition) (moveResult, error) {
	if pretransition != nil {
		if err := pretransition(ctx); err != nil {
			return moveResult{}, &PretransitionError{Err: err}
		}
	}

	// Signal completion to the departing stage before moving.
	e.mu.Lock()
	old := e.active
	e.active = nil
	e.mu.Unlock()
	if old != nil {
		if err := old.OnLeave(ctx); err != nil {
			e.log.Warn("stage on-leave hook failed", "stage", old.Name(), "error", err)
		}
	}

	origin := e.Cursor()
	cursor := origin
	for {
		cursor += delta
		e.setCursor(cursor)
		if cursor < 0 {
			e.setCursor(origin)
			return moveResult{outcome: NoMove}, nil
		}
		if length := e.seq.Len(); cursor >= length {
			e.setCursor(length)
			return moveResult{outcome: Finished}, nil
		}

		stage := e.seq.At(cursor)
		view, err := e.buildView(ctx, stage)
		switch {
		case errors.Is(err, ErrSkipStage):
			e.log.Debug("skipping screen", "stage", stage.Name())
			if e.metrics != nil {
				e.metrics.StagesSkipped.Add(ctx, 1)
			}
			continue
		case err != nil:
			e.setCursor(origin)
			return moveResult{}, &ViewError{Stage: stage.Name(), Err: err}
		}

		e.mu.Lock()
		e.active = stage
		e.mu.Unlock()
		e.log.Debug("screen shown", "stage", stage.Name(), "cursor", cursor)
		return moveResult{outcome: Settled, view: view}, nil
	}
}

func (e *Engine) buildView(ctx context.Context, stage Stage) (View, error) {
	ctx, span := otelsh.StartSpan(ctx, e.tracer, "nav.make_view",
		otelsh.AttrStage.String(stage.Name()),
	)
	defer span.End()
	return stage.MakeView(ctx)
}

// NextScreen moves forward one stage, awaiting pretransition first.
func (e *Engine) NextScreen(ctx context.Context, pretransition Pretransition) (Outcome, error) {
	return e.MoveScreen(ctx, 1, pretransition)
}

// PrevScreen moves back one stage.
func (e *Engine) PrevScreen(ctx context.Context) (Outcome, error) {
	return e.MoveScreen(ctx, -1, nil)
}

// SelectInitialScreen performs the first forward move from before the first
// stage.
func (e *Engine) SelectInitialScreen(ctx context.Context) (Outcome, error) {
	return e.NextScreen(ctx, nil)
}

// RequestNextScreen schedules a forward move as a detached background unit
// of work, redrawing afterward when redraw is true. Overlapping requests are
// admitted one at a time in arrival order.
func (e *Engine) RequestNextScreen(pretransition Pretransition, redraw bool) {
	e.request(1, pretransition, redraw)
}

// RequestPrevScreen schedules a backward move as a detached background unit
// of work.
func (e *Engine) RequestPrevScreen(redraw bool) {
	e.request(-1, nil, redraw)
}

// RequestRedraw schedules a redraw of the surface.
func (e *Engine) RequestRedraw() {
	go e.surface.Redraw()
}

func (e *Engine) request(delta int, pretransition Pretransition, redraw bool) {
	go func() {
		err := e.requests.Do(e.bg, func(ctx context.Context) error {
			_, err := e.MoveScreen(ctx, delta, pretransition)
			return err
		})
		if err != nil {
			e.log.Error("background move failed", "delta", delta, "error", err)
			return
		}
		if redraw {
			e.surface.Redraw()
		}
	}()
}
