// Package flight provides single-flight coordination primitives for
// long-running operations: SingleInstanceTask guarantees at most one live
// instance of an operation, Gate serializes concurrent callers of one.
package flight

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// ErrAlreadyRunning is returned by Start under RejectIfRunning when the
// previous task has not reached a terminal state yet.
var ErrAlreadyRunning = errors.New("flight: task already running")

// State describes where a task handle is in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateCancelled:
		return "CANCELLED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state is one a task never leaves.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Policy selects what Start does when the previous task is still running.
type Policy int

const (
	// RejectIfRunning makes Start fail with ErrAlreadyRunning, leaving the
	// running task untouched.
	RejectIfRunning Policy = iota

	// CancelAndRestart makes Start best-effort-cancel the running task and
	// immediately launch a fresh one.
	CancelAndRestart
)

// Factory builds one run of the underlying operation. It must honor ctx
// cancellation; cancellation is cooperative and only observed at the
// factory's next ctx check.
type Factory func(ctx context.Context) error

// Handle identifies one launched run of a task. A SingleInstanceTask owns at
// most one live handle at a time.
type Handle struct {
	id     string
	state  *atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
	err    error // written once, before done is closed
}

func newHandle(cancel context.CancelFunc) *Handle {
	return &Handle{
		id:     uuid.NewString(),
		state:  atomic.NewInt32(int32(StateRunning)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the handle's identity.
func (h *Handle) ID() string { return h.id }

// State returns the handle's current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Done is closed when the run has unwound, regardless of outcome.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the run's outcome. Only meaningful after Done is closed.
func (h *Handle) Err() error { return h.err }

// settle moves the handle to a terminal state unless a restart already
// marked it cancelled.
func (h *Handle) settle(err error) {
	switch {
	case err == nil:
		h.state.CompareAndSwap(int32(StateRunning), int32(StateCompleted))
	case errors.Is(err, context.Canceled):
		h.state.Store(int32(StateCancelled))
	default:
		h.state.CompareAndSwap(int32(StateRunning), int32(StateFailed))
	}
	h.err = err
	close(h.done)
}

// SingleInstanceTask wraps a Factory so that at most one run exists at a
// time. The zero value is not usable; construct with New.
type SingleInstanceTask struct {
	mu      sync.Mutex
	factory Factory
	policy  Policy
	handle  *Handle

	started     chan struct{}
	startedOnce sync.Once
}

// New wraps factory with the given restart policy. No run is launched until
// the first Start call.
func New(factory Factory, policy Policy) *SingleInstanceTask {
	return &SingleInstanceTask{
		factory: factory,
		policy:  policy,
		started: make(chan struct{}),
	}
}

// Start launches a new run and returns without awaiting its completion. The
// idle check and the launch happen under one lock acquisition, so two
// concurrent Starts can never both observe idle. If a run is in flight the
// policy decides: RejectIfRunning fails with ErrAlreadyRunning,
// CancelAndRestart requests cancellation of the old run and launches a new
// one immediately (without waiting for the old run to unwind).
//
// The run's context is derived from ctx; cancelling ctx cancels the run.
func (t *SingleInstanceTask) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old := t.handle; old != nil && old.State() == StateRunning {
		if t.policy == RejectIfRunning {
			return ErrAlreadyRunning
		}
		// Mark first so nobody observes two Running handles, then request
		// cancellation; the old factory unwinds at its next suspension point.
		old.state.Store(int32(StateCancelled))
		old.cancel()
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := newHandle(cancel)
	t.handle = h
	t.startedOnce.Do(func() { close(t.started) })

	go func() {
		h.settle(t.factory(runCtx))
		cancel()
	}()
	return nil
}

// Wait blocks until the current (or, across restarts, most recent) run
// completes and returns its outcome. Called before any Start it blocks until
// ctx expires without ever invoking the factory. A waiter that observes a
// cancelled run follows the replacement run when one was started.
func (t *SingleInstanceTask) Wait(ctx context.Context) error {
	select {
	case <-t.started:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		t.mu.Lock()
		h := t.handle
		t.mu.Unlock()

		select {
		case <-h.Done():
		case <-ctx.Done():
			return ctx.Err()
		}

		t.mu.Lock()
		replaced := t.handle != h
		t.mu.Unlock()
		if replaced {
			continue
		}
		return h.Err()
	}
}

// Done reports, without blocking, whether the most recent run reached a
// terminal state. It is also true when nothing has ever started: an instance
// that never ran has nothing outstanding.
func (t *SingleInstanceTask) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handle == nil {
		return true
	}
	return t.handle.State().Terminal()
}

// Cancel requests cancellation of the current run. It is a no-op when idle
// and does not wait for the run to unwind.
func (t *SingleInstanceTask) Cancel() {
	t.mu.Lock()
	h := t.handle
	t.mu.Unlock()
	if h != nil && h.State() == StateRunning {
		h.cancel()
	}
}
