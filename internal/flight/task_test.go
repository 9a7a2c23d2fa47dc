package flight_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/basket/stagehand/internal/flight"
	"go.uber.org/atomic"
)

// blockingFactory returns a factory that counts invocations and blocks until
// release is closed or its context is cancelled.
func blockingFactory(calls *atomic.Int32, release <-chan struct{}) flight.Factory {
	return func(ctx context.Context) error {
		calls.Inc()
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func TestRejectIfRunning_OverlappingStarts(t *testing.T) {
	calls := atomic.NewInt32(0)
	release := make(chan struct{})
	sit := flight.New(blockingFactory(calls, release), flight.RejectIfRunning)

	ctx := context.Background()
	const starters = 10

	var wg sync.WaitGroup
	launched := atomic.NewInt32(0)
	rejected := atomic.NewInt32(0)
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := sit.Start(ctx); {
			case err == nil:
				launched.Inc()
			case errors.Is(err, flight.ErrAlreadyRunning):
				rejected.Inc()
			default:
				t.Errorf("unexpected start error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := launched.Load(); got != 1 {
		t.Fatalf("expected exactly 1 launch, got %d", got)
	}
	if got := rejected.Load(); got != starters-1 {
		t.Fatalf("expected %d rejections, got %d", starters-1, got)
	}

	// The running task was not disturbed by the rejected calls.
	if sit.Done() {
		t.Fatal("task should still be running")
	}
	close(release)
	if err := sit.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("factory invoked %d times, want 1", got)
	}
}

func TestCancelAndRestart_EachStartLaunches(t *testing.T) {
	calls := atomic.NewInt32(0)
	release := make(chan struct{})
	sit := flight.New(blockingFactory(calls, release), flight.CancelAndRestart)

	ctx := context.Background()
	const starts = 4
	for i := 0; i < starts; i++ {
		if err := sit.Start(ctx); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}

	// N starts on a busy instance yield N factory invocations.
	deadline := time.After(2 * time.Second)
	for calls.Load() != starts {
		select {
		case <-deadline:
			t.Fatalf("factory invoked %d times, want %d", calls.Load(), starts)
		case <-time.After(time.Millisecond):
		}
	}

	close(release)
	if err := sit.Wait(ctx); err != nil {
		t.Fatalf("wait after restarts: %v", err)
	}
}

func TestWait_BeforeAnyStart(t *testing.T) {
	calls := atomic.NewInt32(0)
	sit := flight.New(func(ctx context.Context) error {
		calls.Inc()
		return nil
	}, flight.RejectIfRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sit.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Fatalf("factory invoked %d times before any start", got)
	}
}

func TestDone_QuiescentStates(t *testing.T) {
	sit := flight.New(func(ctx context.Context) error { return nil }, flight.RejectIfRunning)

	// Nothing has ever started: nothing is outstanding.
	if !sit.Done() {
		t.Fatal("expected Done before any start")
	}

	ctx := context.Background()
	if err := sit.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sit.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !sit.Done() {
		t.Fatal("expected Done after completion")
	}
}

func TestWait_FollowsRestartedRun(t *testing.T) {
	calls := atomic.NewInt32(0)
	release := make(chan struct{})
	sit := flight.New(blockingFactory(calls, release), flight.CancelAndRestart)

	ctx := context.Background()
	if err := sit.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- sit.Wait(ctx) }()

	// Restart cancels the first run; the waiter must follow the second.
	if err := sit.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
	close(release)

	select {
	case err := <-waitErr:
		if err != nil {
			t.Fatalf("wait across restart: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter did not follow the restarted run")
	}
}

func TestCancel(t *testing.T) {
	calls := atomic.NewInt32(0)
	sit := flight.New(blockingFactory(calls, nil), flight.RejectIfRunning)

	// No-op when idle.
	sit.Cancel()
	if !sit.Done() {
		t.Fatal("idle cancel should leave nothing outstanding")
	}

	ctx := context.Background()
	if err := sit.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	sit.Cancel()
	if err := sit.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation outcome, got %v", err)
	}
	if !sit.Done() {
		t.Fatal("expected Done after cancellation")
	}
}

func TestStart_FailedRunAllowsRestart(t *testing.T) {
	boom := errors.New("boom")
	calls := atomic.NewInt32(0)
	sit := flight.New(func(ctx context.Context) error {
		if calls.Inc() == 1 {
			return boom
		}
		return nil
	}, flight.RejectIfRunning)

	ctx := context.Background()
	if err := sit.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sit.Wait(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected first run failure, got %v", err)
	}

	// Terminal state frees the instance for a new run, even under reject.
	if err := sit.Start(ctx); err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
	if err := sit.Wait(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
