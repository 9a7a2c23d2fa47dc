package flight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/atomic"
)

func TestGate_SerializesCallers(t *testing.T) {
	var g Gate
	ctx := context.Background()

	active := atomic.NewInt32(0)
	executions := atomic.NewInt32(0)
	const callers = 10

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(ctx, func(ctx context.Context) error {
				if n := active.Inc(); n != 1 {
					t.Errorf("execution intervals overlap: %d active", n)
				}
				time.Sleep(2 * time.Millisecond)
				active.Dec()
				executions.Inc()
				return nil
			})
			if err != nil {
				t.Errorf("do: %v", err)
			}
		}()
	}
	wg.Wait()

	// Concurrency is deduplicated, work is not: every call executed.
	if got := executions.Load(); got != callers {
		t.Fatalf("executed %d times, want %d", got, callers)
	}
}

func TestGate_FIFOAdmission(t *testing.T) {
	var g Gate
	ctx := context.Background()

	holding := make(chan struct{})
	releaseHolder := make(chan struct{})
	go func() {
		_ = g.Do(ctx, func(context.Context) error {
			close(holding)
			<-releaseHolder
			return nil
		})
	}()
	<-holding

	waitUntilQueued := func(n int) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for {
			g.mu.Lock()
			queued := len(g.waiters)
			g.mu.Unlock()
			if queued == n {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("queue never reached %d waiters", n)
			}
			time.Sleep(time.Millisecond)
		}
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = g.Do(ctx, func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		waitUntilQueued(i)
	}

	close(releaseHolder)
	wg.Wait()

	for i, got := range order {
		if got != i+1 {
			t.Fatalf("admission order %v, want [1 2 3]", order)
		}
	}
}

func TestGate_CancelWhileQueued(t *testing.T) {
	var g Gate

	holding := make(chan struct{})
	releaseHolder := make(chan struct{})
	go func() {
		_ = g.Do(context.Background(), func(context.Context) error {
			close(holding)
			<-releaseHolder
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Do(ctx, func(context.Context) error {
			ran = true
			return nil
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		g.mu.Lock()
		queued := len(g.waiters)
		g.mu.Unlock()
		if queued == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("caller never queued")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ran {
		t.Fatal("cancelled caller must not run")
	}

	// The abandoned slot must not wedge the gate.
	close(releaseHolder)
	if err := g.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("gate wedged after queued cancellation: %v", err)
	}
}

func TestGate_ReleasedOnFailure(t *testing.T) {
	var g Gate
	ctx := context.Background()
	boom := errors.New("boom")

	if err := g.Do(ctx, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped func error, got %v", err)
	}

	g.mu.Lock()
	held := g.held
	g.mu.Unlock()
	if held {
		t.Fatal("gate still held after failing call")
	}
}

func TestExclusive_PropagatesResult(t *testing.T) {
	calls := atomic.NewInt32(0)
	f := Exclusive(func(ctx context.Context) (int, error) {
		return int(calls.Inc()), nil
	})

	ctx := context.Background()
	v, err := f(ctx)
	if err != nil || v != 1 {
		t.Fatalf("got (%d, %v), want (1, nil)", v, err)
	}
	v, err = f(ctx)
	if err != nil || v != 2 {
		t.Fatalf("no result sharing: got (%d, %v), want (2, nil)", v, err)
	}
}
