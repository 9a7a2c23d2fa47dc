package flight

import (
	"context"
	"sync"
)

// Gate serializes callers: at most one holder at a time, queued callers are
// admitted in FIFO arrival order. Unlike SingleInstanceTask it deduplicates
// concurrency, not work — every caller eventually runs, nothing is rejected
// and no result is shared.
//
// The zero value is ready to use.
type Gate struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// acquire blocks until the caller holds the gate or ctx expires. Admission
// happens in arrival order. The held check and the mark are under one lock
// acquisition, so two callers can never both observe the gate free.
func (g *Gate) acquire(ctx context.Context) error {
	g.mu.Lock()
	if !g.held {
		g.held = true
		g.mu.Unlock()
		return nil
	}
	grant := make(chan struct{})
	g.waiters = append(g.waiters, grant)
	g.mu.Unlock()

	select {
	case <-grant:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		for i, w := range g.waiters {
			if w == grant {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				g.mu.Unlock()
				return ctx.Err()
			}
		}
		g.mu.Unlock()
		// The grant raced the cancellation: we already hold the gate, so
		// pass it on before giving up.
		<-grant
		g.release()
		return ctx.Err()
	}
}

// release hands the gate to the oldest waiter, or frees it when nobody is
// queued.
func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.waiters) > 0 {
		grant := g.waiters[0]
		g.waiters = g.waiters[1:]
		close(grant) // holder count stays 1; ownership transfers
		return
	}
	g.held = false
}

// Do runs f while holding the gate. The gate is released on every exit path
// and f's outcome is returned unchanged. Callers that arrive while the gate
// is held queue up and run f fresh, one at a time, in arrival order.
func (g *Gate) Do(ctx context.Context, f func(context.Context) error) error {
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.release()
	return f(ctx)
}

// Exclusive wraps f into a function with the identical signature whose
// concurrent invocations are serialized through a dedicated Gate.
func Exclusive[T any](f func(context.Context) (T, error)) func(context.Context) (T, error) {
	var g Gate
	return func(ctx context.Context) (T, error) {
		if err := g.acquire(ctx); err != nil {
			var zero T
			return zero, err
		}
		defer g.release()
		return f(ctx)
	}
}
