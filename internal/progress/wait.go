// Package progress wraps waits on operations of unknown duration with a
// progress indication contract: block silently for at most a moment, and once
// an indicator is shown keep it up long enough that the UI does not flicker.
package progress

import (
	"context"
	"time"
)

const (
	// DefaultMaxBlockTime is how long a wait may block the UI before an
	// indication of progress is shown.
	DefaultMaxBlockTime = 100 * time.Millisecond

	// DefaultMinShowTime is how long a shown indication stays visible, even
	// when the operation finishes sooner.
	DefaultMinShowTime = time.Second
)

// Config carries the two timing thresholds. Zero fields fall back to the
// defaults.
type Config struct {
	MaxBlockTime time.Duration
	MinShowTime  time.Duration
}

func (c Config) maxBlock() time.Duration {
	if c.MaxBlockTime > 0 {
		return c.MaxBlockTime
	}
	return DefaultMaxBlockTime
}

func (c Config) minShow() time.Duration {
	if c.MinShowTime > 0 {
		return c.MinShowTime
	}
	return DefaultMinShowTime
}

// Indicator receives the show/hide callbacks for one wait. Hide may be nil
// for persistent affordances (an ambient activity line that the next redraw
// replaces); the minimum display time is honored either way.
type Indicator struct {
	Show func()
	Hide func()
}

type outcome[T any] struct {
	v   T
	err error
}

// Wait runs op and returns its result. If op finishes within MaxBlockTime
// neither Show nor Hide is ever called. Otherwise Show is invoked once, kept
// for at least MinShowTime from first display, then Hide is invoked. The
// operation's result or failure — cancellation included — is only surfaced
// after that bookkeeping completes.
//
// Show and Hide run on the calling goroutine, so a caller that owns the
// render loop keeps owning it.
func Wait[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error), ind Indicator) (T, error) {
	results := make(chan outcome[T], 1)
	go func() {
		v, err := op(ctx)
		results <- outcome[T]{v: v, err: err}
	}()

	blockTimer := time.NewTimer(cfg.maxBlock())
	defer blockTimer.Stop()

	select {
	case res := <-results:
		return res.v, res.err
	case <-blockTimer.C:
	}

	if ind.Show != nil {
		ind.Show()
	}
	shownAt := time.Now()

	res := <-results

	// Hold the indication up to the minimum display time even when the
	// operation failed or was cancelled underneath it.
	if remaining := cfg.minShow() - time.Since(shownAt); remaining > 0 {
		time.Sleep(remaining)
	}
	if ind.Hide != nil {
		ind.Hide()
	}
	return res.v, res.err
}

// WaitCancelable is the modal variant: the operation runs under its own
// cancellable context and Show receives the cancel function, so closing the
// dialog cancels the operation. Cancellation surfaces as the operation's own
// error after the usual show/hide bookkeeping.
func WaitCancelable[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error), show func(cancel context.CancelFunc), hide func()) (T, error) {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ind := Indicator{Hide: hide}
	if show != nil {
		ind.Show = func() { show(cancel) }
	}
	return Wait(opCtx, cfg, op, ind)
}
