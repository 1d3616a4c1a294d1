// Package lifecycle forces early flushes of the pending queue when the
// process or a view is going away, and drives periodic organic syncs.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/marcus/feedsync/internal/clock"
)

// DefaultTimeout bounds an exit flush
const DefaultTimeout = 5 * time.Second

// FlushFunc ships whatever is queued
type FlushFunc func(ctx context.Context) error

// Flush runs fn bounded by timeout. It is best effort: a request that does
// not finish in time is abandoned and its actions stay queued on disk for
// the next process. Errors are logged and returned.
func Flush(fn FlushFunc, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := fn(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("lifecycle: flush timed out, actions remain queued", "timeout", timeout)
	default:
		slog.Warn("lifecycle: flush failed, actions remain queued", "err", err)
	}
	return err
}

// OnDone flushes once ctx ends. The returned channel closes after the flush.
func OnDone(ctx context.Context, fn FlushFunc, timeout time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		Flush(fn, timeout)
	}()
	return done
}

// OnSignal flushes when one of sigs arrives (SIGINT and SIGTERM when none are
// given) and then delivers the signal on the returned channel so the caller
// can exit. stop releases the handler without flushing.
func OnSignal(ctx context.Context, fn FlushFunc, timeout time.Duration, sigs ...os.Signal) (caught <-chan os.Signal, stop func()) {
	if len(sigs) == 0 {
		sigs = defaultSignals
	}
	in := make(chan os.Signal, 1)
	out := make(chan os.Signal, 1)
	signal.Notify(in, sigs...)

	quit := make(chan struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() {
			signal.Stop(in)
			close(quit)
		})
	}

	go func() {
		select {
		case sig := <-in:
			slog.Debug("lifecycle: signal received, flushing", "signal", sig)
			signal.Stop(in)
			Flush(fn, timeout)
			out <- sig
		case <-ctx.Done():
			stop()
		case <-quit:
		}
	}()
	return out, stop
}

// Ticker calls fn every interval until ctx ends
func Ticker(ctx context.Context, clk clock.Clock, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	if clk == nil {
		clk = clock.Real()
	}

	var (
		mu    sync.Mutex
		timer clock.Timer
	)
	var tick func()
	tick = func() {
		if ctx.Err() != nil {
			return
		}
		fn()
		mu.Lock()
		if ctx.Err() == nil {
			timer = clk.AfterFunc(interval, tick)
		}
		mu.Unlock()
	}

	mu.Lock()
	timer = clk.AfterFunc(interval, tick)
	mu.Unlock()

	context.AfterFunc(ctx, func() {
		mu.Lock()
		timer.Stop()
		mu.Unlock()
	})
}
