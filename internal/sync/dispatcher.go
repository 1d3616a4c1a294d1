package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/marcus/feedsync/internal/clock"
	"github.com/marcus/feedsync/internal/models"
)

// Syncer runs one batch round
type Syncer interface {
	Sync(ctx context.Context) (RoundResult, error)
}

// State is a point-in-time view of the dispatcher
type State struct {
	Status     models.SyncStatus
	Attempt    int // failed rounds since the last success or new action
	LastErr    error
	LastSyncAt time.Time
	LastResult RoundResult
}

type timerKind int

const (
	timerNone timerKind = iota
	timerCountdown
	timerRetry
)

// Dispatcher coalesces bursts of queued actions into single batch rounds.
// A countdown starts on the first Notify and restarts on every later one;
// when it fires the syncer runs. Failed rounds are retried on the policy's
// backoff until it is exhausted. At most one round runs at a time.
type Dispatcher struct {
	syncer Syncer
	clk    clock.Clock
	quiet  time.Duration
	policy RetryPolicy

	runMu gosync.Mutex // held for the duration of a round

	mu        gosync.Mutex
	timer     clock.Timer
	kind      timerKind
	gen       int
	inFlight  bool
	rerun     bool
	closed    bool
	state     State
	observers []func(models.SyncStatus)
}

// NewDispatcher creates an idle dispatcher. clk may be nil for the real clock.
func NewDispatcher(s Syncer, clk clock.Clock, quiet time.Duration, policy RetryPolicy) *Dispatcher {
	if clk == nil {
		clk = clock.Real()
	}
	return &Dispatcher{
		syncer: s,
		clk:    clk,
		quiet:  quiet,
		policy: policy,
		state:  State{Status: models.SyncIdle},
	}
}

// OnStatus registers fn to receive every status transition
func (d *Dispatcher) OnStatus(fn func(models.SyncStatus)) {
	d.mu.Lock()
	d.observers = append(d.observers, fn)
	d.mu.Unlock()
}

// Status returns the current status
func (d *Dispatcher) Status() models.SyncStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Status
}

// State returns a copy of the dispatcher state
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Notify reports a new queued action. It (re)starts the countdown and resets
// the retry attempt counter.
func (d *Dispatcher) Notify() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.state.Attempt = 0
	d.armLocked(d.quiet, timerCountdown)
	var emit []func(models.SyncStatus)
	if !d.inFlight {
		emit = d.setStatusLocked(models.SyncCountingDown)
	}
	d.mu.Unlock()

	notify(emit, models.SyncCountingDown)
}

// FlushNow cancels any pending timer, waits for an in-flight round and runs
// a round immediately.
func (d *Dispatcher) FlushNow(ctx context.Context) error {
	d.mu.Lock()
	d.stopLocked()
	d.rerun = false
	d.mu.Unlock()

	return d.run(ctx)
}

// Close stops all timers. A round already running is not interrupted.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.stopLocked()
	d.mu.Unlock()
}

func (d *Dispatcher) fire(gen int) {
	d.mu.Lock()
	if gen != d.gen || d.closed {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.kind = timerNone
	if d.inFlight {
		d.rerun = true
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	if err := d.run(context.Background()); err != nil {
		slog.Debug("dispatcher: round failed", "err", err)
	}
}

func (d *Dispatcher) run(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	d.inFlight = true
	emit := d.setStatusLocked(models.SyncSyncing)
	d.mu.Unlock()
	notify(emit, models.SyncSyncing)

	res, err := d.syncer.Sync(ctx)

	d.mu.Lock()
	d.inFlight = false
	d.state.LastResult = res
	next := models.SyncSuccess
	if err != nil {
		next = models.SyncError
		d.state.LastErr = err
		d.state.Attempt++
		switch {
		case d.closed || d.kind == timerCountdown:
		case d.rerun:
		case d.policy.Allows(d.state.Attempt):
			delay := d.policy.Delay(d.state.Attempt)
			slog.Debug("dispatcher: retry scheduled", "attempt", d.state.Attempt, "delay", delay)
			d.armLocked(delay, timerRetry)
		default:
			slog.Warn("dispatcher: retries exhausted, actions stay queued", "attempts", d.state.Attempt, "err", err)
		}
	} else {
		d.state.LastErr = nil
		d.state.Attempt = 0
		d.state.LastSyncAt = d.clk.Now()
		if d.kind == timerRetry {
			d.stopLocked()
		}
	}
	if d.rerun {
		d.rerun = false
		if !d.closed && d.timer == nil {
			d.armLocked(d.quiet, timerCountdown)
		}
	}
	emit = d.setStatusLocked(next)
	counting := d.kind == timerCountdown
	if counting {
		d.state.Status = models.SyncCountingDown
	}
	d.mu.Unlock()

	notify(emit, next)
	if counting {
		notify(emit, models.SyncCountingDown)
	}
	return err
}

func (d *Dispatcher) armLocked(delay time.Duration, kind timerKind) {
	d.stopLocked()
	d.gen++
	gen := d.gen
	d.kind = kind
	d.timer = d.clk.AfterFunc(delay, func() { d.fire(gen) })
}

func (d *Dispatcher) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.kind = timerNone
	d.gen++
}

// setStatusLocked records s and returns the observers to call after unlocking
func (d *Dispatcher) setStatusLocked(s models.SyncStatus) []func(models.SyncStatus) {
	d.state.Status = s
	return append([]func(models.SyncStatus){}, d.observers...)
}

func notify(fns []func(models.SyncStatus), s models.SyncStatus) {
	for _, fn := range fns {
		fn(s)
	}
}
