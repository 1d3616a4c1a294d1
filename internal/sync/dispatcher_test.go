package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/marcus/feedsync/internal/clock"
	"github.com/marcus/feedsync/internal/models"
	"github.com/marcus/feedsync/internal/syncclient"
)

const quiet = 3 * time.Second

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2, MaxDelay: 10 * time.Second}
}

func newTestDispatcher(t *testing.T, h *harness) (*Dispatcher, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	d := NewDispatcher(h.transport, clk, quiet, testPolicy())
	t.Cleanup(d.Close)
	return d, clk
}

func TestDispatcherCoalescesBurst(t *testing.T) {
	h := newHarness(t)
	d, clk := newTestDispatcher(t, h)

	targets := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, id := range targets {
		h.add(t, models.ActionLike, id, nil)
		d.Notify()
		clk.Advance(quiet / 2)
	}
	if h.client.callCount() != 0 {
		t.Fatalf("sent before quiet period elapsed: %d calls", h.client.callCount())
	}
	if d.Status() != models.SyncCountingDown {
		t.Errorf("status = %s, want counting_down", d.Status())
	}

	clk.Advance(quiet)
	if h.client.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", h.client.callCount())
	}
	req := h.client.calls[0]
	if len(req.Actions) != len(targets) {
		t.Fatalf("batch size = %d, want %d", len(req.Actions), len(targets))
	}
	for i, id := range targets {
		if req.Actions[i].TargetID != id {
			t.Errorf("action %d target = %s, want %s", i, req.Actions[i].TargetID, id)
		}
	}
	if d.Status() != models.SyncSuccess {
		t.Errorf("status = %s, want success", d.Status())
	}
	if clk.Pending() != 0 {
		t.Errorf("timers left armed: %d", clk.Pending())
	}
}

func TestDispatcherRetryBound(t *testing.T) {
	h := newHarness(t)
	h.client.respond = failing(errors.New("503"))
	d, clk := newTestDispatcher(t, h)

	h.add(t, models.ActionLike, "p1", nil)
	h.add(t, models.ActionAddComment, "p1", models.AddCommentPayload{Text: "hi", TempID: "tmp-1"})
	before := h.store.Actions()
	d.Notify()

	clk.Advance(quiet)
	if h.client.callCount() != 1 {
		t.Fatalf("calls after countdown = %d, want 1", h.client.callCount())
	}
	// 1s + 2s + 4s of backoff, then nothing more.
	clk.Advance(time.Hour)

	want := 1 + testPolicy().MaxAttempts
	if got := h.client.callCount(); got != want {
		t.Errorf("calls = %d, want %d", got, want)
	}
	if clk.Pending() != 0 {
		t.Errorf("timers still armed after exhaustion: %d", clk.Pending())
	}
	st := d.State()
	if st.Status != models.SyncError || st.LastErr == nil {
		t.Errorf("state = %+v, want error", st)
	}

	after := h.store.Actions()
	if len(after) != len(before) {
		t.Fatalf("queue changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if after[i].ID != before[i].ID || after[i].Payload != before[i].Payload {
			t.Errorf("entry %d changed", i)
		}
	}
}

func TestDispatcherBackoffGrows(t *testing.T) {
	h := newHarness(t)
	h.client.respond = failing(errors.New("down"))
	d, clk := newTestDispatcher(t, h)

	h.add(t, models.ActionLike, "p1", nil)
	d.Notify()
	clk.Advance(quiet) // call 1

	steps := []struct {
		advance time.Duration
		calls   int
	}{
		{999 * time.Millisecond, 1},
		{time.Millisecond, 2}, // +1s
		{2 * time.Second, 3},  // +2s
		{3 * time.Second, 3},
		{time.Second, 4}, // +4s
	}
	for i, s := range steps {
		clk.Advance(s.advance)
		if got := h.client.callCount(); got != s.calls {
			t.Fatalf("step %d: calls = %d, want %d", i, got, s.calls)
		}
	}
}

func TestDispatcherRecoversAfterFailure(t *testing.T) {
	h := newHarness(t)
	fails := 1
	h.client.respond = func(req *syncclient.BatchRequest) (*syncclient.BatchResponse, error) {
		if fails > 0 {
			fails--
			return nil, errors.New("flaky")
		}
		return echoAll(req)
	}
	d, clk := newTestDispatcher(t, h)

	h.add(t, models.ActionLike, "p1", nil)
	d.Notify()
	clk.Advance(quiet)
	if d.Status() != models.SyncError {
		t.Fatalf("status = %s, want error", d.Status())
	}
	clk.Advance(time.Second)
	if d.Status() != models.SyncSuccess || h.store.Len() != 0 {
		t.Errorf("status = %s len = %d, want success and empty queue", d.Status(), h.store.Len())
	}
	if st := d.State(); st.Attempt != 0 || st.LastErr != nil || st.LastSyncAt.IsZero() {
		t.Errorf("state = %+v", st)
	}
}

func TestDispatcherNotifyResetsRetry(t *testing.T) {
	h := newHarness(t)
	h.client.respond = failing(errors.New("down"))
	d, clk := newTestDispatcher(t, h)

	h.add(t, models.ActionLike, "p1", nil)
	d.Notify()
	clk.Advance(quiet)
	if d.State().Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", d.State().Attempt)
	}

	// A new action replaces the pending retry with a fresh countdown.
	h.add(t, models.ActionLike, "p2", nil)
	d.Notify()
	if d.State().Attempt != 0 || d.Status() != models.SyncCountingDown {
		t.Errorf("state = %+v", d.State())
	}
	clk.Advance(time.Second)
	if h.client.callCount() != 1 {
		t.Errorf("retry fired despite new countdown: %d calls", h.client.callCount())
	}
	clk.Advance(quiet)
	if h.client.callCount() != 2 {
		t.Errorf("calls = %d, want 2", h.client.callCount())
	}
}

func TestDispatcherFlushNowBypassesTimer(t *testing.T) {
	h := newHarness(t)
	d, clk := newTestDispatcher(t, h)

	h.add(t, models.ActionLike, "p1", nil)
	d.Notify()
	if err := d.FlushNow(context.Background()); err != nil {
		t.Fatalf("FlushNow: %v", err)
	}
	if h.client.callCount() != 1 || h.store.Len() != 0 {
		t.Errorf("calls = %d len = %d", h.client.callCount(), h.store.Len())
	}
	clk.Advance(time.Hour)
	if h.client.callCount() != 1 {
		t.Errorf("cancelled countdown still fired: %d calls", h.client.callCount())
	}
}

func TestDispatcherStatusTransitions(t *testing.T) {
	h := newHarness(t)
	d, clk := newTestDispatcher(t, h)

	var mu gosync.Mutex
	var seen []models.SyncStatus
	d.OnStatus(func(s models.SyncStatus) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	h.add(t, models.ActionLike, "p1", nil)
	d.Notify()
	clk.Advance(quiet)

	want := []models.SyncStatus{models.SyncCountingDown, models.SyncSyncing, models.SyncSuccess}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

// blockingSyncer holds each round open until released
type blockingSyncer struct {
	mu      gosync.Mutex
	active  int
	maxSeen int
	calls   int
	started chan struct{}
	release chan struct{}
}

func (b *blockingSyncer) Sync(ctx context.Context) (RoundResult, error) {
	b.mu.Lock()
	b.active++
	b.calls++
	if b.active > b.maxSeen {
		b.maxSeen = b.active
	}
	b.mu.Unlock()

	b.started <- struct{}{}
	<-b.release

	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	return RoundResult{}, nil
}

func TestDispatcherSingleRoundInFlight(t *testing.T) {
	b := &blockingSyncer{started: make(chan struct{}, 4), release: make(chan struct{})}
	clk := clock.NewFake(time.Now())
	d := NewDispatcher(b, clk, quiet, testPolicy())
	defer d.Close()

	d.Notify()
	go clk.Advance(quiet) // round 1 blocks inside the syncer
	<-b.started

	// Countdown fires while round 1 is outstanding: it must not start round 2.
	d.Notify()
	clk.Advance(quiet)
	if d.Status() != models.SyncSyncing {
		t.Errorf("status = %s, want syncing", d.Status())
	}

	flushed := make(chan error, 1)
	go func() { flushed <- d.FlushNow(context.Background()) }()

	b.release <- struct{}{} // finish round 1
	<-b.started             // the flush round starts only now
	b.release <- struct{}{}
	if err := <-flushed; err != nil {
		t.Fatalf("FlushNow: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maxSeen != 1 {
		t.Errorf("max concurrent rounds = %d, want 1", b.maxSeen)
	}
	if b.calls != 2 {
		t.Errorf("calls = %d, want 2", b.calls)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, Multiplier: 2, MaxDelay: 5 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{50, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
	if p.Allows(0) || !p.Allows(10) || p.Allows(11) {
		t.Error("Allows bounds wrong")
	}
	if (RetryPolicy{}).Allows(1) {
		t.Error("zero policy should not retry")
	}
}
