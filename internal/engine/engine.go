// Package engine wires the pending queue, snapshot cache, transport and
// dispatcher into one service object that front ends construct at startup.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"github.com/marcus/feedsync/internal/clock"
	"github.com/marcus/feedsync/internal/models"
	"github.com/marcus/feedsync/internal/queue"
	"github.com/marcus/feedsync/internal/reconcile"
	fssync "github.com/marcus/feedsync/internal/sync"
)

// StateRecorder persists the outcome of each sync round for other processes
type StateRecorder interface {
	RecordSyncSuccess(ctx context.Context, actorID string, sent, resolved int, at time.Time) error
	RecordSyncError(ctx context.Context, actorID string, err error) error
}

// Options configures an Engine. Client, Actor and Token are required.
type Options struct {
	Client    fssync.BatchClient
	Actor     func() string
	Token     func(ctx context.Context) (string, error)
	Queue     queue.Persister             // nil keeps the queue in memory
	IDs       queue.IDMapPersister        // nil keeps the id map in memory
	Snapshots reconcile.SnapshotPersister // nil keeps snapshots in memory
	History   fssync.HistoryRecorder
	State     StateRecorder
	Clock     clock.Clock

	Debounce       time.Duration
	RequestTimeout time.Duration
	Retry          fssync.RetryPolicy
	FlushOnClose   bool
}

// Event tells subscribers what changed
type Event struct {
	Targets []string // items whose derived state may differ; empty for status-only events
	Status  models.SyncStatus
	Pending int
}

// Engine is the optimistic-update and batched-sync service
type Engine struct {
	opts       Options
	store      *queue.Store
	ids        *queue.IDMap
	cache      *reconcile.Cache
	transport  *fssync.Transport
	dispatcher *fssync.Dispatcher

	mu          gosync.Mutex
	subs        map[int]func(Event)
	nextSub     int
	lastTargets map[string]bool
	unsubQueue  func()
	closed      bool
}

// New builds an engine. Call Start before adding actions.
func New(opts Options) (*Engine, error) {
	if opts.Client == nil || opts.Actor == nil || opts.Token == nil {
		return nil, errors.New("engine: client, actor and token are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	e := &Engine{
		opts:        opts,
		store:       queue.NewStore(opts.Queue, opts.Clock.Now),
		ids:         queue.NewIDMap(opts.IDs),
		cache:       reconcile.NewCache(opts.Snapshots),
		subs:        make(map[int]func(Event)),
		lastTargets: make(map[string]bool),
	}
	e.transport = &fssync.Transport{
		Client:  opts.Client,
		Store:   e.store,
		IDs:     e.ids,
		Cache:   e.cache,
		Actor:   opts.Actor,
		Token:   opts.Token,
		Timeout: opts.RequestTimeout,
		History: opts.History,
	}
	e.dispatcher = fssync.NewDispatcher(syncerFunc(e.round), opts.Clock, opts.Debounce, opts.Retry)

	e.unsubQueue = e.store.Subscribe(e.onQueue)
	e.cache.OnChange(func(target string) { e.publish([]string{target}) })
	e.dispatcher.OnStatus(func(models.SyncStatus) { e.publish(nil) })
	return e, nil
}

// Start hydrates the queue and loads the id map and snapshot cache. Load
// failures are logged and the engine continues with what it has. Actions
// left over from a previous process schedule a sync.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.ids.Load(ctx); err != nil {
		slog.Warn("engine: load id map", "err", err)
	}
	if err := e.cache.Load(ctx); err != nil {
		slog.Warn("engine: load snapshots", "err", err)
	}
	if err := e.store.Hydrate(ctx); err != nil {
		slog.Warn("engine: hydrate queue, starting empty", "err", err)
	}
	if e.store.Len() > 0 {
		e.dispatcher.Notify()
	}
	return nil
}

// Hydrated reports whether Start has loaded the queue
func (e *Engine) Hydrated() bool {
	return e.store.Hydrated()
}

// AddAction records a user action for the current actor and schedules a sync
func (e *Engine) AddAction(typ models.ActionType, targetID string, payload models.Payload) (queue.Result, error) {
	actor := e.opts.Actor()
	if actor == "" {
		return queue.Result{}, fssync.ErrNoActor
	}
	if p, ok := payload.(models.RemoveCommentPayload); ok {
		// Comments confirmed in an earlier round are removed by server id
		if serverID := e.ids.Resolve(p.CommentID); serverID != p.CommentID && !e.hasPendingAdd(p.CommentID) {
			payload = models.RemoveCommentPayload{CommentID: serverID}
		}
	}

	res, err := e.store.Add(models.NewAction(typ, targetID, actor, payload))
	if err != nil {
		return res, err
	}
	if res.Queued {
		e.dispatcher.Notify()
	}
	return res, nil
}

// Like queues a like of targetID
func (e *Engine) Like(targetID string) (queue.Result, error) {
	return e.AddAction(models.ActionLike, targetID, nil)
}

// Unlike queues an unlike of targetID
func (e *Engine) Unlike(targetID string) (queue.Result, error) {
	return e.AddAction(models.ActionUnlike, targetID, nil)
}

// AddComment queues a comment and returns its temporary id
func (e *Engine) AddComment(targetID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty comment", models.ErrInvalidAction)
	}
	tempID := models.NewTempCommentID()
	if _, err := e.AddAction(models.ActionAddComment, targetID, models.AddCommentPayload{Text: text, TempID: tempID}); err != nil {
		return "", err
	}
	return tempID, nil
}

// RemoveComment queues removal of a comment by server or temporary id.
// Removing a comment that has not synced yet cancels it locally.
func (e *Engine) RemoveComment(targetID, commentID string) (queue.Result, error) {
	return e.AddAction(models.ActionRemoveComment, targetID, models.RemoveCommentPayload{CommentID: commentID})
}

// DerivedState returns the optimistic view of one content item
func (e *Engine) DerivedState(targetID string) models.DerivedState {
	snap, _ := e.cache.Get(targetID)
	return reconcile.Derive(snap, e.store.Actions(), e.opts.Actor(), e.ids.Resolve)
}

// UpdateSnapshot replaces the server state for an item, e.g. after a fetch
func (e *Engine) UpdateSnapshot(snap models.Snapshot) {
	e.cache.Set(snap)
}

// Targets returns every item with cached server state or pending actions
func (e *Engine) Targets() []string {
	seen := make(map[string]bool)
	for _, id := range e.cache.Targets() {
		seen[id] = true
	}
	for _, a := range e.store.Actions() {
		seen[a.TargetID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Pending returns a copy of the queue
func (e *Engine) Pending() []models.PendingAction {
	return e.store.Actions()
}

// Status returns the dispatcher state
func (e *Engine) Status() fssync.State {
	return e.dispatcher.State()
}

// ForceSync ships the queue now, waiting for any round already in flight
func (e *Engine) ForceSync(ctx context.Context) error {
	return e.dispatcher.FlushNow(ctx)
}

// ClearPending drops every queued action
func (e *Engine) ClearPending() error {
	return e.store.Clear()
}

// Subscribe registers fn for change events. The returned func unsubscribes.
func (e *Engine) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Close stops timers, flushing first when FlushOnClose is set. ctx bounds
// the flush.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	var err error
	if e.opts.FlushOnClose && e.store.Len() > 0 {
		err = e.dispatcher.FlushNow(ctx)
	}
	e.dispatcher.Close()
	e.unsubQueue()
	return err
}

// round runs one transport round and records its outcome
func (e *Engine) round(ctx context.Context) (fssync.RoundResult, error) {
	res, err := e.transport.Sync(ctx)
	if e.opts.State == nil || (err == nil && res.Sent == 0) {
		return res, err
	}
	actor := e.opts.Actor()
	if err != nil {
		if recErr := e.opts.State.RecordSyncError(ctx, actor, err); recErr != nil {
			slog.Warn("engine: record sync error", "err", recErr)
		}
		return res, err
	}
	if recErr := e.opts.State.RecordSyncSuccess(ctx, actor, res.Sent, res.Resolved, e.opts.Clock.Now()); recErr != nil {
		slog.Warn("engine: record sync state", "err", recErr)
	}
	return res, nil
}

func (e *Engine) hasPendingAdd(commentID string) bool {
	for _, a := range e.store.Actions() {
		if a.Type == models.ActionAddComment && a.CommentID() == commentID {
			return true
		}
	}
	return false
}

// onQueue reports items that gained or lost pending actions
func (e *Engine) onQueue(actions []models.PendingAction) {
	current := make(map[string]bool, len(actions))
	for _, a := range actions {
		current[a.TargetID] = true
	}

	e.mu.Lock()
	changed := make([]string, 0, len(current))
	for id := range current {
		changed = append(changed, id)
	}
	for id := range e.lastTargets {
		if !current[id] {
			changed = append(changed, id)
		}
	}
	e.lastTargets = current
	e.mu.Unlock()

	sort.Strings(changed)
	e.publish(changed)
}

func (e *Engine) publish(targets []string) {
	ev := Event{Targets: targets, Status: e.dispatcher.Status(), Pending: e.store.Len()}

	e.mu.Lock()
	fns := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

type syncerFunc func(ctx context.Context) (fssync.RoundResult, error)

func (f syncerFunc) Sync(ctx context.Context) (fssync.RoundResult, error) { return f(ctx) }
