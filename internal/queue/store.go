// Package queue holds the durable list of pending user actions and the
// bookkeeping that maps temporary comment ids to server ids.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/marcus/feedsync/internal/models"
)

var (
	// ErrNotHydrated is returned by mutations attempted before Hydrate completes
	ErrNotHydrated = errors.New("queue not hydrated")
	// ErrDuplicateComment is returned when an identical comment is already pending
	ErrDuplicateComment = errors.New("duplicate pending comment")
)

// Persister loads and saves the whole queue. Saves overwrite, never append.
type Persister interface {
	LoadQueue(ctx context.Context) ([]models.PendingAction, error)
	SaveQueue(ctx context.Context, actions []models.PendingAction) error
}

// Result describes what Add did with the incoming action
type Result struct {
	Action  models.PendingAction
	Queued  bool // false when neutralized against an opposite entry
	Dropped int  // entries removed from the queue by neutralization
}

// Store is the single owner of the pending-action queue
type Store struct {
	mu        sync.Mutex
	persister Persister
	now       func() time.Time
	actions   []models.PendingAction
	hydrated  bool
	lastTS    time.Time
	inFlight  map[string]bool // ids shipped in the outstanding batch

	subMu  sync.Mutex
	subs   map[int]func([]models.PendingAction)
	nextID int
}

// NewStore creates an unhydrated store. now may be nil for time.Now.
func NewStore(p Persister, now func() time.Time) *Store {
	if p == nil {
		p = NewMemoryPersister()
	}
	if now == nil {
		now = time.Now
	}
	return &Store{persister: p, now: now, subs: make(map[int]func([]models.PendingAction))}
}

// Hydrate loads the persisted queue. Only the first call has any effect.
// A load failure still marks the store hydrated with an empty queue so the
// session keeps working; the error is returned for the caller to log.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	if s.hydrated {
		s.mu.Unlock()
		return nil
	}
	loaded, err := s.persister.LoadQueue(ctx)
	s.hydrated = true
	if err == nil {
		s.actions = loaded
		for _, a := range loaded {
			if a.Timestamp.After(s.lastTS) {
				s.lastTS = a.Timestamp
			}
		}
	}
	snap := s.copyLocked()
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	s.notify(snap)
	return nil
}

// Hydrated reports whether the persisted queue has been loaded
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// Add neutralizes the action against the queue and appends it if it survives
func (s *Store) Add(a models.PendingAction) (Result, error) {
	if err := a.Validate(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return Result{}, ErrNotHydrated
	}
	if a.Type == models.ActionAddComment && s.hasCommentLocked(a) {
		s.mu.Unlock()
		return Result{}, ErrDuplicateComment
	}

	a.Timestamp = s.nextTimestampLocked()
	next, enqueue := s.neutralizeLocked(a)
	res := Result{Action: a, Queued: enqueue, Dropped: len(s.actions) - len(next)}
	if enqueue {
		next = append(next, a)
	}
	s.actions = next
	snap := s.commitLocked()
	s.mu.Unlock()

	slog.Debug("queue: add", "type", a.Type, "target", a.TargetID, "queued", res.Queued, "dropped", res.Dropped)
	s.notify(snap)
	return res, nil
}

// Remove drops every entry matching pred and returns how many were removed
func (s *Store) Remove(pred func(models.PendingAction) bool) (int, error) {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return 0, ErrNotHydrated
	}
	kept := make([]models.PendingAction, 0, len(s.actions))
	for _, a := range s.actions {
		if !pred(a) {
			kept = append(kept, a)
		}
	}
	removed := len(s.actions) - len(kept)
	if removed == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	s.actions = kept
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return removed, nil
}

// Replace atomically swaps the whole queue
func (s *Store) Replace(actions []models.PendingAction) error {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return ErrNotHydrated
	}
	s.actions = append([]models.PendingAction(nil), actions...)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Update applies fn to the live queue under the store lock and persists the
// result. Used by the transport to prune a shipped snapshot without racing
// actions added while the request was in flight.
func (s *Store) Update(fn func([]models.PendingAction) []models.PendingAction) error {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return ErrNotHydrated
	}
	s.actions = fn(s.copyLocked())
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Checkout returns a copy of the entries matching pred and pins them as part
// of a batch being sent. Pinned entries stay in the queue but no longer
// neutralize against new actions; the server response decides their fate.
// Release them with ClearInFlight.
func (s *Store) Checkout(pred func(models.PendingAction) bool) []models.PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PendingAction
	for _, a := range s.actions {
		if !pred(a) {
			continue
		}
		if s.inFlight == nil {
			s.inFlight = make(map[string]bool)
		}
		s.inFlight[a.ID] = true
		out = append(out, a)
	}
	return out
}

// ClearInFlight releases ids pinned by Checkout
func (s *Store) ClearInFlight(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.inFlight, id)
	}
}

// InFlight reports whether the action with id is part of a sent batch
func (s *Store) InFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[id]
}

// Clear empties the queue
func (s *Store) Clear() error {
	return s.Replace(nil)
}

// Actions returns a copy of the queue in insertion order.
// Before hydration the result is nil and must not be treated as authoritative.
func (s *Store) Actions() []models.PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Len returns the number of pending actions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

// Subscribe registers fn to receive a copy of the queue after every change.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func([]models.PendingAction)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) hasCommentLocked(a models.PendingAction) bool {
	text := strings.TrimSpace(a.CommentText())
	for _, existing := range s.actions {
		if existing.Type == models.ActionAddComment &&
			existing.TargetID == a.TargetID &&
			strings.TrimSpace(existing.CommentText()) == text {
			return true
		}
	}
	return false
}

// neutralizeLocked runs Neutralize over the entries that are not in flight
// and splices the survivors back around the pinned ones in queue order.
func (s *Store) neutralizeLocked(a models.PendingAction) ([]models.PendingAction, bool) {
	if len(s.inFlight) == 0 {
		return Neutralize(s.actions, a)
	}
	open := make([]models.PendingAction, 0, len(s.actions))
	for _, existing := range s.actions {
		if !s.inFlight[existing.ID] {
			open = append(open, existing)
		}
	}
	survivors, enqueue := Neutralize(open, a)
	keep := make(map[string]bool, len(survivors))
	for _, existing := range survivors {
		keep[existing.ID] = true
	}
	next := make([]models.PendingAction, 0, len(s.actions)+1)
	for _, existing := range s.actions {
		if s.inFlight[existing.ID] || keep[existing.ID] {
			next = append(next, existing)
		}
	}
	return next, enqueue
}

// nextTimestampLocked returns a strictly increasing creation time
func (s *Store) nextTimestampLocked() time.Time {
	ts := s.now().UTC()
	if !ts.After(s.lastTS) {
		ts = s.lastTS.Add(time.Nanosecond)
	}
	s.lastTS = ts
	return ts
}

// commitLocked persists the queue and returns a copy for subscribers.
// Persist failures degrade to in-memory operation.
func (s *Store) commitLocked() []models.PendingAction {
	snap := s.copyLocked()
	if err := s.persister.SaveQueue(context.Background(), snap); err != nil {
		slog.Warn("queue: persist failed, continuing in memory", "err", err)
	}
	return snap
}

func (s *Store) copyLocked() []models.PendingAction {
	if s.actions == nil {
		return nil
	}
	out := make([]models.PendingAction, len(s.actions))
	copy(out, s.actions)
	return out
}

func (s *Store) notify(snap []models.PendingAction) {
	s.subMu.Lock()
	fns := make([]func([]models.PendingAction), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
