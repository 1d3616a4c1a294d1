package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marcus/feedsync/internal/models"
)

// SnapshotPersister stores server snapshots across restarts
type SnapshotPersister interface {
	LoadSnapshots(ctx context.Context) ([]models.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
}

// Cache holds the last known server state per content item. Values are
// copied in and out; the reconciler only ever reads clones.
type Cache struct {
	mu        sync.RWMutex
	saveMu    sync.Mutex
	snaps     map[string]models.Snapshot
	persister SnapshotPersister
	onChange  []func(targetID string)
}

// NewCache creates a cache. p may be nil.
func NewCache(p SnapshotPersister) *Cache {
	return &Cache{snaps: make(map[string]models.Snapshot), persister: p}
}

// Load reads persisted snapshots into the cache
func (c *Cache) Load(ctx context.Context) error {
	if c.persister == nil {
		return nil
	}
	snaps, err := c.persister.LoadSnapshots(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for _, s := range snaps {
		c.snaps[s.TargetID] = s.Clone()
	}
	c.mu.Unlock()
	return nil
}

// OnChange registers fn to be called with the target id after each change
func (c *Cache) OnChange(fn func(targetID string)) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

// Get returns a copy of the snapshot for targetID. Unknown items yield an
// empty snapshot for that id.
func (c *Cache) Get(targetID string) (models.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.snaps[targetID]
	if !ok {
		return models.Snapshot{TargetID: targetID}, false
	}
	return s.Clone(), true
}

// Targets returns the ids of all cached items
func (c *Cache) Targets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.snaps))
	for id := range c.snaps {
		ids = append(ids, id)
	}
	return ids
}

// Set replaces the snapshot for an item, e.g. after a fresh fetch
func (c *Cache) Set(snap models.Snapshot) {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	snap = snap.Clone()

	c.mu.Lock()
	c.snaps[snap.TargetID] = snap
	c.mu.Unlock()
	c.changed(snap.TargetID)
}

// ApplyOutcome folds a confirmed server outcome into the cached snapshot so
// derived state stays stable once the pending action leaves the queue.
// serverCommentID is the id assigned by the server for comment_added.
// Like counts are only adjusted on fetched snapshots; for an item never
// fetched the count is unknown and stays untouched.
func (c *Cache) ApplyOutcome(a models.PendingAction, status models.OutcomeStatus, serverCommentID string) {
	c.mu.Lock()
	snap, cached := c.snaps[a.TargetID]
	if !cached {
		snap = models.Snapshot{TargetID: a.TargetID}
	}
	snap = snap.Clone()

	switch status {
	case models.OutcomeLiked:
		if cached && !snap.IsLiked {
			snap.LikeCount++
		}
		snap.IsLiked = true
	case models.OutcomeAlreadyLiked:
		snap.IsLiked = true
	case models.OutcomeUnliked:
		if cached && snap.IsLiked && snap.LikeCount > 0 {
			snap.LikeCount--
		}
		snap.IsLiked = false
	case models.OutcomeNotLiked:
		snap.IsLiked = false
	case models.OutcomeCommentAdded:
		id := serverCommentID
		if id == "" {
			id = a.CommentID()
		}
		if !hasComment(snap.Comments, id) {
			snap.Comments = append(snap.Comments, models.Comment{
				ID:        id,
				TargetID:  a.TargetID,
				AuthorID:  a.ActorID,
				Text:      a.CommentText(),
				CreatedAt: a.Timestamp,
			})
		}
	case models.OutcomeCommentRemoved:
		snap.Comments = dropComment(snap.Comments, a.CommentID())
	default:
		c.mu.Unlock()
		return
	}
	c.snaps[a.TargetID] = snap
	c.mu.Unlock()
	c.changed(a.TargetID)
}

// changed persists the current snapshot for targetID and runs the change
// hooks. Saves are serialized and always write the latest value, so a
// slower writer cannot persist a stale snapshot over a newer one.
func (c *Cache) changed(targetID string) {
	if c.persister != nil {
		c.saveMu.Lock()
		c.mu.RLock()
		snap := c.snaps[targetID].Clone()
		c.mu.RUnlock()
		if err := c.persister.SaveSnapshot(context.Background(), snap); err != nil {
			slog.Warn("snapshot cache: persist failed", "target", targetID, "err", err)
		}
		c.saveMu.Unlock()
	}

	c.mu.RLock()
	fns := append([]func(string){}, c.onChange...)
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(targetID)
	}
}

func hasComment(comments []models.Comment, id string) bool {
	for _, c := range comments {
		if c.ID == id {
			return true
		}
	}
	return false
}

func dropComment(comments []models.Comment, id string) []models.Comment {
	out := comments[:0:0]
	for _, c := range comments {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
