package reconcile

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/marcus/feedsync/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func pending(typ models.ActionType, target string, at time.Duration, p models.Payload) models.PendingAction {
	a := models.NewAction(typ, target, "u1", p)
	a.Timestamp = t0.Add(at)
	return a
}

func TestDeriveLikeOverride(t *testing.T) {
	tests := []struct {
		name      string
		snap      models.Snapshot
		pending   []models.PendingAction
		wantLiked bool
		wantCount int
	}{
		{"pending like on unliked", models.Snapshot{TargetID: "p1", LikeCount: 10}, []models.PendingAction{pending(models.ActionLike, "p1", 0, nil)}, true, 11},
		{"pending unlike on liked", models.Snapshot{TargetID: "p1", LikeCount: 10, IsLiked: true}, []models.PendingAction{pending(models.ActionUnlike, "p1", 0, nil)}, false, 9},
		{"pending like on already liked", models.Snapshot{TargetID: "p1", LikeCount: 10, IsLiked: true}, []models.PendingAction{pending(models.ActionLike, "p1", 0, nil)}, true, 10},
		{"no pending", models.Snapshot{TargetID: "p1", LikeCount: 3}, nil, false, 3},
		{"never negative", models.Snapshot{TargetID: "p1", LikeCount: 0, IsLiked: true}, []models.PendingAction{pending(models.ActionUnlike, "p1", 0, nil)}, false, 0},
		{"negative snapshot clamped", models.Snapshot{TargetID: "p1", LikeCount: -4}, nil, false, 0},
		{"other target ignored", models.Snapshot{TargetID: "p1", LikeCount: 1}, []models.PendingAction{pending(models.ActionLike, "p2", 0, nil)}, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.snap, tt.pending, "u1", nil)
			if got.IsLiked != tt.wantLiked || got.LikeCount != tt.wantCount {
				t.Errorf("got liked=%v count=%d, want liked=%v count=%d", got.IsLiked, got.LikeCount, tt.wantLiked, tt.wantCount)
			}
		})
	}
}

func TestDeriveMostRecentToggleWins(t *testing.T) {
	snap := models.Snapshot{TargetID: "p1", LikeCount: 5}
	// Malformed ordering: the later unlike appears first in the slice.
	list := []models.PendingAction{
		pending(models.ActionUnlike, "p1", 2*time.Second, nil),
		pending(models.ActionLike, "p1", time.Second, nil),
	}
	got := Derive(snap, list, "u1", nil)
	if got.IsLiked || got.LikeCount != 5 {
		t.Errorf("got liked=%v count=%d, want false/5", got.IsLiked, got.LikeCount)
	}
}

func TestDeriveComments(t *testing.T) {
	snap := models.Snapshot{
		TargetID: "p1",
		Comments: []models.Comment{
			{ID: "c2", Text: "second", CreatedAt: t0.Add(2 * time.Second)},
			{ID: "c1", Text: "first", CreatedAt: t0.Add(time.Second)},
			{ID: "real-7", Text: "to delete", CreatedAt: t0.Add(3 * time.Second)},
		},
	}
	list := []models.PendingAction{
		pending(models.ActionAddComment, "p1", 10*time.Second, models.AddCommentPayload{Text: "mine", TempID: "tmp-1"}),
		pending(models.ActionRemoveComment, "p1", 11*time.Second, models.RemoveCommentPayload{CommentID: "tmp-7"}),
	}
	resolve := func(id string) string {
		if id == "tmp-7" {
			return "real-7"
		}
		return id
	}

	got := Derive(snap, list, "u1", resolve)
	var ids []string
	for _, c := range got.Comments {
		ids = append(ids, c.ID)
	}
	want := []string{"c1", "c2", "tmp-1"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("comment ids = %v, want %v", ids, want)
	}
	if got.CommentCount != 3 {
		t.Errorf("CommentCount = %d, want 3", got.CommentCount)
	}
	if !got.Comments[2].Pending {
		t.Error("pending add should be marked pending")
	}
	if got.PendingCount != 2 {
		t.Errorf("PendingCount = %d, want 2", got.PendingCount)
	}
}

func TestDerivePendingCountPerActor(t *testing.T) {
	other := models.NewAction(models.ActionAddComment, "p1", "u2", models.AddCommentPayload{Text: "theirs", TempID: "tmp-9"})
	other.Timestamp = t0
	list := []models.PendingAction{
		pending(models.ActionLike, "p1", time.Second, nil),
		other,
		pending(models.ActionLike, "p2", 2*time.Second, nil),
	}

	tests := []struct {
		actor string
		want  int
	}{
		{"u1", 1},
		{"u2", 1},
		{"u3", 0},
	}
	for _, tt := range tests {
		t.Run(tt.actor, func(t *testing.T) {
			got := Derive(models.Snapshot{TargetID: "p1"}, list, tt.actor, nil)
			if got.PendingCount != tt.want {
				t.Errorf("PendingCount = %d, want %d", got.PendingCount, tt.want)
			}
		})
	}
}

func TestDeriveDedupesConfirmedComment(t *testing.T) {
	snap := models.Snapshot{TargetID: "p1", Comments: []models.Comment{{ID: "real-99", Text: "nice", CreatedAt: t0}}}
	list := []models.PendingAction{
		pending(models.ActionAddComment, "p1", time.Second, models.AddCommentPayload{Text: "nice", TempID: "tmp-1"}),
	}
	resolve := func(id string) string {
		if id == "tmp-1" {
			return "real-99"
		}
		return id
	}
	got := Derive(snap, list, "u1", resolve)
	if got.CommentCount != 1 {
		t.Errorf("CommentCount = %d, want 1", got.CommentCount)
	}
}

func TestDeriveIsPure(t *testing.T) {
	snap := models.Snapshot{TargetID: "p1", LikeCount: 2, Comments: []models.Comment{{ID: "c1", CreatedAt: t0}}}
	list := []models.PendingAction{
		pending(models.ActionLike, "p1", 0, nil),
		pending(models.ActionRemoveComment, "p1", time.Second, models.RemoveCommentPayload{CommentID: "c1"}),
	}
	snapCopy := snap.Clone()
	first := Derive(snap, list, "u1", nil)
	second := Derive(snap, list, "u1", nil)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Derive not idempotent:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(snap, snapCopy) {
		t.Error("Derive mutated the snapshot")
	}
}

func TestCacheApplyOutcome(t *testing.T) {
	c := NewCache(nil)
	c.Set(models.Snapshot{TargetID: "p1", LikeCount: 3})

	var changed []string
	c.OnChange(func(id string) { changed = append(changed, id) })

	likeAction := models.NewAction(models.ActionLike, "p1", "u1", nil)
	c.ApplyOutcome(likeAction, models.OutcomeLiked, "")
	snap, _ := c.Get("p1")
	if !snap.IsLiked || snap.LikeCount != 4 {
		t.Errorf("after liked: %+v", snap)
	}

	add := models.NewAction(models.ActionAddComment, "p1", "u1", models.AddCommentPayload{Text: "nice", TempID: "tmp-1"})
	c.ApplyOutcome(add, models.OutcomeCommentAdded, "real-99")
	snap, _ = c.Get("p1")
	if len(snap.Comments) != 1 || snap.Comments[0].ID != "real-99" {
		t.Errorf("after comment_added: %+v", snap.Comments)
	}

	c.ApplyOutcome(likeAction, models.OutcomeContentNotFound, "")
	if len(changed) != 2 {
		t.Errorf("changes = %v, want 2 notifications", changed)
	}
}

func TestCacheGetReturnsCopy(t *testing.T) {
	c := NewCache(nil)
	c.Set(models.Snapshot{TargetID: "p1", Comments: []models.Comment{{ID: "c1", Text: "orig"}}})
	snap, ok := c.Get("p1")
	if !ok {
		t.Fatal("expected cached snapshot")
	}
	snap.Comments[0].Text = "mutated"
	again, _ := c.Get("p1")
	if again.Comments[0].Text != "orig" {
		t.Error("cache leaked internal slice")
	}
}

func TestCacheApplyOutcomeUncachedKeepsCount(t *testing.T) {
	c := NewCache(nil)
	c.ApplyOutcome(models.NewAction(models.ActionLike, "p9", "u1", nil), models.OutcomeLiked, "")
	snap, ok := c.Get("p9")
	if !ok || !snap.IsLiked || snap.LikeCount != 0 {
		t.Errorf("uncached liked = %+v, want liked with unknown count left at 0", snap)
	}

	c.Set(models.Snapshot{TargetID: "p9", IsLiked: true, LikeCount: 5})
	c.ApplyOutcome(models.NewAction(models.ActionLike, "p9", "u1", nil), models.OutcomeAlreadyLiked, "")
	if snap, _ := c.Get("p9"); snap.LikeCount != 5 {
		t.Errorf("already_liked changed count: %+v", snap)
	}
}

// lastSave records the most recent snapshot persisted per item
type lastSave struct {
	mu    sync.Mutex
	snaps map[string]models.Snapshot
}

func (l *lastSave) LoadSnapshots(ctx context.Context) ([]models.Snapshot, error) { return nil, nil }

func (l *lastSave) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snaps[snap.TargetID] = snap
	return nil
}

func TestCacheSetRacingOutcomeNotLost(t *testing.T) {
	for i := 0; i < 200; i++ {
		saved := &lastSave{snaps: make(map[string]models.Snapshot)}
		c := NewCache(saved)
		c.Set(models.Snapshot{TargetID: "p1", LikeCount: 3})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set(models.Snapshot{TargetID: "p1", LikeCount: 10})
		}()
		go func() {
			defer wg.Done()
			c.ApplyOutcome(models.NewAction(models.ActionLike, "p1", "u1", nil), models.OutcomeLiked, "")
		}()
		wg.Wait()

		snap, _ := c.Get("p1")
		// Either order is fine; a blend of the old snapshot and the outcome is not.
		if !(snap.IsLiked && snap.LikeCount == 11) && !(!snap.IsLiked && snap.LikeCount == 10) {
			t.Fatalf("iteration %d: snapshot = %+v, lost an update", i, snap)
		}
		if got := saved.snaps["p1"]; got.IsLiked != snap.IsLiked || got.LikeCount != snap.LikeCount {
			t.Fatalf("iteration %d: persisted %+v, cached %+v", i, got, snap)
		}
	}
}
