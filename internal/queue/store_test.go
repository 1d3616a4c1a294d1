package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marcus/feedsync/internal/models"
)

func fixedNow() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func hydratedStore(t *testing.T, p Persister) *Store {
	t.Helper()
	s := NewStore(p, fixedNow())
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	return s
}

func TestStoreRejectsMutationsBeforeHydrate(t *testing.T) {
	s := NewStore(NewMemoryPersister(), nil)
	if s.Hydrated() {
		t.Fatal("new store should not be hydrated")
	}
	if _, err := s.Add(like("u1", "p1")); !errors.Is(err, ErrNotHydrated) {
		t.Errorf("Add err = %v, want ErrNotHydrated", err)
	}
	if err := s.Clear(); !errors.Is(err, ErrNotHydrated) {
		t.Errorf("Clear err = %v, want ErrNotHydrated", err)
	}
	if s.Actions() != nil {
		t.Error("Actions before hydrate should be nil")
	}
}

func TestStoreCancellation(t *testing.T) {
	s := hydratedStore(t, nil)
	if _, err := s.Add(like("u1", "p1")); err != nil {
		t.Fatalf("add like: %v", err)
	}
	res, err := s.Add(unlike("u1", "p1"))
	if err != nil {
		t.Fatalf("add unlike: %v", err)
	}
	if res.Queued || res.Dropped != 1 {
		t.Errorf("result = %+v, want not queued, 1 dropped", res)
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}

func TestStoreIdempotentToggle(t *testing.T) {
	s := hydratedStore(t, nil)
	first, _ := s.Add(like("u1", "p1"))
	second, _ := s.Add(like("u1", "p1"))
	actions := s.Actions()
	if len(actions) != 1 {
		t.Fatalf("len = %d, want 1", len(actions))
	}
	if actions[0].ID != second.Action.ID || actions[0].ID == first.Action.ID {
		t.Error("newest like should win")
	}
}

func TestStoreCommentPendingDelete(t *testing.T) {
	s := hydratedStore(t, nil)
	if _, err := s.Add(addComment("u1", "p1", "hello", "X")); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if _, err := s.Add(removeComment("u1", "p1", "X")); err != nil {
		t.Fatalf("remove comment: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}

func TestStoreDuplicateCommentGuard(t *testing.T) {
	s := hydratedStore(t, nil)
	if _, err := s.Add(addComment("u1", "p1", "nice", "tmp-1")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := s.Add(addComment("u1", "p1", "nice ", "tmp-2")); !errors.Is(err, ErrDuplicateComment) {
		t.Errorf("err = %v, want ErrDuplicateComment", err)
	}
	if _, err := s.Add(addComment("u1", "p2", "nice", "tmp-3")); err != nil {
		t.Errorf("same text on another target should be allowed: %v", err)
	}
}

func TestStoreTimestampsMonotonic(t *testing.T) {
	s := hydratedStore(t, nil)
	s.Add(like("u1", "a"))
	s.Add(like("u1", "b"))
	s.Add(like("u1", "c"))
	actions := s.Actions()
	for i := 1; i < len(actions); i++ {
		if !actions[i].Timestamp.After(actions[i-1].Timestamp) {
			t.Errorf("timestamp %d not after %d", i, i-1)
		}
	}
}

func TestStorePersistsAcrossReload(t *testing.T) {
	p := NewMemoryPersister()
	s := hydratedStore(t, p)
	s.Add(like("u1", "p1"))
	s.Add(addComment("u1", "p1", "hi", "tmp-1"))

	reloaded := NewStore(p, nil)
	if err := reloaded.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	got := reloaded.Actions()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].CommentText() != "hi" {
		t.Errorf("comment text = %q, want hi", got[1].CommentText())
	}
}

func TestStoreHydrateOnce(t *testing.T) {
	p := NewMemoryPersister()
	s := hydratedStore(t, p)
	s.Add(like("u1", "p1"))

	// A second hydrate must not clobber the live queue with stored data.
	p.SaveQueue(context.Background(), nil)
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("second hydrate: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestStorePersistFailureDegrades(t *testing.T) {
	p := NewMemoryPersister()
	s := hydratedStore(t, p)
	p.SaveErr = errors.New("disk full")
	if _, err := s.Add(like("u1", "p1")); err != nil {
		t.Fatalf("add should succeed in memory: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestStoreRemoveReplaceClear(t *testing.T) {
	s := hydratedStore(t, nil)
	s.Add(like("u1", "a"))
	s.Add(addComment("u1", "a", "x", "tmp-1"))
	s.Add(like("u1", "b"))

	n, err := s.Remove(func(a models.PendingAction) bool { return a.Type == models.ActionAddComment })
	if err != nil || n != 1 {
		t.Fatalf("remove = %d, %v; want 1, nil", n, err)
	}
	if err := s.Replace([]models.PendingAction{like("u2", "z")}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := s.Actions(); len(got) != 1 || got[0].ActorID != "u2" {
		t.Errorf("after replace: %+v", got)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}

func TestStoreSubscribe(t *testing.T) {
	s := hydratedStore(t, nil)
	var seen []int
	unsub := s.Subscribe(func(a []models.PendingAction) { seen = append(seen, len(a)) })
	s.Add(like("u1", "a"))
	s.Add(like("u1", "b"))
	unsub()
	s.Add(like("u1", "c"))
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("seen = %v, want [1 2]", seen)
	}
}

func TestIDMap(t *testing.T) {
	p := NewMemoryPersister()
	m := NewIDMap(p)
	m.Record("tmp-1", "real-99", "p1")
	if got := m.Resolve("tmp-1"); got != "real-99" {
		t.Errorf("Resolve(tmp-1) = %q, want real-99", got)
	}
	if got := m.Resolve("real-5"); got != "real-5" {
		t.Errorf("Resolve(real-5) = %q, want passthrough", got)
	}

	fresh := NewIDMap(p)
	if err := fresh.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if real, ok := fresh.Lookup("tmp-1"); !ok || real != "real-99" {
		t.Errorf("Lookup after load = %q, %v", real, ok)
	}
}

func TestStoreCheckoutPinsEntries(t *testing.T) {
	s := hydratedStore(t, nil)
	if _, err := s.Add(like("u1", "p1")); err != nil {
		t.Fatalf("add like: %v", err)
	}
	if _, err := s.Add(addComment("u1", "p1", "hello", "X")); err != nil {
		t.Fatalf("add comment: %v", err)
	}

	shipped := s.Checkout(func(a models.PendingAction) bool { return a.ActorID == "u1" })
	if len(shipped) != 2 {
		t.Fatalf("checked out %d, want 2", len(shipped))
	}
	for _, a := range shipped {
		if !s.InFlight(a.ID) {
			t.Errorf("%s not marked in flight", a.Type)
		}
	}

	res, err := s.Add(unlike("u1", "p1"))
	if err != nil {
		t.Fatalf("add unlike: %v", err)
	}
	if !res.Queued || res.Dropped != 0 {
		t.Errorf("unlike result = %+v, want queued behind the sent like", res)
	}
	res, err = s.Add(removeComment("u1", "p1", "X"))
	if err != nil {
		t.Fatalf("remove comment: %v", err)
	}
	if !res.Queued || res.Dropped != 0 {
		t.Errorf("remove result = %+v, want queued behind the sent comment", res)
	}

	got := s.Actions()
	want := []models.ActionType{models.ActionLike, models.ActionAddComment, models.ActionUnlike, models.ActionRemoveComment}
	if len(got) != len(want) {
		t.Fatalf("queue = %+v", got)
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Errorf("entry %d = %s, want %s", i, got[i].Type, want[i])
		}
	}

	// The round resolves the shipped entries and releases them; the unsent
	// unlike is open to neutralization again.
	sent := map[string]bool{shipped[0].ID: true, shipped[1].ID: true}
	if _, err := s.Remove(func(a models.PendingAction) bool { return sent[a.ID] }); err != nil {
		t.Fatalf("remove shipped: %v", err)
	}
	s.ClearInFlight([]string{shipped[0].ID, shipped[1].ID})
	if s.InFlight(shipped[0].ID) {
		t.Error("still in flight after ClearInFlight")
	}
	res, err = s.Add(like("u1", "p1"))
	if err != nil {
		t.Fatalf("add like: %v", err)
	}
	if res.Queued || res.Dropped != 1 {
		t.Errorf("like result = %+v, want cancelled against the unlike", res)
	}
	if left := s.Actions(); len(left) != 1 || left[0].Type != models.ActionRemoveComment {
		t.Errorf("queue = %+v, want only the remove", left)
	}
}
