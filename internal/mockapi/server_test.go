package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marcus/feedsync/internal/clock"
	"github.com/marcus/feedsync/internal/engine"
	"github.com/marcus/feedsync/internal/models"
	fssync "github.com/marcus/feedsync/internal/sync"
	"github.com/marcus/feedsync/internal/syncclient"
)

const testSeed = `
tokens:
  tok-u1: u1
  tok-u2: u2
content:
  - id: p1
    likes: [u2]
    comments:
      - id: c1
        author: u2
        text: first
        at: 2026-03-01T10:00:00Z
  - id: p2
`

func newTestServer(t *testing.T) (*Server, *syncclient.Client) {
	t.Helper()
	seed, err := ParseSeed([]byte(testSeed))
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	srv := NewServer(Config{ListenAddr: ":0"}, seed)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, syncclient.New(ts.URL)
}

func action(typ models.ActionType, target string, p models.Payload) syncclient.ActionInput {
	raw, _ := models.MarshalPayload(p)
	return syncclient.ActionInput{Type: typ, TargetID: target, Payload: raw, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
}

func TestHealth(t *testing.T) {
	_, c := newTestServer(t)
	resp, err := c.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestBatchOutcomes(t *testing.T) {
	_, c := newTestServer(t)
	req := &syncclient.BatchRequest{ActorID: "u1", Actions: []syncclient.ActionInput{
		action(models.ActionLike, "p1", nil),
		action(models.ActionLike, "p1", nil),
		action(models.ActionUnlike, "p2", nil),
		action(models.ActionAddComment, "p1", models.AddCommentPayload{Text: "hello", TempID: "tmp-1"}),
		action(models.ActionRemoveComment, "p1", models.RemoveCommentPayload{CommentID: "nope"}),
		action(models.ActionLike, "missing", nil),
	}}

	resp, err := c.SyncBatch(context.Background(), "tok-u1", req)
	if err != nil {
		t.Fatalf("SyncBatch: %v", err)
	}
	if !resp.Success {
		t.Fatal("success = false")
	}
	want := []models.OutcomeStatus{
		models.OutcomeLiked,
		models.OutcomeAlreadyLiked,
		models.OutcomeNotLiked,
		models.OutcomeCommentAdded,
		models.OutcomeCommentNotFound,
		models.OutcomeContentNotFound,
	}
	if len(resp.Processed) != len(want) {
		t.Fatalf("processed = %d, want %d", len(resp.Processed), len(want))
	}
	for i, w := range want {
		if got := resp.Processed[i].Status; got != w {
			t.Errorf("outcome %d = %s, want %s", i, got, w)
		}
	}

	added := resp.Processed[3]
	if added.CommentID == "" {
		t.Error("comment_added without comment id")
	}
	var echo models.AddCommentPayload
	if err := json.Unmarshal(added.Payload, &echo); err != nil || echo.TempID != "tmp-1" {
		t.Errorf("echo = %+v err = %v, want tempId tmp-1", echo, err)
	}

	content, err := c.FetchContent(context.Background(), "tok-u1", "p1", "")
	if err != nil {
		t.Fatalf("FetchContent: %v", err)
	}
	if !content.IsLiked || content.LikeCount != 2 || len(content.Comments) != 2 {
		t.Errorf("content = %+v", content)
	}
	if content.Comments[0].ID != "c1" {
		t.Errorf("comments not oldest first: %+v", content.Comments)
	}
}

func TestBatchAuth(t *testing.T) {
	_, c := newTestServer(t)
	req := &syncclient.BatchRequest{ActorID: "u1", Actions: []syncclient.ActionInput{action(models.ActionLike, "p1", nil)}}

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"unknown", "bogus"},
		{"other actor", "tok-u2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.SyncBatch(context.Background(), tt.token, req)
			if !errors.Is(err, syncclient.ErrUnauthorized) {
				t.Errorf("err = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestBatchMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)
	r := httptest.NewRequest(http.MethodPost, "/v1/actions/batch", bytes.NewBufferString("{"))
	r.Header.Set("Authorization", "Bearer tok-u1")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body APIError
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != ErrCodeBadRequest {
		t.Errorf("body = %s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestFailNext(t *testing.T) {
	srv, c := newTestServer(t)
	srv.FailNext(1)
	req := &syncclient.BatchRequest{ActorID: "u1", Actions: []syncclient.ActionInput{action(models.ActionLike, "p2", nil)}}

	if _, err := c.SyncBatch(context.Background(), "tok-u1", req); err == nil {
		t.Fatal("expected injected failure")
	}
	if _, err := c.SyncBatch(context.Background(), "tok-u1", req); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if srv.Batches() != 2 {
		t.Errorf("batches = %d, want 2", srv.Batches())
	}
}

func TestContentNotFound(t *testing.T) {
	_, c := newTestServer(t)
	_, err := c.FetchContent(context.Background(), "tok-u1", "ghost", "")
	if !errors.Is(err, syncclient.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestParseSeedRequiresIDs(t *testing.T) {
	if _, err := ParseSeed([]byte("content:\n  - likes: [u1]\n")); err == nil {
		t.Error("expected error for content without id")
	}
}

// TestEngineAgainstServer drives the engine through the real HTTP client.
func TestEngineAgainstServer(t *testing.T) {
	_, c := newTestServer(t)
	e, err := engine.New(engine.Options{
		Client:   c,
		Actor:    func() string { return "u1" },
		Token:    func(context.Context) (string, error) { return "tok-u1", nil },
		Clock:    clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Debounce: time.Second,
		Retry:    fssync.RetryPolicy{},
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { e.Close(ctx) })

	snap, err := c.FetchContent(ctx, "tok-u1", "p1", "")
	if err != nil {
		t.Fatalf("FetchContent: %v", err)
	}
	e.UpdateSnapshot(snap.Snapshot())

	if _, err := e.Like("p1"); err != nil {
		t.Fatalf("Like: %v", err)
	}
	tempID, err := e.AddComment("p1", "from engine")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if ds := e.DerivedState("p1"); !ds.IsLiked || ds.LikeCount != 2 || len(ds.Comments) != 2 {
		t.Fatalf("optimistic state = %+v", ds)
	}

	if err := e.ForceSync(ctx); err != nil {
		t.Fatalf("ForceSync: %v", err)
	}
	if n := len(e.Pending()); n != 0 {
		t.Fatalf("pending = %d after sync", n)
	}
	ds := e.DerivedState("p1")
	if !ds.IsLiked || ds.LikeCount != 2 || len(ds.Comments) != 2 {
		t.Errorf("confirmed state = %+v", ds)
	}

	// Removal by temp id reaches the server under the real id.
	if _, err := e.RemoveComment("p1", tempID); err != nil {
		t.Fatalf("RemoveComment: %v", err)
	}
	if err := e.ForceSync(ctx); err != nil {
		t.Fatalf("ForceSync: %v", err)
	}
	server, err := c.FetchContent(ctx, "tok-u1", "p1", "")
	if err != nil {
		t.Fatalf("FetchContent: %v", err)
	}
	if len(server.Comments) != 1 || server.Comments[0].ID != "c1" {
		t.Errorf("server comments = %+v", server.Comments)
	}
	if ds := e.DerivedState("p1"); len(ds.Comments) != 1 {
		t.Errorf("derived comments = %+v", ds.Comments)
	}
}
