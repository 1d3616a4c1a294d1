package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPendingActionJSONPayloadVariants(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		action PendingAction
		want   string // substring of the encoded form
	}{
		{"like has no payload", PendingAction{ID: "a1", Type: ActionLike, TargetID: "p1", ActorID: "u1", Payload: NoPayload{}, Timestamp: ts}, `"type":"like"`},
		{"add_comment", PendingAction{ID: "a2", Type: ActionAddComment, TargetID: "p1", ActorID: "u1", Payload: AddCommentPayload{Text: "hi", TempID: "tmp-1"}, Timestamp: ts}, `"payload":{"text":"hi","tempId":"tmp-1"}`},
		{"remove_comment", PendingAction{ID: "a3", Type: ActionRemoveComment, TargetID: "p1", ActorID: "u1", Payload: RemoveCommentPayload{CommentID: "c9"}, Timestamp: ts}, `"payload":{"commentId":"c9"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.action)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Fatalf("encoded %s, want substring %s", data, tt.want)
			}
			var got PendingAction
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Payload != tt.action.Payload {
				t.Errorf("payload = %#v, want %#v", got.Payload, tt.action.Payload)
			}
			if !got.Timestamp.Equal(ts) {
				t.Errorf("timestamp = %v, want %v", got.Timestamp, ts)
			}
		})
	}
}

func TestLikePayloadOmitted(t *testing.T) {
	data, err := json.Marshal(PendingAction{ID: "a1", Type: ActionUnlike, TargetID: "p1", ActorID: "u1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "payload") {
		t.Errorf("unlike should not carry a payload: %s", data)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		action  PendingAction
		wantErr bool
	}{
		{"like ok", NewAction(ActionLike, "p1", "u1", nil), false},
		{"missing target", NewAction(ActionLike, "", "u1", nil), true},
		{"missing actor", NewAction(ActionLike, "p1", "", nil), true},
		{"unknown type", NewAction("share", "p1", "u1", nil), true},
		{"comment without payload", NewAction(ActionAddComment, "p1", "u1", nil), true},
		{"comment ok", NewAction(ActionAddComment, "p1", "u1", AddCommentPayload{Text: "x", TempID: "tmp-1"}), false},
		{"remove without id", NewAction(ActionRemoveComment, "p1", "u1", RemoveCommentPayload{}), true},
		{"like with comment payload", NewAction(ActionLike, "p1", "u1", RemoveCommentPayload{CommentID: "c"}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAction) {
				t.Errorf("error should wrap ErrInvalidAction: %v", err)
			}
		})
	}
}

func TestOutcomeClassification(t *testing.T) {
	terminal := []OutcomeStatus{OutcomeLiked, OutcomeUnliked, OutcomeAlreadyLiked, OutcomeNotLiked,
		OutcomeCommentAdded, OutcomeCommentRemoved, OutcomeContentNotFound, OutcomePostNotFound, "reel_not_found"}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []OutcomeStatus{OutcomeError, OutcomeRateLimited, "something_new"} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestOppositeAndTempIDs(t *testing.T) {
	if ActionLike.Opposite() != ActionUnlike || ActionUnlike.Opposite() != ActionLike {
		t.Error("like/unlike should be opposites")
	}
	if ActionAddComment.Opposite() != "" {
		t.Error("add_comment has no opposite")
	}
	a, b := NewTempCommentID(), NewTempCommentID()
	if a == b || !strings.HasPrefix(a, "tmp-") {
		t.Errorf("temp ids should be unique and prefixed: %q %q", a, b)
	}
}
