package models

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidAction is returned for actions whose type and payload disagree
var ErrInvalidAction = errors.New("invalid action")

// OutcomeStatus is the per-action result reported by the batch endpoint
type OutcomeStatus string

const (
	OutcomeLiked           OutcomeStatus = "liked"
	OutcomeUnliked         OutcomeStatus = "unliked"
	OutcomeAlreadyLiked    OutcomeStatus = "already_liked"
	OutcomeNotLiked        OutcomeStatus = "not_liked"
	OutcomeCommentAdded    OutcomeStatus = "comment_added"
	OutcomeCommentRemoved  OutcomeStatus = "comment_removed"
	OutcomeContentNotFound OutcomeStatus = "content_not_found"
	OutcomePostNotFound    OutcomeStatus = "post_not_found"
	OutcomeCommentNotFound OutcomeStatus = "comment_not_found"
	OutcomeInvalid         OutcomeStatus = "invalid_action"
	OutcomeError           OutcomeStatus = "error"
	OutcomeRateLimited     OutcomeStatus = "rate_limited"
)

// NotFound reports whether the target (or referenced comment) is gone
func (s OutcomeStatus) NotFound() bool {
	return strings.HasSuffix(string(s), "_not_found")
}

// Terminal reports whether the action is resolved and can leave the queue.
// Idempotent no-ops and not-found results count as resolved.
func (s OutcomeStatus) Terminal() bool {
	switch s {
	case OutcomeLiked, OutcomeUnliked, OutcomeAlreadyLiked, OutcomeNotLiked,
		OutcomeCommentAdded, OutcomeCommentRemoved, OutcomeInvalid:
		return true
	}
	return s.NotFound()
}

// SyncStatus is the observable state of the batch dispatcher
type SyncStatus string

const (
	SyncIdle         SyncStatus = "idle"
	SyncCountingDown SyncStatus = "counting_down"
	SyncSyncing      SyncStatus = "syncing"
	SyncSuccess      SyncStatus = "success"
	SyncError        SyncStatus = "error"
)

// SyncRecord is one shipped action and its outcome, kept for history
type SyncRecord struct {
	ID         int64         `json:"id,omitempty"`
	Direction  string        `json:"direction"` // "push"
	ActionType ActionType    `json:"actionType"`
	TargetID   string        `json:"targetId"`
	Status     OutcomeStatus `json:"status"`
	CommentID  string        `json:"commentId,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}
