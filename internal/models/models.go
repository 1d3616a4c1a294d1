package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionType represents a content mutation a user can queue
type ActionType string

const (
	ActionLike          ActionType = "like"
	ActionUnlike        ActionType = "unlike"
	ActionAddComment    ActionType = "add_comment"
	ActionRemoveComment ActionType = "remove_comment"
)

// Valid reports whether the action type is one of the known mutations
func (t ActionType) Valid() bool {
	switch t {
	case ActionLike, ActionUnlike, ActionAddComment, ActionRemoveComment:
		return true
	}
	return false
}

// IsToggle reports whether the action is part of the like/unlike pair
func (t ActionType) IsToggle() bool {
	return t == ActionLike || t == ActionUnlike
}

// Opposite returns the action that cancels t, or "" if there is none
func (t ActionType) Opposite() ActionType {
	switch t {
	case ActionLike:
		return ActionUnlike
	case ActionUnlike:
		return ActionLike
	}
	return ""
}

// Payload is the type-specific part of a pending action.
// Exactly one concrete type is valid per ActionType.
type Payload interface {
	isPayload()
}

// NoPayload is carried by like and unlike
type NoPayload struct{}

// AddCommentPayload carries the comment text and its client-generated id
type AddCommentPayload struct {
	Text   string `json:"text"`
	TempID string `json:"tempId"`
}

// RemoveCommentPayload references the comment to delete (temp or server id)
type RemoveCommentPayload struct {
	CommentID string `json:"commentId"`
}

func (NoPayload) isPayload()            {}
func (AddCommentPayload) isPayload()    {}
func (RemoveCommentPayload) isPayload() {}

// PendingAction is a locally recorded, not-yet-confirmed user mutation
type PendingAction struct {
	ID        string     `json:"id"`
	Type      ActionType `json:"type"`
	TargetID  string     `json:"targetId"`
	ActorID   string     `json:"actorId"`
	Payload   Payload    `json:"-"`
	Timestamp time.Time  `json:"timestamp"`
	Retries   int        `json:"retries,omitempty"`
}

// NewAction builds a pending action with a fresh local id. Timestamp is
// assigned by the store on insertion.
func NewAction(t ActionType, targetID, actorID string, p Payload) PendingAction {
	if p == nil {
		p = NoPayload{}
	}
	return PendingAction{
		ID:       uuid.NewString(),
		Type:     t,
		TargetID: targetID,
		ActorID:  actorID,
		Payload:  p,
	}
}

// NewTempCommentID returns a collision-resistant placeholder comment id
func NewTempCommentID() string {
	return "tmp-" + uuid.NewString()
}

// Validate checks that the payload variant matches the action type
func (a PendingAction) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	if a.TargetID == "" {
		return fmt.Errorf("%w: missing target id", ErrInvalidAction)
	}
	if a.ActorID == "" {
		return fmt.Errorf("%w: missing actor id", ErrInvalidAction)
	}
	switch a.Type {
	case ActionLike, ActionUnlike:
		if _, ok := a.Payload.(NoPayload); !ok && a.Payload != nil {
			return fmt.Errorf("%w: %s takes no payload", ErrInvalidAction, a.Type)
		}
	case ActionAddComment:
		p, ok := a.Payload.(AddCommentPayload)
		if !ok {
			return fmt.Errorf("%w: add_comment needs text payload", ErrInvalidAction)
		}
		if p.Text == "" || p.TempID == "" {
			return fmt.Errorf("%w: add_comment needs text and temp id", ErrInvalidAction)
		}
	case ActionRemoveComment:
		p, ok := a.Payload.(RemoveCommentPayload)
		if !ok || p.CommentID == "" {
			return fmt.Errorf("%w: remove_comment needs a comment id", ErrInvalidAction)
		}
	}
	return nil
}

// CommentID returns the comment referenced by a comment action, or ""
func (a PendingAction) CommentID() string {
	switch p := a.Payload.(type) {
	case AddCommentPayload:
		return p.TempID
	case RemoveCommentPayload:
		return p.CommentID
	}
	return ""
}

// CommentText returns the text of an add_comment action, or ""
func (a PendingAction) CommentText() string {
	if p, ok := a.Payload.(AddCommentPayload); ok {
		return p.Text
	}
	return ""
}

// ActionKey is the identity used for de-duplication and neutralization
type ActionKey struct {
	ActorID   string
	TargetID  string
	Type      ActionType
	CommentID string
}

// Key returns the identity of the action
func (a PendingAction) Key() ActionKey {
	return ActionKey{ActorID: a.ActorID, TargetID: a.TargetID, Type: a.Type, CommentID: a.CommentID()}
}

// SamePair reports whether both actions come from the same actor on the same target
func (a PendingAction) SamePair(b PendingAction) bool {
	return a.ActorID == b.ActorID && a.TargetID == b.TargetID
}

// pendingActionJSON is the persisted layout; payload is decoded by type
type pendingActionJSON struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	TargetID  string          `json:"targetId"`
	ActorID   string          `json:"actorId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Retries   int             `json:"retries,omitempty"`
}

// MarshalJSON encodes the payload variant alongside the record
func (a PendingAction) MarshalJSON() ([]byte, error) {
	raw, err := MarshalPayload(a.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pendingActionJSON{
		ID:        a.ID,
		Type:      a.Type,
		TargetID:  a.TargetID,
		ActorID:   a.ActorID,
		Payload:   raw,
		Timestamp: a.Timestamp,
		Retries:   a.Retries,
	})
}

// UnmarshalJSON decodes the payload according to the action type
func (a *PendingAction) UnmarshalJSON(data []byte) error {
	var raw pendingActionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p, err := UnmarshalPayload(raw.Type, raw.Payload)
	if err != nil {
		return err
	}
	*a = PendingAction{
		ID:        raw.ID,
		Type:      raw.Type,
		TargetID:  raw.TargetID,
		ActorID:   raw.ActorID,
		Payload:   p,
		Timestamp: raw.Timestamp,
		Retries:   raw.Retries,
	}
	return nil
}

// MarshalPayload encodes a payload variant; NoPayload encodes to nil
func MarshalPayload(p Payload) (json.RawMessage, error) {
	switch v := p.(type) {
	case nil, NoPayload:
		return nil, nil
	case AddCommentPayload, RemoveCommentPayload:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown payload type %T", p)
	}
}

// UnmarshalPayload decodes raw JSON into the variant owned by t
func UnmarshalPayload(t ActionType, raw json.RawMessage) (Payload, error) {
	switch t {
	case ActionLike, ActionUnlike:
		return NoPayload{}, nil
	case ActionAddComment:
		var p AddCommentPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode add_comment payload: %w", err)
		}
		return p, nil
	case ActionRemoveComment:
		var p RemoveCommentPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode remove_comment payload: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidAction, t)
}

// Comment is a comment on a content item
type Comment struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"targetId"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Pending   bool      `json:"pending,omitempty"` // not yet confirmed by the server
}

// Snapshot is the server-confirmed state of one content item
type Snapshot struct {
	TargetID  string    `json:"targetId"`
	IsLiked   bool      `json:"isLiked"`
	LikeCount int       `json:"likeCount"`
	Comments  []Comment `json:"comments"`
	FetchedAt time.Time `json:"fetchedAt,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate cached state
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Comments != nil {
		out.Comments = make([]Comment, len(s.Comments))
		copy(out.Comments, s.Comments)
	}
	return out
}

// DerivedState is the optimistic, UI-facing view of a content item
type DerivedState struct {
	TargetID     string    `json:"targetId"`
	IsLiked      bool      `json:"isLiked"`
	LikeCount    int       `json:"likeCount"`
	CommentCount int       `json:"commentCount"`
	Comments     []Comment `json:"comments"`
	PendingCount int       `json:"pendingCount"` // queued actions of the current actor
}
