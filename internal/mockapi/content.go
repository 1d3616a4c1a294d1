package mockapi

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/feedsync/internal/models"
	"github.com/marcus/feedsync/internal/syncclient"
)

type item struct {
	likes    map[string]bool
	comments []models.Comment
}

// contentStore is the in-memory server state. Actions apply in request order.
type contentStore struct {
	mu    sync.Mutex
	items map[string]*item
	now   func() time.Time
}

func newContentStore(seed *Seed) *contentStore {
	s := &contentStore{items: make(map[string]*item), now: time.Now}
	if seed == nil {
		return s
	}
	for _, c := range seed.Content {
		it := &item{likes: make(map[string]bool)}
		for _, actor := range c.Likes {
			it.likes[actor] = true
		}
		for _, sc := range c.Comments {
			id := sc.ID
			if id == "" {
				id = "c-" + uuid.NewString()
			}
			it.comments = append(it.comments, models.Comment{
				ID: id, TargetID: c.ID, AuthorID: sc.Author, Text: sc.Text, CreatedAt: sc.At,
			})
		}
		s.items[c.ID] = it
	}
	return s
}

// ensure creates an empty item, used by tests and the --create flag
func (s *contentStore) ensure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		s.items[id] = &item{likes: make(map[string]bool)}
	}
}

func (s *contentStore) get(id, actor string) (*syncclient.ContentResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false
	}
	comments := append([]models.Comment{}, it.comments...)
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return &syncclient.ContentResponse{
		ID:        id,
		IsLiked:   it.likes[actor],
		LikeCount: len(it.likes),
		Comments:  comments,
	}, true
}

// apply runs one action and reports its outcome
func (s *contentStore) apply(actor string, in syncclient.ActionInput) syncclient.ActionOutcome {
	out := syncclient.ActionOutcome{Type: in.Type, TargetID: in.TargetID}

	payload, err := models.UnmarshalPayload(in.Type, in.Payload)
	if err != nil {
		out.Status = models.OutcomeInvalid
		return out
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[in.TargetID]
	if !ok {
		out.Status = models.OutcomeContentNotFound
		return out
	}

	switch p := payload.(type) {
	case models.NoPayload:
		liked := it.likes[actor]
		switch {
		case in.Type == models.ActionLike && liked:
			out.Status = models.OutcomeAlreadyLiked
		case in.Type == models.ActionLike:
			it.likes[actor] = true
			out.Status = models.OutcomeLiked
		case !liked:
			out.Status = models.OutcomeNotLiked
		default:
			delete(it.likes, actor)
			out.Status = models.OutcomeUnliked
		}
	case models.AddCommentPayload:
		if p.Text == "" {
			out.Status = models.OutcomeInvalid
			return out
		}
		c := models.Comment{
			ID:        "c-" + uuid.NewString(),
			TargetID:  in.TargetID,
			AuthorID:  actor,
			Text:      p.Text,
			CreatedAt: s.now().UTC(),
		}
		it.comments = append(it.comments, c)
		out.Status = models.OutcomeCommentAdded
		out.CommentID = c.ID
		out.Payload, _ = json.Marshal(p)
	case models.RemoveCommentPayload:
		out.Payload, _ = json.Marshal(p)
		for i, c := range it.comments {
			if c.ID == p.CommentID {
				it.comments = append(it.comments[:i], it.comments[i+1:]...)
				out.Status = models.OutcomeCommentRemoved
				out.CommentID = c.ID
				return out
			}
		}
		out.Status = models.OutcomeCommentNotFound
	}
	return out
}
