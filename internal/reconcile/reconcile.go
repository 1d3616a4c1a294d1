// Package reconcile projects server snapshots and pending actions into the
// optimistic state every surface renders.
package reconcile

import (
	"sort"

	"github.com/marcus/feedsync/internal/models"
)

// Resolver maps a comment id to its server id (identity when unknown)
type Resolver func(id string) string

func identity(id string) string { return id }

// Derive merges a server snapshot with the pending queue for one item.
// It is pure: neither snap nor pending is modified, and equal inputs give
// equal outputs.
func Derive(snap models.Snapshot, pending []models.PendingAction, actorID string, resolve Resolver) models.DerivedState {
	if resolve == nil {
		resolve = identity
	}
	target := snap.TargetID

	state := models.DerivedState{
		TargetID:  target,
		IsLiked:   snap.IsLiked,
		LikeCount: snap.LikeCount,
	}

	var toggle *models.PendingAction
	removed := make(map[string]bool)
	var added []models.Comment

	for i := range pending {
		a := pending[i]
		if a.TargetID != target {
			continue
		}
		if a.ActorID == actorID {
			state.PendingCount++
		}
		switch a.Type {
		case models.ActionLike, models.ActionUnlike:
			if a.ActorID != actorID {
				continue
			}
			if toggle == nil || !a.Timestamp.Before(toggle.Timestamp) {
				toggle = &pending[i]
			}
		case models.ActionAddComment:
			added = append(added, models.Comment{
				ID:        a.CommentID(),
				TargetID:  target,
				AuthorID:  a.ActorID,
				Text:      a.CommentText(),
				CreatedAt: a.Timestamp,
				Pending:   true,
			})
		case models.ActionRemoveComment:
			removed[resolve(a.CommentID())] = true
		}
	}

	if toggle != nil {
		switch toggle.Type {
		case models.ActionLike:
			if !snap.IsLiked {
				state.LikeCount++
			}
			state.IsLiked = true
		case models.ActionUnlike:
			if snap.IsLiked {
				state.LikeCount--
			}
			state.IsLiked = false
		}
	}
	if state.LikeCount < 0 {
		state.LikeCount = 0
	}

	state.Comments = mergeComments(snap.Comments, added, removed, resolve)
	state.CommentCount = len(state.Comments)
	return state
}

// mergeComments returns server comments plus pending adds, minus pending
// removes, de-duplicated by resolved id, oldest first.
func mergeComments(server, added []models.Comment, removed map[string]bool, resolve Resolver) []models.Comment {
	seen := make(map[string]bool, len(server)+len(added))
	out := make([]models.Comment, 0, len(server)+len(added))

	for _, list := range [][]models.Comment{server, added} {
		for _, c := range list {
			id := resolve(c.ID)
			if removed[id] || removed[c.ID] || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
