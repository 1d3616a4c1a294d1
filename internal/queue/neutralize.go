package queue

import "github.com/marcus/feedsync/internal/models"

// Neutralize reconciles an incoming action against the pending queue.
// It returns the queue with cancelled entries dropped and whether the
// incoming action should still be appended. The input slice is not modified.
//
//   - like after unlike (or the reverse) for the same actor and target: both vanish
//   - like after like: the older entry is dropped, the newer one is appended
//   - remove_comment for a still-pending add_comment: both vanish
func Neutralize(pending []models.PendingAction, incoming models.PendingAction) ([]models.PendingAction, bool) {
	next := make([]models.PendingAction, 0, len(pending)+1)
	enqueue := true

	for _, existing := range pending {
		if !existing.SamePair(incoming) {
			next = append(next, existing)
			continue
		}

		switch {
		case incoming.Type.IsToggle() && existing.Type == incoming.Type.Opposite():
			enqueue = false
			continue
		case incoming.Type.IsToggle() && existing.Type == incoming.Type:
			continue
		case incoming.Type == models.ActionRemoveComment &&
			existing.Type == models.ActionAddComment &&
			existing.CommentID() == incoming.CommentID():
			enqueue = false
			continue
		}
		next = append(next, existing)
	}

	return next, enqueue
}
