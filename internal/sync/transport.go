// Package sync ships the pending-action queue to the batch endpoint and
// schedules when that happens.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcus/feedsync/internal/models"
	"github.com/marcus/feedsync/internal/queue"
	"github.com/marcus/feedsync/internal/reconcile"
	"github.com/marcus/feedsync/internal/syncclient"
)

var (
	// ErrRejectedBatch is returned when the server reports failure without outcomes
	ErrRejectedBatch = errors.New("batch rejected without outcomes")
	// ErrNoActor is returned when no authenticated actor is available
	ErrNoActor = errors.New("no authenticated actor")
)

// BatchClient sends one batch request
type BatchClient interface {
	SyncBatch(ctx context.Context, token string, req *syncclient.BatchRequest) (*syncclient.BatchResponse, error)
}

// HistoryRecorder persists per-action outcomes of a round
type HistoryRecorder interface {
	RecordSyncHistory(ctx context.Context, records []models.SyncRecord) error
}

// Transport performs one sync round: snapshot, send, reconcile
type Transport struct {
	Client  BatchClient
	Store   *queue.Store
	IDs     *queue.IDMap
	Cache   *reconcile.Cache
	Actor   func() string
	Token   func(ctx context.Context) (string, error)
	Timeout time.Duration // per request; 0 means no extra bound
	History HistoryRecorder
}

// RoundResult summarises a completed round
type RoundResult struct {
	Sent     int
	Resolved int
	Retained int
}

type resolution struct {
	status    models.OutcomeStatus
	commentID string
}

// Sync ships the current queue for the current actor. On request failure the
// queue is left untouched and the error is returned; per-action outcomes
// prune or retain individual entries.
func (t *Transport) Sync(ctx context.Context) (RoundResult, error) {
	actor := t.Actor()
	if actor == "" {
		return RoundResult{}, ErrNoActor
	}

	// From here on the server owns the shipped entries; new actions queue
	// behind them instead of cancelling them.
	shipped := t.Store.Checkout(func(a models.PendingAction) bool { return a.ActorID == actor })
	if len(shipped) == 0 {
		return RoundResult{}, nil
	}
	shippedIDs := make(map[string]bool, len(shipped))
	pinned := make([]string, 0, len(shipped))
	for _, a := range shipped {
		shippedIDs[a.ID] = true
		pinned = append(pinned, a.ID)
	}
	defer t.Store.ClearInFlight(pinned)

	token, err := t.Token(ctx)
	if err != nil {
		return RoundResult{}, fmt.Errorf("get token: %w", err)
	}

	req, err := t.buildRequest(actor, shipped)
	if err != nil {
		return RoundResult{}, err
	}

	reqCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	resp, err := t.Client.SyncBatch(reqCtx, token, req)
	if err != nil {
		return RoundResult{}, fmt.Errorf("sync batch: %w", err)
	}
	if !resp.Success && len(resp.Processed) == 0 {
		return RoundResult{}, ErrRejectedBatch
	}

	resolved := t.matchOutcomes(shipped, resp.Processed)
	records := make([]models.SyncRecord, 0, len(resp.Processed))
	now := time.Now().UTC()

	for _, a := range shipped {
		res, ok := resolved[a.ID]
		if !ok {
			continue
		}
		records = append(records, models.SyncRecord{
			Direction:  "push",
			ActionType: a.Type,
			TargetID:   a.TargetID,
			Status:     res.status,
			CommentID:  res.commentID,
			Timestamp:  now,
		})
		if !res.status.Terminal() {
			continue
		}
		if res.status == models.OutcomeCommentAdded && res.commentID != "" && t.IDs != nil {
			t.IDs.Record(a.CommentID(), res.commentID, a.TargetID)
		}
		if t.Cache != nil {
			t.Cache.ApplyOutcome(t.resolvePayload(a), res.status, res.commentID)
		}
		if res.status.NotFound() || res.status == models.OutcomeInvalid {
			slog.Info("sync: dropping unresolvable action", "type", a.Type, "target", a.TargetID, "status", res.status)
		}
	}

	result := RoundResult{Sent: len(shipped)}

	err = t.Store.Update(func(live []models.PendingAction) []models.PendingAction {
		kept := live[:0]
		for _, a := range live {
			if res, ok := resolved[a.ID]; ok && res.status.Terminal() {
				result.Resolved++
				continue
			}
			if shippedIDs[a.ID] {
				a.Retries++
				result.Retained++
			}
			kept = append(kept, a)
		}
		return kept
	})
	if err != nil {
		return result, fmt.Errorf("update queue: %w", err)
	}

	if t.History != nil && len(records) > 0 {
		if err := t.History.RecordSyncHistory(ctx, records); err != nil {
			slog.Warn("sync: record history", "err", err)
		}
	}

	slog.Debug("sync: round complete", "sent", result.Sent, "resolved", result.Resolved, "retained", result.Retained)
	return result, nil
}

func (t *Transport) buildRequest(actor string, shipped []models.PendingAction) (*syncclient.BatchRequest, error) {
	req := &syncclient.BatchRequest{ActorID: actor, Actions: make([]syncclient.ActionInput, 0, len(shipped))}
	for _, a := range shipped {
		raw, err := models.MarshalPayload(t.resolvePayload(a).Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload for %s: %w", a.ID, err)
		}
		req.Actions = append(req.Actions, syncclient.ActionInput{
			Type:      a.Type,
			TargetID:  a.TargetID,
			Payload:   raw,
			Timestamp: a.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	return req, nil
}

// resolvePayload swaps a temp comment id in remove_comment for its server id
func (t *Transport) resolvePayload(a models.PendingAction) models.PendingAction {
	if p, ok := a.Payload.(models.RemoveCommentPayload); ok && t.IDs != nil {
		a.Payload = models.RemoveCommentPayload{CommentID: t.IDs.Resolve(p.CommentID)}
	}
	return a
}

// outcomePayload carries the optional echo of the shipped payload
type outcomePayload struct {
	TempID    string `json:"tempId"`
	CommentID string `json:"commentId"`
}

// matchOutcomes pairs each outcome with the first unmatched shipped action of
// the same type and target. A payload echo narrows the match for comments.
func (t *Transport) matchOutcomes(shipped []models.PendingAction, outcomes []syncclient.ActionOutcome) map[string]resolution {
	matched := make(map[string]resolution, len(outcomes))
	for _, o := range outcomes {
		var echo outcomePayload
		if len(o.Payload) > 0 {
			if err := json.Unmarshal(o.Payload, &echo); err != nil {
				slog.Debug("sync: ignore outcome payload", "err", err)
			}
		}
		for _, a := range shipped {
			if _, done := matched[a.ID]; done {
				continue
			}
			if a.Type != o.Type || a.TargetID != o.TargetID {
				continue
			}
			if !t.echoMatches(a, echo) {
				continue
			}
			matched[a.ID] = resolution{status: o.Status, commentID: o.CommentID}
			break
		}
	}
	return matched
}

func (t *Transport) echoMatches(a models.PendingAction, echo outcomePayload) bool {
	switch a.Type {
	case models.ActionAddComment:
		return echo.TempID == "" || echo.TempID == a.CommentID()
	case models.ActionRemoveComment:
		if echo.CommentID == "" {
			return true
		}
		id := a.CommentID()
		if t.IDs != nil && echo.CommentID == t.IDs.Resolve(id) {
			return true
		}
		return echo.CommentID == id
	}
	return true
}
