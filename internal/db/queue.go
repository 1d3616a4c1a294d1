package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcus/feedsync/internal/models"
)

const pendingActionsKey = "pending_actions"

// LoadQueue returns the persisted pending actions, nil when none were saved
func (db *DB) LoadQueue(ctx context.Context) ([]models.PendingAction, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, pendingActionsKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	var actions []models.PendingAction
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return actions, nil
}

// SaveQueue overwrites the persisted queue with actions
func (db *DB) SaveQueue(ctx context.Context, actions []models.PendingAction) error {
	if actions == nil {
		actions = []models.PendingAction{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	return db.withWriteLock(func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		`, pendingActionsKey, string(data), formatTime(time.Now()))
		return err
	})
}

// LoadIDMap returns every recorded temp→real comment id pair
func (db *DB) LoadIDMap(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT temp_id, real_id FROM comment_id_map`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]string)
	for rows.Next() {
		var tempID, realID string
		if err := rows.Scan(&tempID, &realID); err != nil {
			return nil, err
		}
		ids[tempID] = realID
	}
	return ids, rows.Err()
}

// SaveIDMapping records one temp→real comment id pair
func (db *DB) SaveIDMapping(ctx context.Context, tempID, realID, targetID string, at time.Time) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT OR REPLACE INTO comment_id_map (temp_id, real_id, target_id, created_at)
			VALUES (?, ?, ?, ?)
		`, tempID, realID, targetID, formatTime(at))
		return err
	})
}

// LoadSnapshots returns every cached server snapshot
func (db *DB) LoadSnapshots(ctx context.Context) ([]models.Snapshot, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT target_id, is_liked, like_count, comments, fetched_at FROM content_snapshots
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []models.Snapshot
	for rows.Next() {
		var (
			s        models.Snapshot
			liked    int
			comments string
			fetched  string
		)
		if err := rows.Scan(&s.TargetID, &liked, &s.LikeCount, &comments, &fetched); err != nil {
			return nil, err
		}
		s.IsLiked = liked != 0
		if err := json.Unmarshal([]byte(comments), &s.Comments); err != nil {
			return nil, fmt.Errorf("decode comments for %s: %w", s.TargetID, err)
		}
		if s.FetchedAt, err = parseTimestamp(fetched); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// SaveSnapshot upserts the server snapshot for one content item
func (db *DB) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	comments := snap.Comments
	if comments == nil {
		comments = []models.Comment{}
	}
	data, err := json.Marshal(comments)
	if err != nil {
		return fmt.Errorf("encode comments: %w", err)
	}
	liked := 0
	if snap.IsLiked {
		liked = 1
	}
	return db.withWriteLock(func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT OR REPLACE INTO content_snapshots (target_id, is_liked, like_count, comments, fetched_at)
			VALUES (?, ?, ?, ?, ?)
		`, snap.TargetID, liked, snap.LikeCount, string(data), formatTime(snap.FetchedAt))
		return err
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
