package db

import (
	"context"
	"database/sql"
	"time"
)

// SyncState summarises the last completed sync round, shared between
// processes so `sync --status` can report what the watch view did.
type SyncState struct {
	ActorID      string
	LastSyncAt   *time.Time
	LastError    string
	LastSent     int
	LastResolved int
}

// GetSyncState returns the stored state, or nil if no round has run yet
func (db *DB) GetSyncState() (*SyncState, error) {
	var (
		s    SyncState
		last sql.NullString
	)
	err := db.conn.QueryRow(`
		SELECT actor_id, last_sync_at, last_error, last_sent, last_resolved
		FROM sync_state WHERE id = 1
	`).Scan(&s.ActorID, &last, &s.LastError, &s.LastSent, &s.LastResolved)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if last.Valid && last.String != "" {
		t, err := parseTimestamp(last.String)
		if err != nil {
			return nil, err
		}
		s.LastSyncAt = &t
	}
	return &s, nil
}

// RecordSyncSuccess stores a successful round
func (db *DB) RecordSyncSuccess(ctx context.Context, actorID string, sent, resolved int, at time.Time) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT OR REPLACE INTO sync_state (id, actor_id, last_sync_at, last_error, last_sent, last_resolved)
			VALUES (1, ?, ?, '', ?, ?)
		`, actorID, formatTime(at), sent, resolved)
		return err
	})
}

// RecordSyncError stores the error of a failed round, keeping the last success time
func (db *DB) RecordSyncError(ctx context.Context, actorID string, syncErr error) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO sync_state (id, actor_id, last_error) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET actor_id = excluded.actor_id, last_error = excluded.last_error
		`, actorID, syncErr.Error())
		return err
	})
}
