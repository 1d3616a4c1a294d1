package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/feedsync/internal/models"
)

// maxHistoryRows bounds the sync_history table
const maxHistoryRows = 1000

// parseTimestamp tries the formats written by this package and by sqlite itself
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999999-07:00",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: time.RFC3339Nano, Value: s}
}

// RecordSyncHistory appends one row per action outcome and prunes old rows
func (db *DB) RecordSyncHistory(ctx context.Context, records []models.SyncRecord) error {
	if len(records) == 0 {
		return nil
	}
	return db.withWriteLock(func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		if err := recordSyncHistoryTx(tx, records); err != nil {
			tx.Rollback()
			return err
		}
		if err := pruneSyncHistory(tx, maxHistoryRows); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func recordSyncHistoryTx(tx *sql.Tx, records []models.SyncRecord) error {
	stmt, err := tx.Prepare(`
		INSERT INTO sync_history (direction, action_type, target_id, status, comment_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.Direction, string(r.ActionType), r.TargetID, string(r.Status), r.CommentID, formatTime(r.Timestamp)); err != nil {
			return err
		}
	}
	return nil
}

func pruneSyncHistory(tx *sql.Tx, maxRows int) error {
	_, err := tx.Exec(`
		DELETE FROM sync_history WHERE id NOT IN (
			SELECT id FROM sync_history ORDER BY id DESC LIMIT ?
		)
	`, maxRows)
	return err
}

// GetSyncHistoryTail returns the last limit entries, oldest first
func (db *DB) GetSyncHistoryTail(limit int) ([]models.SyncRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, direction, action_type, target_id, status, comment_id, timestamp
		FROM sync_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.SyncRecord
	for rows.Next() {
		var (
			r   models.SyncRecord
			ts  string
			typ string
			st  string
		)
		if err := rows.Scan(&r.ID, &r.Direction, &typ, &r.TargetID, &st, &r.CommentID, &ts); err != nil {
			return nil, err
		}
		r.ActionType = models.ActionType(typ)
		r.Status = models.OutcomeStatus(st)
		if r.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}
