// Package db is the sqlite-backed durable store for the pending-action
// queue, the temp comment id map, server snapshots and sync history.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const dbFile = "feedsync.db"

// DB wraps the database connection
type DB struct {
	conn    *sql.DB
	baseDir string
}

// Open opens (creating if needed) the database under baseDir and brings the
// schema up to date
func Open(baseDir string) (*DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(baseDir, dbFile))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets the watch view read while a CLI command writes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	db, err := Wrap(conn, baseDir)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Wrap initializes the schema on an already open connection. baseDir holds
// the write lock file.
func Wrap(conn *sql.DB, baseDir string) (*DB, error) {
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	db := &DB{conn: conn, baseDir: baseDir}
	if _, err := db.RunMigrations(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.conn.Close()
}

// BaseDir returns the directory holding the database
func (db *DB) BaseDir() string {
	return db.baseDir
}

// Conn returns the underlying connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// withWriteLock runs fn while holding the cross-process write lock
func (db *DB) withWriteLock(fn func() error) error {
	locker := newWriteLocker(db.baseDir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}
