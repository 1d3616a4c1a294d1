package db

import (
	"database/sql"
	"fmt"
)

// Migration defines a schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the ordered list of schema changes applied after the base schema
var Migrations = []Migration{
	{
		Version:     2,
		Description: "Add sync_state and sync_history index",
		SQL: `
CREATE TABLE IF NOT EXISTS sync_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    actor_id TEXT NOT NULL DEFAULT '',
    last_sync_at TEXT,
    last_error TEXT NOT NULL DEFAULT '',
    last_sent INTEGER NOT NULL DEFAULT 0,
    last_resolved INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sync_history_target ON sync_history(target_id);
`,
	},
}

// GetSchemaVersion returns the stored schema version, 0 when unset
func (db *DB) GetSchemaVersion() (int, error) {
	var v int
	err := db.conn.QueryRow("SELECT CAST(value AS INTEGER) FROM schema_info WHERE key = 'version'").Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (db *DB) setSchemaVersion(version int) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", version))
	return err
}

// RunMigrations applies pending migrations and returns how many ran
func (db *DB) RunMigrations() (int, error) {
	current, err := db.GetSchemaVersion()
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	if current >= SchemaVersion {
		return 0, nil
	}

	run := 0
	err = db.withWriteLock(func() error {
		// A fresh database starts at version 1, the base schema
		if current == 0 {
			current = 1
		}
		for _, m := range Migrations {
			if m.Version <= current {
				continue
			}
			if _, err := db.conn.Exec(m.SQL); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
			}
			if err := db.setSchemaVersion(m.Version); err != nil {
				return fmt.Errorf("set version %d: %w", m.Version, err)
			}
			run++
		}
		return db.setSchemaVersion(SchemaVersion)
	})
	return run, err
}
