package db

// SchemaVersion is the current database schema version
const SchemaVersion = 2

const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Single-key blobs; the pending queue lives under 'pending_actions'
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS comment_id_map (
    temp_id TEXT PRIMARY KEY,
    real_id TEXT NOT NULL,
    target_id TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS content_snapshots (
    target_id TEXT PRIMARY KEY,
    is_liked INTEGER NOT NULL DEFAULT 0,
    like_count INTEGER NOT NULL DEFAULT 0,
    comments TEXT NOT NULL DEFAULT '[]',
    fetched_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    direction TEXT NOT NULL,
    action_type TEXT NOT NULL,
    target_id TEXT NOT NULL,
    status TEXT NOT NULL,
    comment_id TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL
);
`
