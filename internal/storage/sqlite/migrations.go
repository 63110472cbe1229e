package sqlite

// schema contains the database schema DDL.
const schema = `
-- Connection registry
CREATE TABLE IF NOT EXISTS connections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uid TEXT NOT NULL UNIQUE,
    last_seen INTEGER NOT NULL
);

-- Reading log (append-only)
CREATE TABLE IF NOT EXISTS readings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uid TEXT NOT NULL,
    value REAL NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_created_at ON readings(created_at);

-- Broadcast queue (append-only)
CREATE TABLE IF NOT EXISTS queued_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    payload TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queued_messages_created_at ON queued_messages(created_at);

-- Per-client delivery marks; the primary key keeps the pair unique
CREATE TABLE IF NOT EXISTS delivery_marks (
    uid TEXT NOT NULL,
    queued_message_id INTEGER NOT NULL REFERENCES queued_messages(id),
    PRIMARY KEY (uid, queued_message_id)
);
`
