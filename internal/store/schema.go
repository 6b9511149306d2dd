package store

// migrations holds the versioned schema, applied in order on top of the
// database's user_version. Never edit an entry in place; append a new one.
var migrations = []string{
	// v1: collections, records, and contents.
	`
CREATE TABLE IF NOT EXISTS collections (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    parent_id TEXT NOT NULL DEFAULT '',
    unread_count INTEGER NOT NULL DEFAULT 0,
    total_count INTEGER NOT NULL DEFAULT 0,
    delta_cursor TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS records (
    collection_id TEXT NOT NULL,
    uid TEXT NOT NULL,
    change_key TEXT NOT NULL DEFAULT '',
    flags INTEGER NOT NULL DEFAULT 0,
    server_flags INTEGER NOT NULL DEFAULT 0,
    categories TEXT NOT NULL DEFAULT '[]',
    dirty INTEGER NOT NULL DEFAULT 0,
    summary BLOB,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection_id, uid),
    FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_records_dirty
    ON records(collection_id, dirty) WHERE dirty = 1;

CREATE TABLE IF NOT EXISTS contents (
    collection_id TEXT NOT NULL,
    uid TEXT NOT NULL,
    body BLOB NOT NULL,
    fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection_id, uid)
);
`,
}
