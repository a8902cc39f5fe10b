package local

// Schema DDL for the SQLite engine. A single table holds every record; the
// key namespaces (story-trees, tree-<id>, ...) are defined by Store.
const (
	createRecords = `CREATE TABLE IF NOT EXISTS records (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	upsertRecord = `INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`

	selectRecord = `SELECT value FROM records WHERE key = ?`

	deleteRecord = `DELETE FROM records WHERE key = ?`

	selectKeysWithPrefix = `SELECT key FROM records WHERE substr(key, 1, ?) = ? ORDER BY key`
)

// schemaDDL lists the statements run on open, in order.
var schemaDDL = []string{
	createRecords,
}
