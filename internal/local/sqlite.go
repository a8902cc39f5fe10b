package local

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteFileName is the database file created inside the data directory.
const SQLiteFileName = "storytree.db"

// SQLiteKV is a KV engine backed by a single SQLite table.
type SQLiteKV struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

var _ KV = (*SQLiteKV)(nil)

// OpenSQLite opens (creating if needed) the SQLite database in dataDir and
// applies the schema. An empty dataDir means the current directory.
func OpenSQLite(dataDir string) (*SQLiteKV, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, SQLiteFileName))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps the file lock simple.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &SQLiteKV{db: db}, nil
}

// Get returns the value stored under key.
func (s *SQLiteKV) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrKVClosed
	}

	var value string
	err := s.db.QueryRow(selectRecord, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// Put creates or replaces the value stored under key.
func (s *SQLiteKV) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrKVClosed
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.Exec(upsertRecord, key, string(value), now); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLiteKV) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrKVClosed
	}

	if _, err := s.db.Exec(deleteRecord, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys returns every key with the given prefix, ascending.
func (s *SQLiteKV) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrKVClosed
	}

	rows, err := s.db.Query(selectKeysWithPrefix, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database. Idempotent.
func (s *SQLiteKV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
