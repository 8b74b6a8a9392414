package statestore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Store provides SQLite persistence for charm unit state.
type Store struct {
	db *sql.DB
}

// Open initializes a store at the given path and runs migrations.
// WAL mode plus busy_timeout avoids "database locked" errors when a hook
// and a debugging session touch the file at the same time.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)
	return open(dsn)
}

// OpenMemory initializes an in-memory store, used by tests and the charm
// test harness.
func OpenMemory() (*Store, error) {
	return open(":memory:")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Hooks are single-threaded; one connection keeps the in-memory
	// variant from silently splitting into separate databases.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs database schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deferred (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payload TEXT NOT NULL,
		queued_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get reads a stored value into out and reports whether the key existed.
func (s *Store) Get(key string, out any) (bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// Set stores a value under key, replacing any previous value.
func (s *Store) Set(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	query := `
	INSERT INTO kv (key, value)
	VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.Exec(query, key, string(encoded)); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// PushDeferred appends an event payload to the deferred queue and returns
// its queue ID.
func (s *Store) PushDeferred(payload []byte) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO deferred (payload, queued_at) VALUES (?, ?)`,
		string(payload), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("queue deferred event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("queue deferred event: %w", err)
	}
	return id, nil
}

// EachDeferred calls fn for every queued payload in insertion order. The
// rows are read fully before any callback runs, so fn may call
// RemoveDeferred on the entry it was given.
func (s *Store) EachDeferred(fn func(id int64, payload []byte) error) error {
	rows, err := s.db.Query(`SELECT id, payload FROM deferred ORDER BY id`)
	if err != nil {
		return fmt.Errorf("list deferred events: %w", err)
	}

	type entry struct {
		id      int64
		payload string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.payload); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan deferred event: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("list deferred events: %w", err)
	}
	_ = rows.Close()

	for _, e := range entries {
		if err := fn(e.id, []byte(e.payload)); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDeferred drops a queued event by ID.
func (s *Store) RemoveDeferred(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM deferred WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove deferred event %d: %w", id, err)
	}
	return nil
}
