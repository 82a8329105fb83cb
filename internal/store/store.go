// Package store provides the SQLite-backed key-value state store. Every
// entity collection is one JSON blob per (user, key); all mutations run as
// pure previous-value to next-value functions inside a transaction.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Fixed collection keys. A user's full persisted footprint is the set of
// state rows carrying their user id, which is what DeleteUserData removes.
const (
	KeyNotes     = "notes"
	KeyEvents    = "events"
	KeyReminders = "reminders"
	KeyApps      = "apps"
	KeyMemory    = "memory"
	KeyChat      = "chat"
	KeySettings  = "settings"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS state (
	user_id    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, key)
);

CREATE INDEX IF NOT EXISTS idx_state_user ON state(user_id);
`

// Store wraps a sql.DB with state-blob operations.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Get returns the raw blob for (user, key). Missing rows return (nil, nil):
// an absent collection and an empty one are equivalent to callers.
func (s *Store) Get(user, key string) ([]byte, error) {
	var value string
	err := s.conn.QueryRow(`SELECT value FROM state WHERE user_id = ? AND key = ?`, user, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", user, key, err)
	}
	return []byte(value), nil
}

// Put replaces the blob for (user, key).
func (s *Store) Put(user, key string, value []byte) error {
	_, err := s.conn.Exec(`
		INSERT INTO state (user_id, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, user, key, string(value))
	if err != nil {
		return fmt.Errorf("store: put %s/%s: %w", user, key, err)
	}
	return nil
}

// Update applies fn to the current blob and writes the result, all within
// one transaction. fn receives nil when the row does not exist yet and must
// be a pure function of its input so concurrent writers never lose updates.
func (s *Store) Update(user, key string, fn func(prev []byte) ([]byte, error)) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var prev []byte
	var value string
	err = tx.QueryRow(`SELECT value FROM state WHERE user_id = ? AND key = ?`, user, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		prev = nil
	case err != nil:
		return fmt.Errorf("store: read %s/%s: %w", user, key, err)
	default:
		prev = []byte(value)
	}

	next, err := fn(prev)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO state (user_id, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, user, key, string(next))
	if err != nil {
		return fmt.Errorf("store: write %s/%s: %w", user, key, err)
	}
	return tx.Commit()
}

// Users returns every distinct user id with stored state.
func (s *Store) Users() ([]string, error) {
	rows, err := s.conn.Query(`SELECT DISTINCT user_id FROM state ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("store: users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Keys returns every state key stored for the user.
func (s *Store) Keys(user string) ([]string, error) {
	rows, err := s.conn.Query(`SELECT key FROM state WHERE user_id = ? ORDER BY key`, user)
	if err != nil {
		return nil, fmt.Errorf("store: keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// DeleteUserData removes every state row carrying the user's id.
func (s *Store) DeleteUserData(user string) error {
	if _, err := s.conn.Exec(`DELETE FROM state WHERE user_id = ?`, user); err != nil {
		return fmt.Errorf("store: delete user data: %w", err)
	}
	return nil
}
