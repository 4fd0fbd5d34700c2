// Package kvstore is the persisted key-value capability: credential token,
// branch identifier, approval flag and the cached wallet balance. A single
// SQLite table keeps the daemon free of any database server.
package kvstore

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

// Well-known keys
const (
	KeyAuthToken     = "auth_token"
	KeyBranchID      = "branch_id"
	KeyApproved      = "branch_approved"
	KeyWalletBalance = "wallet_balance"
)

// Store is a synchronous string key-value map backed by one SQLite file
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the store at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open kv store: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize kv store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value for key; ok is false when the key is absent
func (s *Store) Get(key string) (value string, ok bool, err error) {
	err = s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any existing value
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting an absent key is not an error
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

// GetBool reads a boolean value, defaulting to false when absent
func (s *Store) GetBool(key string) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	return raw == "true", nil
}

// SetBool stores a boolean value
func (s *Store) SetBool(key string, value bool) error {
	return s.Set(key, strconv.FormatBool(value))
}

// GetInt64 reads a numeric value, defaulting to zero when absent
func (s *Store) GetInt64(key string) (int64, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("kv %q holds non-numeric value: %w", key, err)
	}
	return n, nil
}

// SetInt64 stores a numeric value
func (s *Store) SetInt64(key string, value int64) error {
	return s.Set(key, strconv.FormatInt(value, 10))
}

// Credentials adapts the store to the gateway's credential source: the
// bearer token lives under KeyAuthToken and Clear implements the global
// 401 side effect.
type Credentials struct {
	store *Store
}

// NewCredentials wraps the store as a credential source
func NewCredentials(store *Store) *Credentials {
	return &Credentials{store: store}
}

// Token returns the stored bearer token
func (c *Credentials) Token() (string, error) {
	token, ok, err := c.store.Get(KeyAuthToken)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no stored credential")
	}
	return token, nil
}

// Clear removes the stored bearer token
func (c *Credentials) Clear() error {
	return c.store.Delete(KeyAuthToken)
}
