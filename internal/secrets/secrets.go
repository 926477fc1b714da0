// Package secrets stores typed values (OAuth tokens, cached profiles) under string keys.
//
// Values are JSON encoded. [MemoryStore] keeps them in process memory and [SQLStore] in the secrets table of the application database.
// Writes are last-writer-wins.
package secrets

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Store is a key/value secret store.
type Store interface {
	// Save encodes v and stores it under key, replacing any previous value.
	Save(key string, v any) error
	// Load decodes the value stored under key into v. It reports false with a nil error when the key is absent.
	Load(key string, v any) (bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// MemoryStore is an in-process [Store].
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (m *MemoryStore) Save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = data
	return nil
}

func (m *MemoryStore) Load(key string, v any) (bool, error) {
	m.mu.RLock()
	data, ok := m.values[key]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Keys returns the stored keys in no particular order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}

// SQLStore is a [Store] backed by the secrets table.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps a migrated database.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	query := `
		INSERT INTO secrets (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.Exec(query, key, string(data)); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Load(key string, v any) (bool, error) {
	var value string
	err := s.db.Get(&value, "SELECT value FROM secrets WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(value), v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLStore) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM secrets WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
