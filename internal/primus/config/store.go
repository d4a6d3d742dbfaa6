// Package config is the runtime settings store: a small key/value table in
// the Primus database holding values that change while the process runs,
// such as the autonomy budget and the user's consent to proactive messages.
//
// Static configuration comes from the environment and the engine profile;
// nothing secret is kept here.
package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bdobrica/Primus/internal/primus/store"
)

// ErrNotFound is returned by Get when the requested key does not exist.
var ErrNotFound = errors.New("config: key not found")

// Store reads and writes settings. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set creates or overwrites key.
	Set(ctx context.Context, key string, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns a snapshot of all settings; empty, never nil.
	List(ctx context.Context) (map[string]string, error)
}

type sqliteStore struct {
	db *store.Store
}

// New returns a Store over the config table of db.
func New(db *store.Store) Store {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT value FROM config WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("config: get %q: %w", key, err)
	}
	return value, nil
}

func (s *sqliteStore) Set(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO config (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("config: set %q: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.DB().ExecContext(ctx, `DELETE FROM config WHERE key = ?`, key); err != nil {
		return fmt.Errorf("config: delete %q: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) List(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.DB().QueryContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("config: list: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("config: list scan: %w", err)
		}
		result[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("config: list rows: %w", err)
	}
	return result, nil
}

// SetDefault writes value under key only when key is absent. It reports
// whether it wrote.
func SetDefault(ctx context.Context, s Store, key, value string) (bool, error) {
	_, err := s.Get(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := s.Set(ctx, key, value); err != nil {
		return false, err
	}
	return true, nil
}

// IntOr returns key parsed as an integer, or def when it is absent.
func IntOr(ctx context.Context, s Store, key string, def int) (int, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %q is not an integer: %w", key, err)
	}
	return n, nil
}
