package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bdobrica/Primus/internal/primus/autonomy"
)

// UpsertBelief stores value under key, replacing any previous value.
func (s *Store) UpsertBelief(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO beliefs (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("store: upsert belief %q: %w", key, err)
	}
	return nil
}

// GetBelief returns the value stored under key or ErrNotFound.
func (s *Store) GetBelief(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM beliefs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get belief %q: %w", key, err)
	}
	return value, nil
}

// ListBeliefs returns every belief ordered by key.
func (s *Store) ListBeliefs(ctx context.Context) ([]autonomy.Belief, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, key, value, updated_at FROM beliefs ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("store: list beliefs: %w", err)
	}
	defer rows.Close()

	var out []autonomy.Belief
	for rows.Next() {
		var b autonomy.Belief
		var updated int64
		if err := rows.Scan(&b.ID, &b.Key, &b.Value, &updated); err != nil {
			return nil, fmt.Errorf("store: list beliefs: %w", err)
		}
		b.UpdatedAt = fromMillis(updated)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list beliefs: %w", err)
	}
	return out, nil
}
