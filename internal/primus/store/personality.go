package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bdobrica/Primus/internal/primus/persona"
)

// GetPersonality returns the stored disposition, or nil when none has been
// saved yet.
func (s *Store) GetPersonality(ctx context.Context) (*persona.Disposition, error) {
	var d persona.Disposition
	err := s.db.QueryRowContext(ctx,
		`SELECT energy, warmth, empathy FROM personality WHERE id = 1`,
	).Scan(&d.Energy, &d.Warmth, &d.Empathy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get personality: %w", err)
	}
	return &d, nil
}

// SavePersonality overwrites the stored disposition.
func (s *Store) SavePersonality(ctx context.Context, d persona.Disposition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO personality (id, energy, warmth, empathy, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			energy     = excluded.energy,
			warmth     = excluded.warmth,
			empathy    = excluded.empathy,
			updated_at = excluded.updated_at
	`, d.Energy, d.Warmth, d.Empathy, toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("store: save personality: %w", err)
	}
	return nil
}
