package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/bdobrica/Primus/internal/primus/memory"
)

// CreateSession starts a new conversation.
func (s *Store) CreateSession(ctx context.Context, title string) (*memory.Session, error) {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (title, created_at, updated_at) VALUES (?, ?, ?)`,
		title, toMillis(now), toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	return &memory.Session{ID: id, Title: title, CreatedAt: fromMillis(toMillis(now)), UpdatedAt: fromMillis(toMillis(now))}, nil
}

// GetSession returns the session with the given ID or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id int64) (*memory.Session, error) {
	var sess memory.Session
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session %d: %w", id, err)
	}
	sess.CreatedAt, sess.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &sess, nil
}

// LatestSession returns the most recently updated session, or nil when there
// is none.
func (s *Store) LatestSession(ctx context.Context) (*memory.Session, error) {
	var sess memory.Session
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`).Scan(&sess.ID, &sess.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest session: %w", err)
	}
	sess.CreatedAt, sess.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &sess, nil
}

// EnsureSession returns the latest session, creating one titled title when
// the database is empty.
func (s *Store) EnsureSession(ctx context.Context, title string) (*memory.Session, error) {
	sess, err := s.LatestSession(ctx)
	if err != nil || sess != nil {
		return sess, err
	}
	return s.CreateSession(ctx, title)
}

// InsertTurn stores t and bumps the owning session's updated_at.
func (s *Store) InsertTurn(ctx context.Context, t memory.Turn) (int64, error) {
	created := s.stamp(t.CreatedAt)
	updated := t.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: insert turn: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.SessionID, string(t.Role), t.Content, toMillis(created), toMillis(updated))
	if err != nil {
		return 0, fmt.Errorf("store: insert turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert turn: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = MAX(updated_at, ?) WHERE id = ?`,
		toMillis(created), t.SessionID,
	); err != nil {
		return 0, fmt.Errorf("store: touch session %d: %w", t.SessionID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: insert turn: %w", err)
	}
	return id, nil
}

// ListRecentTurns returns up to limit of the newest turns, oldest first.
// sessionID 0 lists across sessions; a non-positive limit lists everything.
func (s *Store) ListRecentTurns(ctx context.Context, sessionID int64, limit int) ([]memory.Turn, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at, updated_at
		FROM messages
		WHERE ? = 0 OR session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, sessionID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list turns: %w", err)
	}
	defer rows.Close()

	var turns []memory.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list turns: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list turns: %w", err)
	}
	slices.Reverse(turns)
	return turns, nil
}

// LatestTurn returns the newest turn of any session, or nil when there is
// none.
func (s *Store) LatestTurn(ctx context.Context) (*memory.Turn, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, role, content, created_at, updated_at
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)
	t, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest turn: %w", err)
	}
	return &t, nil
}

// TurnCount returns the number of stored turns.
func (s *Store) TurnCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count turns: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(sc scanner) (memory.Turn, error) {
	var t memory.Turn
	var role string
	var created, updated int64
	if err := sc.Scan(&t.ID, &t.SessionID, &role, &t.Content, &created, &updated); err != nil {
		return memory.Turn{}, err
	}
	t.Role = memory.ParseRole(role)
	t.CreatedAt, t.UpdatedAt = fromMillis(created), fromMillis(updated)
	return t, nil
}
