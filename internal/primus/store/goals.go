package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bdobrica/Primus/internal/primus/autonomy"
)

// InsertGoal stores g and returns its ID. An empty status means TODO.
func (s *Store) InsertGoal(ctx context.Context, g autonomy.Goal) (int64, error) {
	if g.Status == "" {
		g.Status = autonomy.GoalTodo
	}
	created := s.stamp(g.CreatedAt)
	var due sql.NullInt64
	if g.DueAt != nil {
		due = sql.NullInt64{Int64: toMillis(*g.DueAt), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (title, priority, status, due_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, g.Title, g.Priority, string(g.Status), due, toMillis(created), toMillis(created))
	if err != nil {
		return 0, fmt.Errorf("store: insert goal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert goal: %w", err)
	}
	return id, nil
}

// ListGoals returns all goals, highest priority first.
func (s *Store) ListGoals(ctx context.Context) ([]autonomy.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, priority, status, due_at, created_at, updated_at
		FROM goals
		ORDER BY priority DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list goals: %w", err)
	}
	defer rows.Close()

	var out []autonomy.Goal
	for rows.Next() {
		var g autonomy.Goal
		var status string
		var due sql.NullInt64
		var created, updated int64
		if err := rows.Scan(&g.ID, &g.Title, &g.Priority, &status, &due, &created, &updated); err != nil {
			return nil, fmt.Errorf("store: list goals: %w", err)
		}
		g.Status = autonomy.GoalStatus(status)
		if due.Valid {
			t := fromMillis(due.Int64)
			g.DueAt = &t
		}
		g.CreatedAt, g.UpdatedAt = fromMillis(created), fromMillis(updated)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list goals: %w", err)
	}
	return out, nil
}

// UpdateGoalStatus moves goal id to status. It returns ErrNotFound for an
// unknown ID.
func (s *Store) UpdateGoalStatus(ctx context.Context, id int64, status autonomy.GoalStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("store: update goal %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update goal %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
