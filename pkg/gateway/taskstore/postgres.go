package taskstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Postgres is the production Store on a pgx connection pool. Every
// method issues a single statement; ownership is enforced in the
// WHERE clause so one user can never touch another's rows.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const taskColumns = "id, user_id, kind, title, description, priority, due_at, end_at, location, completed, created_at, updated_at"

func (s *Postgres) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.UserID, t.Kind, t.Title, t.Description, t.Priority,
		t.DueAt, t.EndAt, t.Location, t.Completed, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("taskstore: create task: %w", err)
	}
	return nil
}

func (s *Postgres) GetTask(ctx context.Context, userID, id string) (*Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 AND id = $2`,
		userID, id)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("taskstore: get task %s: %w", id, err)
	}
	return t, nil
}

func (s *Postgres) UpdateTask(ctx context.Context, userID, id string, upd Update) (*Task, error) {
	sets := []string{"updated_at = now()"}
	args := []any{userID, id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Priority != nil {
		add("priority", *upd.Priority)
	}
	if upd.DueAt != nil {
		add("due_at", *upd.DueAt)
	}
	if upd.EndAt != nil {
		add("end_at", *upd.EndAt)
	}
	if upd.Location != nil {
		add("location", *upd.Location)
	}
	if upd.Completed != nil {
		add("completed", *upd.Completed)
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+
			` WHERE user_id = $1 AND id = $2 RETURNING `+taskColumns,
		args...)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("taskstore: update task %s: %w", id, err)
	}
	return t, nil
}

func (s *Postgres) DeleteTask(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tasks WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("taskstore: delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) QueryTasks(ctx context.Context, userID string, q Query) ([]Task, error) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q.Kind != "" {
		add("kind = $%d", q.Kind)
	}
	if q.Completed != nil {
		add("completed = $%d", *q.Completed)
	}
	if q.Priority != "" {
		add("priority = $%d", q.Priority)
	}
	if q.DueBefore != nil {
		add("due_at <= $%d", *q.DueBefore)
	}

	sql := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("taskstore: query tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("taskstore: scan task: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("taskstore: query tasks: %w", err)
	}
	return out, nil
}

func (s *Postgres) UserByPIN(ctx context.Context, pin string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, voice_pin FROM users WHERE voice_pin = $1`, pin).
		Scan(&u.ID, &u.Name, &u.VoicePIN)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("taskstore: user by pin: %w", err)
	}
	return &u, nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.UserID, &t.Kind, &t.Title, &t.Description,
		&t.Priority, &t.DueAt, &t.EndAt, &t.Location, &t.Completed,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
