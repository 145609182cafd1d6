// Package postgres persists scheduled tasks in PostgreSQL. The
// execute_at column stores the fixed-width UTC string unchanged, so the
// database orders tasks exactly the way the in-memory timeline does.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/relaycore/relaycore/internal/domain"
	"github.com/relaycore/relaycore/internal/scheduler"
)

var ErrDuplicateTask = errors.New("postgres: task id already exists")

// Store implements scheduler.Store on a PostgreSQL database.
type Store struct {
	db *sql.DB
}

var _ scheduler.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL, verifies the connection, and ensures the
// schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the scheduled_tasks table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, querySchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// GetAll returns every persisted task in execute_at order.
func (s *Store) GetAll(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllTasks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		var task domain.ScheduledTask
		var rawContext []byte

		if err := rows.Scan(&task.ID, &task.ExecuteAt, &task.Intent, &rawContext); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawContext, &task.Context); err != nil {
			return nil, fmt.Errorf("decode task %s context: %w", task.ID, err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Add persists a task. Returns ErrDuplicateTask if the id already exists.
func (s *Store) Add(ctx context.Context, task domain.ScheduledTask) error {
	rawContext, err := json.Marshal(task.Context)
	if err != nil {
		return fmt.Errorf("encode task context: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryInsertTask, task.ID, task.ExecuteAt, task.Intent, rawContext)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateTask
		}
		return err
	}
	return nil
}

// Remove deletes a task, reporting whether a record existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, queryDeleteTask, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping reports database reachability, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// isDuplicateKeyError matches the PostgreSQL unique violation (23505)
// by message, which covers both lib/pq and pgx drivers.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
