// Package sqlite implements a durable domain.TaskStore on SQLite.
//
// All filter and sort semantics live in the domain package;
// this store only persists rows and scopes queries to the owner.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/taskchat/taskchat/internal/domain"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if necessary) the database at path and runs
// migrations.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// modernc sqlite is single-writer; serialize access at the pool level.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock overrides the store clock; used by tests for date-range cases.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id           TEXT PRIMARY KEY,
			owner_id     TEXT NOT NULL,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			due_date     TEXT,
			priority     TEXT NOT NULL,
			status       TEXT NOT NULL,
			tags         TEXT NOT NULL DEFAULT '[]',
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,
			completed_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("migrating tasks table: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, owner domain.UserID, draft domain.TaskDraft) (*domain.Task, error) {
	task, err := domain.NewTask(domain.TaskID(uuid.NewString()), owner, draft, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Store) Get(ctx context.Context, owner domain.UserID, id domain.TaskID) (*domain.Task, error) {
	return s.fetch(ctx, owner, id)
}

func (s *Store) Update(ctx context.Context, owner domain.UserID, id domain.TaskID, patch domain.TaskPatch) (*domain.Task, error) {
	return s.replace(ctx, owner, id, func(current *domain.Task) (*domain.Task, error) {
		return domain.PatchTask(current, patch, s.now())
	})
}

func (s *Store) Complete(ctx context.Context, owner domain.UserID, id domain.TaskID) (*domain.Task, error) {
	return s.replace(ctx, owner, id, func(current *domain.Task) (*domain.Task, error) {
		return domain.CompleteTask(current, s.now()), nil
	})
}

func (s *Store) Reopen(ctx context.Context, owner domain.UserID, id domain.TaskID) (*domain.Task, error) {
	return s.replace(ctx, owner, id, func(current *domain.Task) (*domain.Task, error) {
		return domain.ReopenTask(current, s.now()), nil
	})
}

func (s *Store) Delete(ctx context.Context, owner domain.UserID, id domain.TaskID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND owner_id = ?`, string(id), string(owner))
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, owner domain.UserID, filter domain.TaskFilter) ([]*domain.Task, error) {
	tasks, err := s.listOwned(ctx, owner)
	if err != nil {
		return nil, err
	}
	return domain.FilterTasks(tasks, filter, s.now()), nil
}

func (s *Store) Stats(ctx context.Context, owner domain.UserID) (domain.TaskStats, error) {
	tasks, err := s.listOwned(ctx, owner)
	if err != nil {
		return domain.TaskStats{}, err
	}
	return domain.ComputeStats(tasks, s.now()), nil
}

// replace runs a read-modify-write inside one transaction: the merged,
// re-validated record overwrites the row as a whole, never a field at a
// time.
func (s *Store) replace(
	ctx context.Context,
	owner domain.UserID,
	id domain.TaskID,
	mutate func(*domain.Task) (*domain.Task, error),
) (*domain.Task, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	current, err := scanTask(tx.QueryRowContext(ctx, selectTask+` WHERE id = ? AND owner_id = ?`,
		string(id), string(owner)))
	if err != nil {
		return nil, err
	}

	next, err := mutate(current)
	if err != nil {
		return nil, err
	}

	tags, err := json.Marshal(next.Tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, due_date = ?, priority = ?, status = ?,
		    tags = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`,
		next.Title, next.Description, encodeTime(next.DueDate),
		string(next.Priority), string(next.Status), string(tags),
		next.UpdatedAt.Format(time.RFC3339Nano), encodeTime(next.CompletedAt),
		string(next.ID))
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}
	return next, nil
}

const selectTask = `
	SELECT id, owner_id, title, description, due_date, priority, status,
	       tags, created_at, updated_at, completed_at
	FROM tasks`

func (s *Store) insert(ctx context.Context, t *domain.Task) error {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, owner_id, title, description, due_date, priority,
		                   status, tags, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.ID), string(t.OwnerID), t.Title, t.Description,
		encodeTime(t.DueDate), string(t.Priority), string(t.Status), string(tags),
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano),
		encodeTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

func (s *Store) fetch(ctx context.Context, owner domain.UserID, id domain.TaskID) (*domain.Task, error) {
	return scanTask(s.db.QueryRowContext(ctx, selectTask+` WHERE id = ? AND owner_id = ?`,
		string(id), string(owner)))
}

func (s *Store) listOwned(ctx context.Context, owner domain.UserID) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, selectTask+` WHERE owner_id = ?`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t                            domain.Task
		id, owner, priority, status  string
		dueDate, completedAt         sql.NullString
		tags, createdAt, updatedAt   string
	)
	err := row.Scan(&id, &owner, &t.Title, &t.Description, &dueDate, &priority,
		&status, &tags, &createdAt, &updatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	t.ID = domain.TaskID(id)
	t.OwnerID = domain.UserID(owner)
	t.Priority = domain.Priority(priority)
	t.Status = domain.Status(status)

	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("decoding created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("decoding updated_at: %w", err)
	}
	if t.DueDate, err = decodeTime(dueDate); err != nil {
		return nil, fmt.Errorf("decoding due_date: %w", err)
	}
	if t.CompletedAt, err = decodeTime(completedAt); err != nil {
		return nil, fmt.Errorf("decoding completed_at: %w", err)
	}
	return &t, nil
}

func encodeTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func decodeTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
