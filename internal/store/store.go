// Package store owns the durable workspace state: the persisted session
// pair and the local task cache. The backend remains the source of truth;
// everything here is a possibly stale copy.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"cleanline/internal/domain"
)

const defaultDBName = "cleanline.db"

// ErrNotFound marks a missing row or an absent session.
var ErrNotFound = errors.New("not found")

// Store wraps the workspace database.
type Store struct {
	DB *sql.DB
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".cleanline", defaultDBName)
}

// EnsureWorkspace creates the workspace directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, ".cleanline")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the workspace database and applies migrations.
func Open(workspace string) (Store, error) {
	if _, err := EnsureWorkspace(workspace); err != nil {
		return Store{}, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", dbPath(workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return Store{}, err
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return Store{}, err
	}
	return Store{DB: conn}, nil
}

// Close closes the underlying database.
func (s Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

const (
	sessionKeyToken = "token"
	sessionKeyUser  = "user"
)

// WriteSession persists the token and serialized principal in one
// transaction. Both keys land together or not at all.
func (s Store) WriteSession(ctx context.Context, token string, user domain.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for key, value := range map[string]string{
		sessionKeyToken: token,
		sessionKeyUser:  string(userJSON),
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session(key,value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
			key, value); err != nil {
			return fmt.Errorf("write session %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// ClearSession removes both session keys together. Clearing an absent
// session is a no-op.
func (s Store) ClearSession(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM session WHERE key IN (?,?)`, sessionKeyToken, sessionKeyUser)
	return err
}

// ReadSession loads the persisted pair. A reader encountering one key
// without the other treats the session as absent and gets ErrNotFound.
// A present pair with a malformed principal is returned as an error
// distinct from ErrNotFound so the caller can tear it down.
func (s Store) ReadSession(ctx context.Context) (string, domain.User, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT key, value FROM session WHERE key IN (?,?)`, sessionKeyToken, sessionKeyUser)
	if err != nil {
		return "", domain.User{}, err
	}
	defer rows.Close()
	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return "", domain.User{}, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return "", domain.User{}, err
	}
	token, okT := values[sessionKeyToken]
	userJSON, okU := values[sessionKeyUser]
	if !okT || !okU || token == "" {
		return "", domain.User{}, ErrNotFound
	}
	var user domain.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return "", domain.User{}, fmt.Errorf("malformed stored principal: %w", err)
	}
	if user.ID == "" || !user.Role.Valid() {
		return "", domain.User{}, fmt.Errorf("malformed stored principal: missing id or role")
	}
	return token, user, nil
}

// UpsertTask writes one cached task, replacing any previous row for its id.
func (s Store) UpsertTask(ctx context.Context, t domain.TaskWithDetails) error {
	return s.upsertTaskTx(ctx, s.DB, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s Store) upsertTaskTx(ctx context.Context, ex execer, t domain.TaskWithDetails) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	assigned := any(nil)
	if t.AssignedTo != nil {
		assigned = *t.AssignedTo
	}
	_, err = ex.ExecContext(ctx, `
INSERT INTO task_cache(id, payload_json, status, assigned_to, scheduled_date, updated_at)
VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  payload_json=excluded.payload_json,
  status=excluded.status,
  assigned_to=excluded.assigned_to,
  scheduled_date=excluded.scheduled_date,
  updated_at=excluded.updated_at`,
		t.ID, string(payload), string(t.Status), assigned, t.ScheduledDate, t.UpdatedAt)
	return err
}

// ReplaceTasks swaps the whole cache for a fresh listing in one transaction.
func (s Store) ReplaceTasks(ctx context.Context, tasks []domain.TaskWithDetails) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_cache`); err != nil {
		return err
	}
	for _, t := range tasks {
		if err := s.upsertTaskTx(ctx, tx, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteTask removes one cached task.
func (s Store) DeleteTask(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM task_cache WHERE id=?`, id)
	return err
}

// GetTask loads one cached task.
func (s Store) GetTask(ctx context.Context, id string) (domain.TaskWithDetails, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx, `SELECT payload_json FROM task_cache WHERE id=?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.TaskWithDetails{}, ErrNotFound
	}
	if err != nil {
		return domain.TaskWithDetails{}, err
	}
	var t domain.TaskWithDetails
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return domain.TaskWithDetails{}, fmt.Errorf("unmarshal cached task %s: %w", id, err)
	}
	return t, nil
}

// ListTasks loads the cached listing, urgent work first, then by schedule.
func (s Store) ListTasks(ctx context.Context) ([]domain.TaskWithDetails, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT payload_json FROM task_cache
ORDER BY CASE status WHEN 'to_clean_urgent' THEN 0 ELSE 1 END, scheduled_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []domain.TaskWithDetails
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var t domain.TaskWithDetails
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, fmt.Errorf("unmarshal cached task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
