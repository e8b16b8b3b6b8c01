// Package local implements service.Service and auth.Provider on an embedded
// SQLite database, for offline use and development without a cloud project.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"cloudtodo/internal/logging"
	"cloudtodo/internal/service"
)

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements service.Service on SQLite.
type Store struct {
	db  *sql.DB
	log *logrus.Logger
	now func() time.Time
}

// Open opens or creates the database at dbPath.
func Open(dbPath string, log *logrus.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if log == nil {
		log = logging.Discard()
	}
	s := &Store{db: db, log: log, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	category TEXT NOT NULL DEFAULT '',
	start_date TEXT DEFAULT NULL,
	due_date TEXT DEFAULT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_user_created ON tasks (user_id, created_at);
CREATE TABLE IF NOT EXISTS legacy_tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	category TEXT NOT NULL DEFAULT '',
	start_date TEXT DEFAULT NULL,
	due_date TEXT DEFAULT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	uid TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);`
	_, err := s.db.Exec(ddl)
	return err
}

// ListTasks returns the user's tasks, newest first.
func (s *Store) ListTasks(ctx context.Context, userID string) ([]service.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, completed, category, start_date, due_date, created_at, updated_at
FROM tasks WHERE user_id = ? ORDER BY created_at DESC, rowid DESC;`, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var tasks []service.Task
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, wrapError(err)
		}
		tasks = append(tasks, rec.ToTask())
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err)
	}
	return tasks, nil
}

// CreateTask inserts a task stamped with the current time.
func (s *Store) CreateTask(ctx context.Context, userID string, task service.NewTask) (service.Task, error) {
	rec := service.RecordFrom(task)
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now().UTC()
	rec.UpdatedAt = rec.CreatedAt

	if err := insertTask(ctx, s.db, userID, rec); err != nil {
		return service.Task{}, wrapError(err)
	}
	s.log.WithFields(logrus.Fields{"user": userID, "task": rec.ID}).Debug("inserted task")
	return rec.ToTask(), nil
}

// SetCompleted updates the completed flag of an existing task.
func (s *Store) SetCompleted(ctx context.Context, userID, taskID string, completed bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET completed = ?, updated_at = ? WHERE id = ? AND user_id = ?;`,
		boolInt(completed), formatTime(s.now()), taskID, userID)
	if err != nil {
		return wrapError(err)
	}
	return requireRow(res, taskID)
}

// DeleteTask deletes a task.
func (s *Store) DeleteTask(ctx context.Context, userID, taskID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?;`, taskID, userID)
	if err != nil {
		return wrapError(err)
	}
	return requireRow(res, taskID)
}

// ListLegacyTasks returns the legacy rows tagged with userID.
func (s *Store) ListLegacyTasks(ctx context.Context, userID string) ([]service.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, completed, category, start_date, due_date, created_at, updated_at
FROM legacy_tasks WHERE user_id = ? ORDER BY created_at;`, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var recs []service.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, wrapError(err)
		}
		rec.UserID = userID
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err)
	}
	return recs, nil
}

// ImportLegacy stores rec in the legacy table under rec.UserID and returns
// its id. It exists to load data exported from the flat schema.
func (s *Store) ImportLegacy(ctx context.Context, rec service.Record) (string, error) {
	if rec.UserID == "" {
		return "", service.Errorf(service.KindValidation, "legacy record needs a user id")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO legacy_tasks (id, user_id, title, completed, category, start_date, due_date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.ID, rec.UserID, rec.Title, boolInt(rec.Completed), rec.Category,
		nullTime(rec.StartDate), nullTime(rec.DueDate), formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return "", wrapError(err)
	}
	return rec.ID, nil
}

// CommitBatch applies the batch in one transaction. A delete that matches no
// row rolls the whole batch back.
func (s *Store) CommitBatch(ctx context.Context, userID string, b service.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError(err)
	}
	defer tx.Rollback()

	for _, rec := range b.Creates {
		rec.ID = uuid.NewString()
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = s.now().UTC()
		}
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = rec.CreatedAt
		}
		if err := insertTask(ctx, tx, userID, rec); err != nil {
			return wrapError(err)
		}
	}
	for _, id := range b.LegacyDeletes {
		res, err := tx.ExecContext(ctx, `DELETE FROM legacy_tasks WHERE id = ?;`, id)
		if err != nil {
			return wrapError(err)
		}
		if err := requireRow(res, id); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapError(err)
	}
	s.log.WithFields(logrus.Fields{
		"user":    userID,
		"creates": len(b.Creates),
		"deletes": len(b.LegacyDeletes),
	}).Debug("committed batch")
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTask(ctx context.Context, db execer, userID string, rec service.Record) error {
	_, err := db.ExecContext(ctx, `INSERT INTO tasks (id, user_id, title, completed, category, start_date, due_date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.ID, userID, rec.Title, boolInt(rec.Completed), rec.Category,
		nullTime(rec.StartDate), nullTime(rec.DueDate), formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (service.Record, error) {
	var rec service.Record
	var completed int
	var start, due sql.NullString
	var created, updated string
	if err := row.Scan(&rec.ID, &rec.Title, &completed, &rec.Category, &start, &due, &created, &updated); err != nil {
		return service.Record{}, err
	}
	rec.Completed = completed == 1
	rec.StartDate = parseNullTime(start)
	rec.DueDate = parseNullTime(due)
	rec.CreatedAt, _ = time.Parse(timeLayout, created)
	rec.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return rec, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapError(err)
	}
	if n == 0 {
		return service.Errorf(service.KindNotFound, "not found: %s", id)
	}
	return nil
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	return service.Wrap(service.KindUnknown, fmt.Errorf("local store: %w", err))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
