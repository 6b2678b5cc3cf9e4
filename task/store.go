package task

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultSQLiteDSN keeps the database in memory for the life of the process.
const DefaultSQLiteDSN = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id       INTEGER PRIMARY KEY,
	position INTEGER NOT NULL,
	title    TEXT NOT NULL DEFAULT '',
	status   TEXT NOT NULL,
	assignee TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore keeps tasks in a SQLite database. The table is reset to the
// seed every time the store is opened.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dsn and loads seed into it.
// The caller is responsible for calling Close.
func NewSQLiteStore(dsn string, seed []Task) (*SQLiteStore, error) {
	if err := CheckSeed(seed); err != nil {
		return nil, err
	}
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY; also pins in-memory databases to one connection
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.reset(seed); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) reset(seed []Task) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	for i, t := range seed {
		_, err := tx.Exec(`INSERT INTO tasks (id, position, title, status, assignee) VALUES (?,?,?,?,?)`,
			t.ID, i, t.Title, string(t.Status), t.User)
		if err != nil {
			return fmt.Errorf("seed task %d: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// List returns tasks in seed order.
func (s *SQLiteStore) List() ([]Task, error) {
	rows, err := s.db.Query(`SELECT id, title, status, assignee FROM tasks ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(id int) (Task, bool, error) {
	row := s.db.QueryRow(`SELECT id, title, status, assignee FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, true, nil
}

// Replace overwrites the row with t.ID, keeping its position.
func (s *SQLiteStore) Replace(t Task) (bool, error) {
	res, err := s.db.Exec(`UPDATE tasks SET title=?, status=?, assignee=? WHERE id=?`,
		t.Title, string(t.Status), t.User, t.ID)
	if err != nil {
		return false, fmt.Errorf("replace task %d: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (Task, error) {
	var t Task
	var status string
	if err := s.Scan(&t.ID, &t.Title, &status, &t.User); err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	return t, nil
}
