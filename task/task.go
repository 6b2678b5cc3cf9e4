// Package task defines the board's task model and the stores that hold it.
package task

import (
	"errors"
	"fmt"
)

// Status is the board column a task sits in.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In-Progress"
	StatusDone       Status = "Done"
)

// Statuses returns the board columns in display order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone}
}

// Valid reports whether s is one of the board columns.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Next returns the column a task moves to when advanced.
func (s Status) Next() Status {
	if s == StatusTodo {
		return StatusInProgress
	}
	return StatusDone
}

// Task is a single card on the board.
type Task struct {
	ID     int    `json:"id" yaml:"id" toml:"id"`
	Title  string `json:"title" yaml:"title" toml:"title"`
	Status Status `json:"status" yaml:"status" toml:"status"`
	User   string `json:"user" yaml:"user" toml:"user"`
}

var (
	ErrUnknownTask    = errors.New("unknown task")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrDuplicateTask  = errors.New("duplicate task id")
)

// Store holds the board's tasks.
type Store interface {
	// List returns all tasks in insertion order.
	List() ([]Task, error)

	// Get returns the task with the given ID.
	Get(id int) (Task, bool, error)

	// Replace overwrites the task with the same ID in place. Unknown IDs
	// are ignored and reported as false.
	Replace(t Task) (bool, error)
}

// Seed returns the tasks a fresh board starts with.
func Seed() []Task {
	return []Task{
		{ID: 1, Title: "Build Auth System", Status: StatusTodo, User: "Admin"},
		{ID: 2, Title: "Connect WebSockets", Status: StatusInProgress, User: "Dev"},
	}
}

// CheckSeed verifies that seed tasks have unique IDs and valid statuses.
func CheckSeed(seed []Task) error {
	seen := make(map[int]struct{}, len(seed))
	for _, t := range seed {
		if _, ok := seen[t.ID]; ok {
			return fmt.Errorf("seed task %d: %w", t.ID, ErrDuplicateTask)
		}
		seen[t.ID] = struct{}{}
		if !t.Status.Valid() {
			return fmt.Errorf("seed task %d: %w %q", t.ID, ErrInvalidStatus, t.Status)
		}
	}
	return nil
}
