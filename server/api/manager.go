// Package api defines the REST API handlers and interfaces for the taskboard server.
package api

import (
	"context"

	"github.com/GoCodeAlone/taskboard/task"
)

// Board is the interface the API uses to read and update tasks.
// Implemented by *board.Board.
type Board interface {
	Tasks() ([]task.Task, error)
	Task(id int) (task.Task, bool, error)
	Apply(ctx context.Context, origin string, t task.Task) ([]task.Task, error)
}

// ClientCounter reports connected channel clients.
type ClientCounter interface {
	Clients() int
}
