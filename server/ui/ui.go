// Package ui renders the board page served at "/".
package ui

import (
	_ "embed"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/taskboard/task"
)

//go:embed index.html
var indexHTML string

var page = template.Must(template.New("index").Parse(indexHTML))

// Title is the page heading.
const Title = "Task Board"

type pageData struct {
	Title    string
	Statuses []task.Status
	Tasks    []task.Task
}

// Render writes the board page with tasks embedded as the initial state.
// Task fields reach the page as JSON and are rendered as text.
func Render(w io.Writer, tasks []task.Task) error {
	if tasks == nil {
		tasks = []task.Task{}
	}
	return page.Execute(w, pageData{
		Title:    Title,
		Statuses: task.Statuses(),
		Tasks:    tasks,
	})
}

// Lister supplies the tasks for a page load.
type Lister interface {
	Tasks() ([]task.Task, error)
}

// Handler serves the board page.
func Handler(tasks Lister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		list, err := tasks.Tasks()
		if err != nil {
			logger.Error("list tasks for page", slog.Any("err", err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := Render(w, list); err != nil {
			logger.Error("render page", slog.Any("err", err))
		}
	}
}
