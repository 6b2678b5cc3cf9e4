package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/taskboard/comms"
	"github.com/GoCodeAlone/taskboard/task"
)

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Board   Board
	Bus     comms.Bus
	Clients ClientCounter
	Logger  *slog.Logger
	Version string
	StartAt time.Time
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("PUT /api/tasks/{id}", h.updateTask)

	mux.HandleFunc("GET /api/messages", h.listMessages)

	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, _ *http.Request) {
	tasks, err := h.Board.Tasks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	t, ok, err := h.Board.Task(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// updateTask is the HTTP form of a taskUpdate event. The body is a full
// task; the id in the path overrides any id in the body.
func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if obj, ok := doc.(map[string]any); ok {
		obj["id"] = json.Number(strconv.Itoa(id))
	}
	t, err := task.FromDocument(doc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks, err := h.Board.Apply(r.Context(), "http:"+r.RemoteAddr, t)
	switch {
	case errors.Is(err, task.ErrUnknownTask):
		writeError(w, http.StatusNotFound, "task not found")
		return
	case errors.Is(err, task.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.Logger.Error("apply task update", slog.Int("id", id), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// --- Message handlers ---

func (h *Handlers) listMessages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	msgs, err := h.Bus.History("", limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []*comms.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	tasks, err := h.Board.Tasks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	clients := 0
	if h.Clients != nil {
		clients = h.Clients.Clients()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.Version,
		"tasks":   len(tasks),
		"clients": clients,
		"uptime":  time.Since(h.StartAt).Round(time.Second).String(),
	})
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}
