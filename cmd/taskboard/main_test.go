package main

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/taskboard/board"
	"github.com/GoCodeAlone/taskboard/comms"
	"github.com/GoCodeAlone/taskboard/config"
	"github.com/GoCodeAlone/taskboard/server"
	"github.com/GoCodeAlone/taskboard/task"
)

func newClient(t *testing.T) (*Client, *bytes.Buffer, *task.MemoryStore) {
	t.Helper()
	store, err := task.NewMemoryStore(task.Seed())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	bus := comms.NewInMemoryBus(0)
	srv := server.New(*config.DefaultConfig(), "v0.0.1-test", slog.Default())
	srv.SetBoard(board.New(store, bus, slog.Default()))
	srv.SetBus(bus)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	var out bytes.Buffer
	return &Client{
		BaseURL:    ts.URL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Out:        &out,
	}, &out, store
}

func TestCmdTasks(t *testing.T) {
	c, out, _ := newClient(t)
	if err := c.cmdTasks(nil); err != nil {
		t.Fatalf("cmdTasks: %v", err)
	}
	for _, want := range []string{"Build Auth System", "Connect WebSockets", "In-Progress", "Admin"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCmdStatus(t *testing.T) {
	c, out, _ := newClient(t)
	if err := c.cmdStatus(nil); err != nil {
		t.Fatalf("cmdStatus: %v", err)
	}
	if !strings.Contains(out.String(), "version: v0.0.1-test") || !strings.Contains(out.String(), "tasks:   2") {
		t.Errorf("output:\n%s", out)
	}
}

func TestCmdMove(t *testing.T) {
	c, out, store := newClient(t)
	if err := c.cmdMove([]string{"2", "Done"}); err != nil {
		t.Fatalf("cmdMove: %v", err)
	}
	if got := out.String(); got != "task 2: In-Progress -> Done\n" {
		t.Errorf("output = %q", got)
	}
	got, _, _ := store.Get(2)
	if got.Status != task.StatusDone || got.Title != "Connect WebSockets" {
		t.Errorf("stored = %+v", got)
	}
}

func TestCmdMove_Errors(t *testing.T) {
	c, _, _ := newClient(t)

	if err := c.cmdMove([]string{"1", "Someday"}); !errors.Is(err, task.ErrInvalidStatus) {
		t.Errorf("bad status: err = %v", err)
	}
	if err := c.cmdMove([]string{"x", "Done"}); err == nil {
		t.Error("bad id: expected error")
	}
	err := c.cmdMove([]string{"42", "Done"})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("unknown id: err = %v, want 404", err)
	}
	if err := c.cmdMove([]string{"1"}); err == nil {
		t.Error("missing arg: expected usage error")
	}
}

func TestCmdAdvance(t *testing.T) {
	c, _, store := newClient(t)
	for _, want := range []task.Status{task.StatusInProgress, task.StatusDone, task.StatusDone} {
		if err := c.cmdAdvance([]string{"1"}); err != nil {
			t.Fatalf("cmdAdvance: %v", err)
		}
		got, _, _ := store.Get(1)
		if got.Status != want {
			t.Errorf("status = %q, want %q", got.Status, want)
		}
	}
}

func TestSocketURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:3000": "ws://localhost:3000/socket",
		"https://board.example": "wss://board.example/socket",
	}
	for in, want := range cases {
		if got := socketURL(in); got != want {
			t.Errorf("socketURL(%q) = %q, want %q", in, got, want)
		}
	}
}
