// Command taskboard is the taskboard CLI client.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/GoCodeAlone/taskboard/internal/ui"
	"github.com/GoCodeAlone/taskboard/internal/version"
	"github.com/GoCodeAlone/taskboard/task"
)

const defaultServer = "http://localhost:3000"

func main() {
	serverURL := flag.String("server", envOr("TASKBOARD_SERVER", defaultServer), "taskboard server URL")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Out:        os.Stdout,
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		fmt.Println(version.String("taskboard"))
	case "status":
		err = cli.cmdStatus(rest)
	case "tasks":
		err = cli.cmdTasks(rest)
	case "move":
		err = cli.cmdMove(rest)
	case "advance":
		err = cli.cmdAdvance(rest)
	case "watch":
		err = cli.cmdWatch(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `taskboard: task board CLI

Usage:
  taskboard [flags] <command> [args]

Flags:
  --server  <url>    server URL (default: http://localhost:3000, or $TASKBOARD_SERVER)

Commands:
  version              print version
  status               show server status
  tasks                list tasks
  move <id> <status>   set a task's status (Todo, In-Progress, Done)
  advance <id>         move a task to its next column
  watch                live board in the terminal
`)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Out        io.Writer
}

// get performs a GET and decodes JSON into v.
func (c *Client) get(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

// put performs a PUT with a JSON body and decodes the JSON response into v.
func (c *Client) put(path string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(http.MethodPut, path, bytes.NewReader(data), v)
}

func (c *Client) do(method, path string, body io.Reader, v any) error {
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// --- status ---

func (c *Client) cmdStatus(_ []string) error {
	var result struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Tasks   int    `json:"tasks"`
		Clients int    `json:"clients"`
		Uptime  string `json:"uptime"`
	}
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "status:  %s\n", result.Status)
	fmt.Fprintf(c.Out, "version: %s\n", result.Version)
	fmt.Fprintf(c.Out, "tasks:   %d\n", result.Tasks)
	fmt.Fprintf(c.Out, "clients: %d\n", result.Clients)
	fmt.Fprintf(c.Out, "uptime:  %s\n", result.Uptime)
	return nil
}

// --- tasks ---

func (c *Client) cmdTasks(_ []string) error {
	var tasks []task.Task
	if err := c.get("/api/tasks", &tasks); err != nil {
		return err
	}
	c.printTasks(tasks)
	return nil
}

func (c *Client) printTasks(tasks []task.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(c.Out, "no tasks")
		return
	}
	fmt.Fprintf(c.Out, "%-6s %-30s %-12s %-12s\n", "ID", "TITLE", "STATUS", "USER")
	fmt.Fprintln(c.Out, strings.Repeat("-", 63))
	for _, t := range tasks {
		fmt.Fprintf(c.Out, "%-6d %-30s %-12s %-12s\n",
			t.ID,
			truncate(t.Title, 29),
			t.Status,
			truncate(t.User, 12),
		)
	}
}

// --- move / advance ---

func (c *Client) cmdMove(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: taskboard move <id> <status>")
	}
	status := task.Status(args[1])
	if !status.Valid() {
		return fmt.Errorf("%w %q: want one of %v", task.ErrInvalidStatus, args[1], task.Statuses())
	}
	return c.setStatus(args[0], func(task.Status) task.Status { return status })
}

func (c *Client) cmdAdvance(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: taskboard advance <id>")
	}
	return c.setStatus(args[0], task.Status.Next)
}

// setStatus fetches a task, changes its status and sends the whole task back.
func (c *Client) setStatus(rawID string, next func(task.Status) task.Status) error {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return fmt.Errorf("invalid task id %q", rawID)
	}
	var t task.Task
	if err := c.get("/api/tasks/"+strconv.Itoa(id), &t); err != nil {
		return err
	}
	from := t.Status
	t.Status = next(from)

	var tasks []task.Task
	if err := c.put("/api/tasks/"+strconv.Itoa(id), t, &tasks); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "task %d: %s -> %s\n", id, from, t.Status)
	return nil
}

// --- watch ---

func (c *Client) cmdWatch(_ []string) error {
	var tasks []task.Task
	if err := c.get("/api/tasks", &tasks); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := ui.Dial(ctx, socketURL(c.BaseURL))
	if err != nil {
		return err
	}
	return ui.RunTUI(ctx, tasks, events)
}

// socketURL maps the server's HTTP base URL to its WebSocket endpoint.
func socketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/socket"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/socket"
	default:
		return base + "/socket"
	}
}

// --- helpers ---

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
