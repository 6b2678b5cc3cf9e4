package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoCodeAlone/taskboard/task"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("Addr = %q, want :3000", cfg.Server.Addr)
	}
	if len(cfg.Seed) != 2 {
		t.Errorf("Seed len = %d, want 2", len(cfg.Seed))
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "taskboard.yaml", `
server:
  addr: ":8081"
store:
  driver: sqlite
log_level: debug
seed:
  - id: 10
    title: Write docs
    status: Done
    user: Sam
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8081" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("Driver = %q", cfg.Store.Driver)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	// Unset values keep their defaults.
	if cfg.Hub.ClientBuffer != 64 || cfg.LogFormat != "text" {
		t.Errorf("defaults lost: %+v", cfg)
	}
	want := task.Task{ID: 10, Title: "Write docs", Status: task.StatusDone, User: "Sam"}
	if len(cfg.Seed) != 1 || cfg.Seed[0] != want {
		t.Errorf("Seed = %+v, want [%+v]", cfg.Seed, want)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "taskboard.toml", `
log_format = "json"

[server]
addr = "127.0.0.1:4000"

[hub]
client_buffer = 8

[[seed]]
id = 3
title = "Ship it"
status = "In-Progress"
user = "Kim"

[[seed]]
id = 7
title = "Only"
status = "Done"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:4000" || cfg.Hub.ClientBuffer != 8 || cfg.LogFormat != "json" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	want := []task.Task{
		{ID: 3, Title: "Ship it", Status: task.StatusInProgress, User: "Kim"},
		{ID: 7, Title: "Only", Status: task.StatusDone},
	}
	if len(cfg.Seed) != len(want) || cfg.Seed[0] != want[0] || cfg.Seed[1] != want[1] {
		t.Errorf("Seed = %+v, want %+v", cfg.Seed, want)
	}
}

func TestLoad_TOMLKeepsDefaultSeed(t *testing.T) {
	path := writeFile(t, "taskboard.toml", "[server]\naddr = \":3001\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	seed := task.Seed()
	if len(cfg.Seed) != len(seed) || cfg.Seed[0] != seed[0] || cfg.Seed[1] != seed[1] {
		t.Errorf("Seed = %+v, want %+v", cfg.Seed, seed)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"driver":     "store:\n  driver: postgres\n",
		"level":      "log_level: loud\n",
		"format":     "log_format: xml\n",
		"buffer":     "hub:\n  client_buffer: 0\n",
		"dup seed":   "seed:\n  - {id: 1, status: Todo}\n  - {id: 1, status: Done}\n",
		"bad seed":   "seed:\n  - {id: 1, status: Someday}\n",
		"bad yaml":   "server: [\n",
		"empty addr": "server:\n  addr: \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "c.yaml", body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_SeedErrorsAreTyped(t *testing.T) {
	_, err := Load(writeFile(t, "c.yaml", "seed:\n  - {id: 1, status: Todo}\n  - {id: 1, status: Done}\n"))
	if !errors.Is(err, task.ErrDuplicateTask) {
		t.Errorf("err = %v, want ErrDuplicateTask", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Errorf("err = %v, want read config error", err)
	}
}
