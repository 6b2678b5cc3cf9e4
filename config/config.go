// Package config defines the taskboard server configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/taskboard/task"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config is the top-level taskboard configuration.
type Config struct {
	Server    ServerConfig `json:"server" yaml:"server" toml:"server"`
	Store     StoreConfig  `json:"store" yaml:"store" toml:"store"`
	Hub       HubConfig    `json:"hub" yaml:"hub" toml:"hub"`
	Seed      []task.Task  `json:"seed" yaml:"seed" toml:"seed"` // tasks the board starts with
	LogLevel  string       `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string       `json:"log_format" yaml:"log_format" toml:"log_format"` // "text" or "json"
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"` // listen address, e.g., ":3000"
}

// StoreConfig selects where tasks are held. Either way the board is
// re-seeded on every start.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver" toml:"driver"` // "memory" or "sqlite"
	DSN    string `json:"dsn,omitempty" yaml:"dsn" toml:"dsn"`
}

// HubConfig tunes the realtime channel.
type HubConfig struct {
	ClientBuffer int `json:"client_buffer" yaml:"client_buffer" toml:"client_buffer"` // queued frames per client
	HistorySize  int `json:"history_size" yaml:"history_size" toml:"history_size"`   // bus messages kept for /api/messages
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":3000",
		},
		Store: StoreConfig{
			Driver: DriverMemory,
		},
		Hub: HubConfig{
			ClientBuffer: 64,
			HistorySize:  1000,
		},
		Seed:      task.Seed(),
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads a YAML or TOML config file (chosen by extension) over the
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		// Array tables decode into the existing backing array, so default
		// seed fields would leak into entries that omit them.
		cfg.Seed = nil
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if !md.IsDefined("seed") {
			cfg.Seed = task.Seed()
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("store.driver %q: want %q or %q", c.Store.Driver, DriverMemory, DriverSQLite)
	}
	if c.Hub.ClientBuffer < 1 {
		return fmt.Errorf("hub.client_buffer must be positive, got %d", c.Hub.ClientBuffer)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q: want text or json", c.LogFormat)
	}
	if err := task.CheckSeed(c.Seed); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}
