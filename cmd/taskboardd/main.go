// Command taskboardd is the taskboard server daemon.
// It serves the board page, the REST API and the realtime channel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/taskboard/board"
	"github.com/GoCodeAlone/taskboard/comms"
	"github.com/GoCodeAlone/taskboard/config"
	"github.com/GoCodeAlone/taskboard/internal/logging"
	"github.com/GoCodeAlone/taskboard/internal/version"
	"github.com/GoCodeAlone/taskboard/server"
	"github.com/GoCodeAlone/taskboard/task"
)

var (
	configPath  = flag.String("config", "", "path to YAML or TOML config file (optional)")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("taskboardd"))
		return
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "taskboardd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat, "taskboardd")
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("taskboardd exited", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting taskboardd",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("store", cfg.Store.Driver),
	)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck

	bus := comms.NewInMemoryBus(cfg.Hub.HistorySize)
	srv := server.New(*cfg, version.Version, logger)
	srv.SetBoard(board.New(store, bus, logger))
	srv.SetBus(bus)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// openStore builds the configured task store, seeded from cfg.
func openStore(cfg *config.Config) (task.Store, func() error, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		s, err := task.NewSQLiteStore(cfg.Store.DSN, cfg.Seed)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.Close, nil
	default:
		s, err := task.NewMemoryStore(cfg.Seed)
		if err != nil {
			return nil, nil, fmt.Errorf("open memory store: %w", err)
		}
		return s, func() error { return nil }, nil
	}
}
