// Package server implements the taskboard HTTP server: the board page, the
// REST API and the realtime channel.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/taskboard/board"
	"github.com/GoCodeAlone/taskboard/comms"
	"github.com/GoCodeAlone/taskboard/config"
	"github.com/GoCodeAlone/taskboard/server/api"
	"github.com/GoCodeAlone/taskboard/server/ui"
	"github.com/GoCodeAlone/taskboard/server/ws"
)

// Server is the taskboard HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	mu      sync.Mutex
	httpSrv *http.Server
	logger  *slog.Logger

	board    *board.Board
	bus      comms.Bus
	hub      *ws.Hub
	handlers *api.Handlers
	routed   bool

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		startTime: time.Now(),
		version:   ver,
	}
}

// SetBoard attaches the board the server reads and updates.
func (s *Server) SetBoard(b *board.Board) {
	s.board = b
}

// SetBus attaches the comms bus the board publishes on.
func (s *Server) SetBus(bus comms.Bus) {
	s.bus = bus
}

// Hub returns the realtime hub, or nil before routes are registered.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Handler registers routes on first use and returns the server's handler.
// Call after SetBoard and SetBus.
func (s *Server) Handler() http.Handler {
	if !s.routed {
		s.registerRoutes()
		s.routed = true
	}
	return s.mux
}

// Start registers routes and begins listening on the configured address.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":3000"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve registers routes and serves HTTP on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	// Shutdown neither ends SSE handlers nor tracks upgraded sockets.
	s.httpSrv.RegisterOnShutdown(s.hub.CloseAll)
	srv := s.httpSrv
	s.mu.Unlock()

	s.logger.Info("server listening", slog.String("addr", ln.Addr().String()))
	return srv.Serve(ln)
}

// Stop gracefully shuts down the HTTP server. Channel clients on both
// transports are disconnected once the listener is closed.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.hub = ws.NewHub(s.bus, s.board, s.cfg.Hub.ClientBuffer, s.logger)
	h := &api.Handlers{
		Board:   s.board,
		Bus:     s.bus,
		Clients: s.hub,
		Logger:  s.logger,
		Version: s.version,
		StartAt: s.startTime,
	}
	s.handlers = h

	s.mux.HandleFunc("GET /{$}", ui.Handler(s.board, s.logger))
	s.mux.HandleFunc("GET /socket", s.hub.ServeWS)
	s.mux.HandleFunc("GET /api/events", s.hub.ServeSSE)
	h.RegisterRoutes(s.mux)
}
