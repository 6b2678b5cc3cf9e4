// Package ws implements the realtime board channel: WebSocket connections
// that publish and receive board events, and a Server-Sent Events feed for
// receive-only listeners.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/GoCodeAlone/taskboard/board"
	"github.com/GoCodeAlone/taskboard/comms"
	"github.com/GoCodeAlone/taskboard/task"
)

const (
	writeTimeout = 10 * time.Second

	// MaxMessageSize bounds one inbound client message.
	MaxMessageSize = 64 << 10
)

// Envelope is the frame format on both transports.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Updater applies inbound channel events.
type Updater interface {
	HandleUpdate(ctx context.Context, origin string, raw []byte) error
	Reject(ctx context.Context, origin string, id int, cause error)
}

// client represents a single channel connection.
type client struct {
	id        string
	transport string
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
	release   func()

	// WebSocket only.
	conn net.Conn
	wmu  sync.Mutex
}

// write sends one complete frame so concurrent writers never interleave.
func (c *client) write(frame []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := c.conn.Write(frame)
	return err
}

// Hub manages channel connections and relays bus messages to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	bus     comms.Bus
	board   Updater
	buffer  int
	logger  *slog.Logger
}

// NewHub creates a Hub. Each client queues at most buffer outbound frames;
// frames beyond that are dropped.
func NewHub(bus comms.Bus, updater Updater, buffer int, logger *slog.Logger) *Hub {
	if buffer < 1 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		bus:     bus,
		board:   updater,
		buffer:  buffer,
		logger:  logger,
	}
}

// Clients returns the number of connected clients on both transports.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// register subscribes a new client to the bus. The returned function
// unsubscribes and releases it.
func (h *Hub) register(transport string, conn net.Conn) (*client, func()) {
	c := &client{
		id:        uuid.NewString(),
		transport: transport,
		ch:        make(chan []byte, h.buffer),
		done:      make(chan struct{}),
		conn:      conn,
	}
	unsub := h.bus.Subscribe(c.id, func(_ context.Context, msg *comms.Message) error {
		data, err := json.Marshal(Envelope{Event: msg.Event, Data: msg.Payload})
		if err != nil {
			return fmt.Errorf("encode %s: %w", msg.Event, err)
		}
		select {
		case <-c.done:
		case c.ch <- data:
		default:
			// Slow client: drop rather than block the board.
			h.logger.Warn("client queue full, dropping event",
				slog.String("client", c.id),
				slog.String("event", msg.Event),
			)
		}
		return nil
	})

	c.release = func() {
		c.closeOnce.Do(func() {
			unsub()
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			close(c.done)
			h.logger.Info("client disconnected", slog.String("client", c.id), slog.String("transport", transport))
		})
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("client connected", slog.String("client", c.id), slog.String("transport", transport))
	return c, c.release
}

// CloseAll ends every client on both transports: WebSocket connections are
// closed and SSE handlers return.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.conn != nil {
			c.conn.Close() //nolint:errcheck
		}
		c.release()
	}
}

// ServeWS upgrades the request to a WebSocket and runs the connection until
// the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Warn("websocket upgrade", slog.Any("err", err))
		return
	}
	c, unregister := h.register("websocket", conn)
	defer func() {
		unregister()
		conn.Close() //nolint:errcheck
	}()

	go h.writeLoop(c)

	if err := h.readLoop(r.Context(), c); err != nil && !isClosed(err) {
		h.logger.Debug("websocket read", slog.String("client", c.id), slog.Any("err", err))
	}
}

// writeLoop drains the client queue in order.
func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.ch:
			frame, err := ws.CompileFrame(ws.NewTextFrame(data))
			if err == nil {
				err = c.write(frame)
			}
			if err != nil {
				h.logger.Debug("websocket write", slog.String("client", c.id), slog.Any("err", err))
				c.conn.Close() //nolint:errcheck // unblocks readLoop
				return
			}
		}
	}
}

// readLoop reads client messages until an error or a close frame. Control
// frame replies go through client.write like every other frame.
func (h *Hub) readLoop(ctx context.Context, c *client) error {
	var ctrl bytes.Buffer
	handleControl := func(hdr ws.Header, r io.Reader) error {
		ctrl.Reset()
		err := wsutil.ControlFrameHandler(&ctrl, ws.StateServerSide)(hdr, r)
		if ctrl.Len() > 0 {
			if werr := c.write(ctrl.Bytes()); werr != nil && err == nil {
				err = werr
			}
		}
		return err
	}

	rd := wsutil.Reader{
		Source:         c.conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: handleControl,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return err
		}
		if hdr.OpCode.IsControl() {
			if err := handleControl(hdr, &rd); err != nil {
				return err
			}
			continue
		}
		data, err := io.ReadAll(io.LimitReader(&rd, MaxMessageSize+1))
		if err != nil {
			return err
		}
		if len(data) > MaxMessageSize {
			if err := rd.Discard(); err != nil {
				return err
			}
			h.board.Reject(ctx, c.id, 0, fmt.Errorf("%w: message exceeds %d bytes", task.ErrInvalidPayload, MaxMessageSize))
			continue
		}
		if hdr.OpCode != ws.OpText {
			continue
		}
		h.dispatch(ctx, c, data)
	}
}

// dispatch routes one inbound frame by event name.
func (h *Hub) dispatch(ctx context.Context, c *client, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.board.Reject(ctx, c.id, 0, fmt.Errorf("%w: %v", task.ErrInvalidPayload, err))
		return
	}
	switch env.Event {
	case board.EventTaskUpdate:
		// Failures are already reported to the client as updateRejected.
		_ = h.board.HandleUpdate(ctx, c.id, env.Data)
	default:
		h.board.Reject(ctx, c.id, 0, fmt.Errorf("unknown event %q", env.Event))
	}
}

// ServeSSE streams channel events to a receive-only listener.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	c, unregister := h.register("sse", nil)
	defer unregister()

	// Comment line, not an event: state comes from GET /api/tasks.
	fmt.Fprint(w, ": connected\n\n") //nolint:errcheck
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case data := <-c.ch:
			// Each SSE "data:" line must not contain newlines
			for _, line := range strings.Split(string(data), "\n") {
				fmt.Fprintf(w, "data: %s\n", line) //nolint:errcheck
			}
			fmt.Fprintln(w) //nolint:errcheck
			flusher.Flush()
		}
	}
}

func isClosed(err error) bool {
	var closed wsutil.ClosedError
	return errors.As(err, &closed) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
