// Package board applies task updates and broadcasts the resulting board to
// every connected client.
package board

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/taskboard/comms"
	"github.com/GoCodeAlone/taskboard/task"
)

// Channel event names.
const (
	EventTaskUpdate     = "taskUpdate"     // client -> server: one task
	EventRefreshUI      = "refreshUI"      // server -> all clients: full task list
	EventUpdateRejected = "updateRejected" // server -> originating client: Rejection
)

// Rejection is the payload of an updateRejected event.
type Rejection struct {
	ID    int    `json:"id,omitempty"`
	Error string `json:"error"`
}

// Board owns the task store and serializes every mutation together with the
// broadcast that announces it, so clients observe updates in apply order.
type Board struct {
	mu     sync.Mutex
	store  task.Store
	bus    comms.Bus
	logger *slog.Logger
}

// New creates a Board over store that announces changes on bus.
func New(store task.Store, bus comms.Bus, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{store: store, bus: bus, logger: logger}
}

// Tasks returns the current task list.
func (b *Board) Tasks() ([]task.Task, error) {
	return b.store.List()
}

// Task returns a single task by ID.
func (b *Board) Task(id int) (task.Task, bool, error) {
	return b.store.Get(id)
}

// Apply validates t against the current board, replaces the stored task and
// broadcasts the full list as refreshUI. It returns the list that was
// broadcast. Validation failures wrap task.ErrUnknownTask or
// task.ErrInvalidStatus and leave the board untouched. Nothing is broadcast
// for a rejected update, including one naming an unknown ID.
func (b *Board) Apply(ctx context.Context, origin string, t task.Task) ([]task.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.store.List()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if err := task.Validate(t, current); err != nil {
		return nil, err
	}
	if _, err := b.store.Replace(t); err != nil {
		return nil, fmt.Errorf("replace task %d: %w", t.ID, err)
	}
	tasks, err := b.store.List()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	msg := &comms.Message{Type: comms.TypeBroadcast, From: origin, Event: EventRefreshUI}
	if err := b.publish(ctx, msg, tasks); err != nil {
		// The store already changed; later broadcasts carry the full list again.
		b.logger.Warn("broadcast refresh", slog.String("origin", origin), slog.Any("err", err))
	}
	b.logger.Debug("task updated",
		slog.Int("id", t.ID),
		slog.String("status", string(t.Status)),
		slog.String("origin", origin),
	)
	return tasks, nil
}

// HandleUpdate parses a raw taskUpdate payload and applies it. Any failure
// is reported back to origin as updateRejected and returned; rejected
// updates are never broadcast.
func (b *Board) HandleUpdate(ctx context.Context, origin string, raw []byte) error {
	t, err := task.ParseUpdate(raw)
	if err == nil {
		_, err = b.Apply(ctx, origin, t)
	}
	if err != nil {
		b.Reject(ctx, origin, t.ID, err)
		return err
	}
	return nil
}

// Reject sends an updateRejected event to origin only.
func (b *Board) Reject(ctx context.Context, origin string, id int, cause error) {
	b.logger.Warn("update rejected",
		slog.String("origin", origin),
		slog.Int("id", id),
		slog.Any("err", cause),
	)
	msg := &comms.Message{Type: comms.TypeDirect, From: "board", To: origin, Event: EventUpdateRejected}
	if err := b.publish(ctx, msg, Rejection{ID: id, Error: cause.Error()}); err != nil {
		b.logger.Warn("send rejection", slog.String("origin", origin), slog.Any("err", err))
	}
}

func (b *Board) publish(ctx context.Context, msg *comms.Message, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Event, err)
	}
	msg.ID = uuid.NewString()
	msg.Payload = data
	msg.Timestamp = time.Now().UTC()
	return b.bus.Publish(ctx, msg)
}
