package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/GoCodeAlone/taskboard/comms"
	"github.com/GoCodeAlone/taskboard/task"
)

type recordingUpdater struct {
	mu       sync.Mutex
	updates  []string
	rejected []error
}

func (u *recordingUpdater) HandleUpdate(_ context.Context, _ string, raw []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updates = append(u.updates, string(raw))
	return nil
}

func (u *recordingUpdater) Reject(_ context.Context, _ string, _ int, cause error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rejected = append(u.rejected, cause)
}

func broadcast(t *testing.T, bus comms.Bus, payload string) {
	t.Helper()
	msg := &comms.Message{Type: comms.TypeBroadcast, Event: "refreshUI", Payload: json.RawMessage(payload)}
	if err := bus.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestHub_DropsWhenQueueFull(t *testing.T) {
	bus := comms.NewInMemoryBus(0)
	h := NewHub(bus, &recordingUpdater{}, 2, slog.Default())
	c, unregister := h.register("sse", nil)
	defer unregister()

	for i := range 5 {
		broadcast(t, bus, fmt.Sprintf("[%d]", i))
	}

	if len(c.ch) != 2 {
		t.Fatalf("queued = %d, want 2", len(c.ch))
	}
	var env Envelope
	if err := json.Unmarshal(<-c.ch, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Event != "refreshUI" || string(env.Data) != "[0]" {
		t.Errorf("first frame = %+v, want the oldest event", env)
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	bus := comms.NewInMemoryBus(0)
	h := NewHub(bus, &recordingUpdater{}, 4, slog.Default())
	c, unregister := h.register("sse", nil)
	if h.Clients() != 1 || bus.Subscribers() != 1 {
		t.Fatalf("clients = %d, subscribers = %d", h.Clients(), bus.Subscribers())
	}

	unregister()
	unregister() // idempotent
	broadcast(t, bus, "[]")

	if h.Clients() != 0 || bus.Subscribers() != 0 {
		t.Errorf("clients = %d, subscribers = %d after unregister", h.Clients(), bus.Subscribers())
	}
	if len(c.ch) != 0 {
		t.Errorf("frame delivered after unregister")
	}
}

func TestHub_Dispatch(t *testing.T) {
	u := &recordingUpdater{}
	h := NewHub(comms.NewInMemoryBus(0), u, 4, slog.Default())
	c := &client{id: "c1"}

	h.dispatch(context.Background(), c, []byte(`{"event":"taskUpdate","data":{"id":1}}`))
	h.dispatch(context.Background(), c, []byte(`{"event":"moveAll"}`))
	h.dispatch(context.Background(), c, []byte(`nope`))

	if len(u.updates) != 1 || u.updates[0] != `{"id":1}` {
		t.Errorf("updates = %v", u.updates)
	}
	if len(u.rejected) != 2 {
		t.Fatalf("rejected = %v", u.rejected)
	}
	if !errors.Is(u.rejected[1], task.ErrInvalidPayload) {
		t.Errorf("malformed frame error = %v, want ErrInvalidPayload", u.rejected[1])
	}
}

func TestHub_CloseAllEndsSSEClients(t *testing.T) {
	bus := comms.NewInMemoryBus(0)
	h := NewHub(bus, &recordingUpdater{}, 4, slog.Default())
	c, unregister := h.register("sse", nil)
	defer unregister()

	h.CloseAll()

	select {
	case <-c.done:
	default:
		t.Fatal("client not released")
	}
	if h.Clients() != 0 || bus.Subscribers() != 0 {
		t.Errorf("clients = %d, subscribers = %d after CloseAll", h.Clients(), bus.Subscribers())
	}
}
