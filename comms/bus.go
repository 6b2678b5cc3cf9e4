package comms

import (
	"context"
	"fmt"
	"sync"
)

// DefaultHistorySize is the number of messages an InMemoryBus remembers.
const DefaultHistorySize = 1000

// InMemoryBus is a thread-safe in-process message bus.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry // subscriberID -> handlers
	order    []string                  // subscriber IDs in first-subscription order
	nextID   int
	history  []*Message
	maxHist  int
}

type handlerEntry struct {
	id      int
	handler Handler
}

// NewInMemoryBus creates an InMemoryBus keeping at most maxHistory messages.
// A non-positive maxHistory selects DefaultHistorySize.
func NewInMemoryBus(maxHistory int) *InMemoryBus {
	if maxHistory <= 0 {
		maxHistory = DefaultHistorySize
	}
	return &InMemoryBus{
		handlers: make(map[string][]handlerEntry),
		maxHist:  maxHistory,
	}
}

// Publish sends a message to its intended recipients.
// For TypeBroadcast messages the To field is ignored and all subscribers receive it.
// For direct messages, only the subscriber matching msg.To receives it.
// Handlers run on the caller's goroutine, in subscription order.
func (b *InMemoryBus) Publish(ctx context.Context, msg *Message) error {
	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}

	// Collect handlers to invoke outside the lock
	var targets []Handler
	if msg.Type == TypeBroadcast {
		for _, sub := range b.order {
			for _, e := range b.handlers[sub] {
				targets = append(targets, e.handler)
			}
		}
	} else {
		for _, e := range b.handlers[msg.To] {
			targets = append(targets, e.handler)
		}
	}
	b.mu.Unlock()

	var errs []error
	for _, h := range targets {
		if err := h(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish %s: %d handler error(s): %w", msg.Event, len(errs), errs[0])
	}
	return nil
}

// Subscribe registers a handler for messages addressed to subscriberID.
// The returned function unsubscribes the handler.
func (b *InMemoryBus) Subscribe(subscriberID string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if _, ok := b.handlers[subscriberID]; !ok {
		b.order = append(b.order, subscriberID)
	}
	b.handlers[subscriberID] = append(b.handlers[subscriberID], handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[subscriberID]
		filtered := entries[:0]
		for _, e := range entries {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) > 0 {
			b.handlers[subscriberID] = filtered
			return
		}
		delete(b.handlers, subscriberID)
		for i, sub := range b.order {
			if sub == subscriberID {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Subscribers returns the number of distinct subscriber IDs.
func (b *InMemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// History returns the most recent limit messages visible to subscriberID:
// broadcasts plus direct messages to or from it. An empty subscriberID
// sees everything.
func (b *InMemoryBus) History(subscriberID string, limit int) ([]*Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []*Message
	for i := len(b.history) - 1; i >= 0; i-- {
		m := b.history[i]
		if subscriberID == "" || m.To == subscriberID || m.From == subscriberID || m.Type == TypeBroadcast {
			result = append(result, m)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	// Reverse to chronological order
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result, nil
}
