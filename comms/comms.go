// Package comms provides the in-process event relay between the board and
// its connected clients.
package comms

import (
	"context"
	"encoding/json"
	"time"
)

// MessageType identifies how a message is routed.
type MessageType string

const (
	TypeDirect    MessageType = "direct"    // delivered to one subscriber
	TypeBroadcast MessageType = "broadcast" // delivered to every subscriber
)

// Message is a named event travelling over the bus.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	From      string          `json:"from"`
	To        string          `json:"to,omitempty"` // empty for broadcast
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Handler processes a message delivered to a subscriber.
type Handler func(ctx context.Context, msg *Message) error

// Bus routes board events to subscribed connections.
type Bus interface {
	// Publish delivers msg to every subscriber for broadcasts, or to the
	// subscriber named by msg.To for direct messages.
	Publish(ctx context.Context, msg *Message) error

	// Subscribe registers a handler under the given subscriber ID.
	// Returns an unsubscribe function.
	Subscribe(subscriberID string, handler Handler) (unsubscribe func())

	// History returns recent messages visible to subscriberID, or all
	// recent messages when subscriberID is empty.
	History(subscriberID string, limit int) ([]*Message, error)
}
