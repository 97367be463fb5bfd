package topic

import (
	"context"
	"encoding/json"
)

// Envelope kinds.
const (
	EnvelopeFull  = "full"
	EnvelopeDelta = "delta"
)

// Envelope is the payload carried on a topic's stream channel: either a full
// document replacement or an ordered list of patch operations.
type Envelope struct {
	Type      string          `json:"type"`              // EnvelopeFull or EnvelopeDelta
	Data      json.RawMessage `json:"data,omitempty"`    // Full payloads only
	Patches   json.RawMessage `json:"patches,omitempty"` // Delta payloads: [{op, path, value?}, ...]
	Timestamp int64           `json:"timestamp"`
}

// Callback receives a topic's current document after every accepted envelope.
// The document must be treated as read-only.
type Callback func(doc json.RawMessage)

// SideChannel issues the request/response registration calls that accompany
// stream subscriptions. Implemented by sidechannel.Client.
type SideChannel interface {
	Subscribe(ctx context.Context, connectionID, topic string) error
	Unsubscribe(ctx context.Context, connectionID, topic string) error
}

// Stats is a snapshot of registry state.
type Stats struct {
	Topics    int // Topics with at least one callback
	Callbacks int // Total registered callbacks
	Cached    int // Topics currently holding a cached document
}
