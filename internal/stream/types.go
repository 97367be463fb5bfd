package stream

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrStreamClosed    = errors.New("stream closed")
)

// State is the connection lifecycle state. Exactly one value holds at a time.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session describes the current server-assigned connection, if any.
type Session struct {
	ConnectionID   string    // Assigned by the server on stream open, "" before
	DisconnectedAt time.Time // Zero while connected; stamped at first error of an outage
}

// Transition is one observed state machine edge.
type Transition struct {
	From           State
	To             State
	ConnectionID   string    // Set on transitions to StateConnected
	DisconnectedAt time.Time // Zero when connected
	At             time.Time
}

// Message wraps raw stream bytes with a receive timestamp.
type Message struct {
	Data       []byte
	ReceivedAt time.Time
}

// Stream is one live push connection. Messages is closed when the stream
// shuts down for any reason; Errors delivers at most one transport error.
type Stream interface {
	Messages() <-chan Message
	Errors() <-chan error
	Close() error
}

// Dialer opens a new Stream. The Manager dials through this so tests and
// alternate transports can substitute the WebSocket client.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// DialerFunc is a function adapter for Dialer.
type DialerFunc func(ctx context.Context) (Stream, error)

func (f DialerFunc) Dial(ctx context.Context) (Stream, error) {
	return f(ctx)
}

// Handler consumes multiplexed stream events. HandleStreamEvent returns true
// if the channel tag was recognized and the event consumed.
type Handler interface {
	HandleStreamEvent(channel string, payload json.RawMessage, receivedAt time.Time) bool
}

// PushEndpointSource looks up this device's local push delivery endpoint.
// Implemented by a platform adapter; returns "" when the device has none.
type PushEndpointSource interface {
	PushEndpoint(ctx context.Context) (string, error)
}

// PushLinker reports the push endpoint on the side channel.
type PushLinker interface {
	LinkPushEndpoint(ctx context.Context, connectionID, deviceID, endpoint string) error
}

// envelope is the wire framing for every stream message.
type envelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// ChannelConnected is the reserved channel tag for the server hello. Its
// payload carries the connectionId required by all side-channel calls.
const ChannelConnected = "connected"

type connectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// ClientConfig configures a WebSocket stream client.
type ClientConfig struct {
	URL          string        // Stream URL (e.g., wss://dash.example.com/sync/stream)
	Token        string        // Session token for the Authorization header
	PingTimeout  time.Duration // Max time without ping before considering connection stale
	WriteTimeout time.Duration // Write deadline for control frames
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}

// ManagerConfig configures the connection Manager.
type ManagerConfig struct {
	BaseDelay           time.Duration // Base wait between reconnect attempts
	MaxDelay            time.Duration // Cap on the backoff delay
	MaxAttempts         int           // Attempt budget for one reconnect sequence
	MaxSequenceDuration time.Duration // Time budget for one reconnect sequence
	DeviceID            string        // Carried on the push-endpoint link call
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		BaseDelay:           1 * time.Second,
		MaxDelay:            30 * time.Second,
		MaxAttempts:         10,
		MaxSequenceDuration: 120 * time.Second,
	}
}

// Stats is a snapshot of manager state.
type Stats struct {
	State          State
	ConnectionID   string
	Attempts       int
	DisconnectedAt time.Time
	Received       int64
	ParseErrors    int64
	Unrouted       int64
}
