// Package router fans broadcast events off the stream out to their
// subscribers. Each named channel carries one event type; delivery is
// fire-and-forget with per-subscriber panic isolation, and no state is kept
// between events.
package router
