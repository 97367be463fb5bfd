package topic

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/calverton/dashsync/internal/stream"
)

// registerTimeout bounds one side-channel registration round trip.
const registerTimeout = 10 * time.Second

// Registry tracks topic subscriptions: ref-counted callback sets, the cached
// document per topic, and the side-channel registrations that accompany them.
// Cached documents and subscriber sets survive a reconnect; both are cleared
// on teardown.
type Registry struct {
	side   SideChannel
	logger *slog.Logger

	mu           sync.Mutex
	topics       map[string]*subscription
	connectionID string // "" while not connected
}

// subscription is one topic's bookkeeping. It exists only while it has at
// least one callback.
type subscription struct {
	callbacks map[int]Callback
	nextID    int
	cached    json.RawMessage // nil = absent; a delta arriving now is dropped
	bound     bool            // server-side registration confirmed
}

// NewRegistry creates a topic Registry.
func NewRegistry(side SideChannel, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		side:   side,
		logger: logger,
		topics: make(map[string]*subscription),
	}
}

// Subscribe adds a callback for a topic and returns an idempotent
// unsubscribe. The first callback for a topic triggers the server-side
// registration; the call is asynchronous and its failure is not surfaced
// here (delivery resumes once a later registration succeeds).
func (r *Registry) Subscribe(topic string, cb Callback) func() {
	r.mu.Lock()
	sub, ok := r.topics[topic]
	if !ok {
		sub = &subscription{callbacks: make(map[int]Callback)}
		r.topics[topic] = sub
	}
	id := sub.nextID
	sub.nextID++
	sub.callbacks[id] = cb
	first := len(sub.callbacks) == 1
	connID := r.connectionID
	r.mu.Unlock()

	if first && connID != "" {
		go r.register(connID, topic)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.removeCallback(topic, id)
		})
	}
}

// removeCallback drops one callback; the last one destroys the subscription:
// cache cleared, listener binding dropped, server notified.
func (r *Registry) removeCallback(topic string, id int) {
	r.mu.Lock()
	sub, ok := r.topics[topic]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(sub.callbacks, id)
	if len(sub.callbacks) > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.topics, topic)
	connID := r.connectionID
	r.mu.Unlock()

	if connID != "" {
		go r.deregister(connID, topic)
	}
}

// register performs the side-channel subscribe round trip. If every callback
// left while the round trip was in flight, the registration is immediately
// reverted so nothing leaks server-side.
func (r *Registry) register(connectionID, topic string) {
	ctx, cancel := context.WithTimeout(context.Background(), registerTimeout)
	defer cancel()

	if err := r.side.Subscribe(ctx, connectionID, topic); err != nil {
		// Local subscription stays tracked; the next successful rebind
		// re-registers it.
		r.logger.Warn("topic registration failed", "topic", topic, "error", err)
		return
	}

	r.mu.Lock()
	sub, ok := r.topics[topic]
	wanted := ok && len(sub.callbacks) > 0
	if wanted {
		sub.bound = true
	}
	current := r.connectionID == connectionID
	r.mu.Unlock()

	if !wanted && current {
		go r.deregister(connectionID, topic)
	}
}

func (r *Registry) deregister(connectionID, topic string) {
	ctx, cancel := context.WithTimeout(context.Background(), registerTimeout)
	defer cancel()

	if err := r.side.Unsubscribe(ctx, connectionID, topic); err != nil {
		r.logger.Warn("topic deregistration failed", "topic", topic, "error", err)
	}
}

// HandleStreamEvent consumes one multiplexed stream event whose channel tag
// matches a subscribed topic. It implements stream.Handler.
func (r *Registry) HandleStreamEvent(channel string, payload json.RawMessage, _ time.Time) bool {
	r.mu.Lock()
	sub, ok := r.topics[channel]
	if !ok {
		r.mu.Unlock()
		return false
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.mu.Unlock()
		r.logger.Warn("malformed topic envelope", "topic", channel, "error", err)
		return true
	}

	switch env.Type {
	case EnvelopeFull:
		sub.cached = append(json.RawMessage(nil), env.Data...)
		doc := sub.cached
		cbs := snapshotCallbacks(sub)
		r.mu.Unlock()
		r.notify(channel, cbs, doc)

	case EnvelopeDelta:
		if sub.cached == nil {
			// A cacheless topic waits for a full payload.
			r.mu.Unlock()
			r.logger.Debug("delta without cache, dropped", "topic", channel)
			return true
		}
		next, err := Reconcile(sub.cached, env.Patches)
		if err != nil {
			// Never serve a corrupted reconstruction: invalidate and wait
			// for the next full payload.
			sub.cached = nil
			r.mu.Unlock()
			r.logger.Warn("patch application failed, cache invalidated",
				"topic", channel,
				"error", err,
			)
			return true
		}
		sub.cached = next
		cbs := snapshotCallbacks(sub)
		r.mu.Unlock()
		r.notify(channel, cbs, next)

	default:
		r.mu.Unlock()
		r.logger.Warn("unknown envelope type", "topic", channel, "type", env.Type)
	}

	return true
}

// HandleTransition rebinds or clears topic state on connection lifecycle
// edges. Registered with the stream Manager's OnTransition.
func (r *Registry) HandleTransition(t stream.Transition) {
	switch t.To {
	case stream.StateConnected:
		r.rebind(t.ConnectionID)

	case stream.StateReconnecting, stream.StateFailed:
		// Listener bindings died with the stream; subscriber sets and
		// cached documents stay for the rebind after reconnect.
		r.mu.Lock()
		r.connectionID = ""
		for _, sub := range r.topics {
			sub.bound = false
		}
		r.mu.Unlock()

	case stream.StateIdle:
		r.Reset()
	}
}

// rebind re-registers every topic that still has callbacks against a fresh
// connection. Cached documents are kept; delta delivery resumes as soon as
// the server confirms the registration.
func (r *Registry) rebind(connectionID string) {
	r.mu.Lock()
	r.connectionID = connectionID
	topics := make([]string, 0, len(r.topics))
	for name, sub := range r.topics {
		if len(sub.callbacks) > 0 {
			topics = append(topics, name)
		}
	}
	r.mu.Unlock()

	for _, name := range topics {
		go r.register(connectionID, name)
	}
}

// Reset clears the registry entirely: cached documents, bindings, and
// callback sets. Outstanding unsubscribe closures remain safe no-ops.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectionID = ""
	r.topics = make(map[string]*subscription)
}

// Stats returns a snapshot of registry state.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{Topics: len(r.topics)}
	for _, sub := range r.topics {
		s.Callbacks += len(sub.callbacks)
		if sub.cached != nil {
			s.Cached++
		}
	}
	return s
}

func snapshotCallbacks(sub *subscription) []Callback {
	cbs := make([]Callback, 0, len(sub.callbacks))
	for _, cb := range sub.callbacks {
		cbs = append(cbs, cb)
	}
	return cbs
}

// notify fans a document out to callbacks, isolating panics so one failing
// subscriber cannot block delivery to the rest.
func (r *Registry) notify(topic string, cbs []Callback, doc json.RawMessage) {
	for _, cb := range cbs {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("subscriber panicked", "topic", topic, "panic", p)
				}
			}()
			cb(doc)
		}()
	}
}
