package router

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Fanout is a typed broadcast channel: one decode per event, then delivery to
// every registered callback. A panicking callback is isolated so it cannot
// block delivery to the others.
type Fanout[T any] struct {
	name   string
	logger *slog.Logger

	mu        sync.Mutex
	callbacks map[int]func(T)
	nextID    int

	delivered   int64
	parseErrors int64
}

// FanoutStats contains runtime statistics for one channel.
type FanoutStats struct {
	Subscribers int
	Delivered   int64
	ParseErrors int64
}

// NewFanout creates a fan-out for the named channel.
func NewFanout[T any](name string, logger *slog.Logger) *Fanout[T] {
	if logger == nil {
		logger = slog.Default()
	}

	return &Fanout[T]{
		name:      name,
		logger:    logger,
		callbacks: make(map[int]func(T)),
	}
}

// Subscribe registers a callback and returns its removal function. The
// removal function is idempotent.
func (f *Fanout[T]) Subscribe(cb func(T)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.callbacks[id] = cb
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.callbacks, id)
			f.mu.Unlock()
		})
	}
}

// Dispatch decodes a raw payload and delivers it to every subscriber. A
// payload that does not decode is counted and dropped; the stream is never
// affected.
func (f *Fanout[T]) Dispatch(payload json.RawMessage) {
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		f.mu.Lock()
		f.parseErrors++
		f.mu.Unlock()
		f.logger.Warn("dropping malformed broadcast event",
			"channel", f.name,
			"error", err,
		)
		return
	}

	f.mu.Lock()
	targets := make([]func(T), 0, len(f.callbacks))
	for _, cb := range f.callbacks {
		targets = append(targets, cb)
	}
	f.delivered++
	f.mu.Unlock()

	for _, cb := range targets {
		f.deliver(cb, event)
	}
}

func (f *Fanout[T]) deliver(cb func(T), event T) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("broadcast subscriber panicked",
				"channel", f.name,
				"panic", r,
			)
		}
	}()
	cb(event)
}

// Stats returns current statistics.
func (f *Fanout[T]) Stats() FanoutStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return FanoutStats{
		Subscribers: len(f.callbacks),
		Delivered:   f.delivered,
		ParseErrors: f.parseErrors,
	}
}
