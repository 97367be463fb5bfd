package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Manager owns the single push-stream connection and its lifecycle state
// machine. Exactly one stream is open or opening at any time; transport
// errors drive a bounded exponential-backoff reconnect sequence, and an
// exhausted sequence parks the machine in StateFailed until Retry.
type Manager struct {
	cfg    ManagerConfig
	dialer Dialer
	logger *slog.Logger

	// Optional push-endpoint reporting collaborators
	pushSource PushEndpointSource
	pushLinker PushLinker

	mu                sync.Mutex
	state             State
	session           Session
	attempts          int
	sequenceStartedAt time.Time
	reconnectTimer    *time.Timer
	stream            Stream
	dialing           bool
	ctx               context.Context
	cancel            context.CancelFunc

	handlers  []Handler
	observers []func(Transition)

	// Delivery order for observers
	notifyMu sync.Mutex

	wg sync.WaitGroup

	// Counters
	received    int64
	parseErrors int64
	unrouted    int64
}

// NewManager creates a connection Manager. Dial happens on Initialize.
func NewManager(cfg ManagerConfig, dialer Dialer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:    cfg,
		dialer: dialer,
		logger: logger,
		state:  StateIdle,
	}
}

// SetPushEndpointReporting wires the opportunistic push-endpoint link call.
// Both collaborators must be set before Initialize; failures are non-fatal.
func (m *Manager) SetPushEndpointReporting(source PushEndpointSource, linker PushLinker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushSource = source
	m.pushLinker = linker
}

// Attach registers a Handler for multiplexed stream events. Handlers are
// consulted in registration order until one reports the channel handled.
func (m *Manager) Attach(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// OnTransition registers an observer for state machine edges. Observers run
// synchronously in registration order; a transition to StateIdle is delivered
// before Teardown returns.
func (m *Manager) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Initialize opens the stream. No-op unless the machine is idle; the auth
// collaborator gates when this runs (post-login).
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	t := m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	m.notify(t)
	go m.connect()
}

// Retry leaves the terminal failed state and immediately attempts a fresh
// connection. No-op in any other state.
func (m *Manager) Retry() {
	m.mu.Lock()
	if m.state != StateFailed {
		m.mu.Unlock()
		return
	}
	m.attempts = 0
	m.sequenceStartedAt = time.Time{}
	t := m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	m.notify(t)
	go m.connect()
}

// Probe triggers an immediate connection attempt, bypassing the pending
// backoff delay. Wired to platform liveness signals (tab visible, window
// focused). It never resets the attempt counter, so a focused tab cannot
// keep an exhausted sequence out of the failed state forever.
func (m *Manager) Probe() {
	m.mu.Lock()
	if m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.stopReconnectTimerLocked()
	m.mu.Unlock()

	go m.connect()
}

// Teardown closes the stream, cancels every pending timer, and returns the
// machine to idle. The StateIdle transition is delivered to observers before
// Teardown returns, and no handler callback fires afterwards.
func (m *Manager) Teardown() {
	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		return
	}
	m.stopReconnectTimerLocked()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	s := m.stream
	m.stream = nil
	m.session = Session{}
	m.attempts = 0
	m.sequenceStartedAt = time.Time{}
	t := m.setStateLocked(StateIdle)
	m.mu.Unlock()

	if s != nil {
		s.Close()
	}
	// Wait for the read loop so no event is dispatched after we return.
	m.wg.Wait()

	m.notify(t)
	m.logger.Info("sync connection torn down")
}

// Stats returns a snapshot of manager state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		State:          m.state,
		ConnectionID:   m.session.ConnectionID,
		Attempts:       m.attempts,
		DisconnectedAt: m.session.DisconnectedAt,
		Received:       m.received,
		ParseErrors:    m.parseErrors,
		Unrouted:       m.unrouted,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// setStateLocked records a state edge and builds the Transition for
// observers. Caller holds m.mu.
func (m *Manager) setStateLocked(to State) Transition {
	t := Transition{
		From:           m.state,
		To:             to,
		ConnectionID:   m.session.ConnectionID,
		DisconnectedAt: m.session.DisconnectedAt,
		At:             time.Now(),
	}
	m.state = to
	return t
}

// notify delivers a transition to observers, serialized so observers see
// edges in order.
func (m *Manager) notify(t Transition) {
	m.mu.Lock()
	observers := make([]func(Transition), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	for _, fn := range observers {
		fn(t)
	}
}

// connect performs one dial attempt. The dialing flag keeps concurrent
// triggers (backoff timer, probe) from racing a second stream open.
func (m *Manager) connect() {
	m.mu.Lock()
	if m.dialing || (m.state != StateConnecting && m.state != StateReconnecting) {
		m.mu.Unlock()
		return
	}
	m.dialing = true
	ctx := m.ctx
	m.mu.Unlock()

	s, err := m.dialer.Dial(ctx)

	m.mu.Lock()
	m.dialing = false
	if m.state != StateConnecting && m.state != StateReconnecting {
		// Torn down (or failed) while the dial was in flight
		m.mu.Unlock()
		if s != nil {
			s.Close()
		}
		return
	}

	if err != nil {
		t, exhausted := m.transitionToReconnectingLocked()
		m.mu.Unlock()
		m.logger.Warn("connection attempt failed", "error", err)
		m.notify(t)
		if exhausted {
			m.logger.Error("reconnect budget exhausted, giving up until retry")
		}
		return
	}

	m.stream = s
	m.wg.Add(1)
	m.mu.Unlock()

	go m.readLoop(s)
}

// readLoop consumes one stream until it errors or closes. All topic and
// auxiliary event delivery happens on this goroutine.
func (m *Manager) readLoop(s Stream) {
	defer m.wg.Done()

	for {
		select {
		case err, ok := <-s.Errors():
			if !ok {
				return
			}
			m.handleStreamError(s, err)
			return

		case msg, ok := <-s.Messages():
			if !ok {
				// Stream closed without a transport error: either our own
				// teardown or a server-side close.
				m.handleStreamError(s, ErrStreamClosed)
				return
			}
			m.dispatch(s, msg)
		}
	}
}

// dispatch parses the channel envelope and routes one stream message.
func (m *Manager) dispatch(s Stream, msg Message) {
	m.mu.Lock()
	if s != m.stream {
		m.mu.Unlock()
		return
	}
	m.received++
	m.mu.Unlock()

	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		m.mu.Lock()
		m.parseErrors++
		m.mu.Unlock()
		m.logger.Warn("failed to parse stream envelope", "error", err)
		return
	}

	if env.Channel == ChannelConnected {
		m.handleConnected(s, env.Payload)
		return
	}

	m.mu.Lock()
	if s != m.stream || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	handlers := make([]Handler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, h := range handlers {
		if h.HandleStreamEvent(env.Channel, env.Payload, msg.ReceivedAt) {
			return
		}
	}

	m.mu.Lock()
	m.unrouted++
	m.mu.Unlock()
	m.logger.Debug("unrouted stream event", "channel", env.Channel)
}

// handleConnected processes the server hello carrying the connectionId.
func (m *Manager) handleConnected(s Stream, payload json.RawMessage) {
	var hello connectedPayload
	if err := json.Unmarshal(payload, &hello); err != nil {
		m.mu.Lock()
		m.parseErrors++
		m.mu.Unlock()
		m.logger.Warn("failed to parse connected payload", "error", err)
		return
	}

	m.mu.Lock()
	if s != m.stream || (m.state != StateConnecting && m.state != StateReconnecting) {
		m.mu.Unlock()
		return
	}
	m.session.ConnectionID = hello.ConnectionID
	m.session.DisconnectedAt = time.Time{}
	m.attempts = 0
	m.sequenceStartedAt = time.Time{}
	m.stopReconnectTimerLocked()
	t := m.setStateLocked(StateConnected)
	ctx := m.ctx
	pushWired := m.pushSource != nil && m.pushLinker != nil
	m.mu.Unlock()

	m.logger.Info("sync stream connected", "connection_id", hello.ConnectionID)
	m.notify(t)

	if pushWired {
		go m.reportPushEndpoint(ctx, hello.ConnectionID)
	}
}

// handleStreamError runs the stream-error edge of the machine. Errors from a
// stream that is no longer current are ignored.
func (m *Manager) handleStreamError(s Stream, err error) {
	m.mu.Lock()
	if s != m.stream || m.state == StateIdle || m.state == StateFailed {
		m.mu.Unlock()
		return
	}
	m.stream = nil
	t, exhausted := m.transitionToReconnectingLocked()
	m.mu.Unlock()

	m.logger.Warn("stream error", "error", err, "state", t.To.String())
	m.notify(t)
	if exhausted {
		m.logger.Error("reconnect budget exhausted, giving up until retry")
	}

	go s.Close()
}

// transitionToReconnectingLocked stamps the outage clock, schedules the next
// attempt, and reports whether the sequence budget is exhausted (in which
// case the transition is to StateFailed instead). Caller holds m.mu.
func (m *Manager) transitionToReconnectingLocked() (Transition, bool) {
	// First disconnect of an outage marks the clock; repeated errors during
	// an unresolved outage do not reset it.
	if m.session.DisconnectedAt.IsZero() {
		m.session.DisconnectedAt = time.Now()
	}
	if m.sequenceStartedAt.IsZero() {
		m.sequenceStartedAt = time.Now()
	}

	m.attempts++
	n := m.attempts

	if n > m.cfg.MaxAttempts || time.Since(m.sequenceStartedAt) > m.cfg.MaxSequenceDuration {
		m.stopReconnectTimerLocked()
		m.sequenceStartedAt = time.Time{}
		return m.setStateLocked(StateFailed), true
	}

	delay := backoffDelay(n, m.cfg.BaseDelay, m.cfg.MaxDelay)
	m.stopReconnectTimerLocked()
	m.reconnectTimer = time.AfterFunc(delay, m.reconnectTimerFired)
	m.logger.Info("reconnect scheduled", "attempt", n, "delay", delay)

	return m.setStateLocked(StateReconnecting), false
}

func (m *Manager) reconnectTimerFired() {
	m.mu.Lock()
	if m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	m.mu.Unlock()

	m.connect()
}

// stopReconnectTimerLocked cancels any pending reconnect timer so a given
// purpose never has two timers armed. Caller holds m.mu.
func (m *Manager) stopReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// backoffDelay is min(base * 2^(n-1), max) for attempt n.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 32 {
		return max
	}
	d := base << (attempt - 1)
	if d <= 0 || d > max {
		return max
	}
	return d
}

// reportPushEndpoint performs the opportunistic push-endpoint link call.
// Failure is non-fatal and silent beyond a debug log.
func (m *Manager) reportPushEndpoint(ctx context.Context, connectionID string) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint, err := m.pushSource.PushEndpoint(ctx)
	if err != nil || endpoint == "" {
		if err != nil {
			m.logger.Debug("push endpoint lookup failed", "error", err)
		}
		return
	}

	if err := m.pushLinker.LinkPushEndpoint(ctx, connectionID, m.cfg.DeviceID, endpoint); err != nil {
		m.logger.Debug("push endpoint link failed", "error", err)
	}
}
