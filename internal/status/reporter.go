// Package status derives user-facing feedback from connection state
// transitions: a passive tiered severity and a grace-period gated toast
// policy that keeps brief reconnects invisible.
package status

import (
	"log/slog"
	"sync"
	"time"

	"github.com/calverton/dashsync/internal/stream"
)

// Reporter observes connection transitions and drives the toast surface.
// A reconnecting toast appears only after an outage outlives the grace
// period, and only on a connection that had been established at least once.
type Reporter struct {
	cfg     Config
	surface Surface
	retry   func() // Manual retry action offered on the failure toast
	logger  *slog.Logger

	mu             sync.Mutex
	state          stream.State
	disconnectedAt time.Time
	everConnected  bool
	toastShown     bool // Reconnecting toast visible for the current outage
	graceTimer     *time.Timer
	dismissTimer   *time.Timer
}

// NewReporter creates a Reporter. retry is invoked when the user acts on the
// failure toast; wire it to the connection manager's Retry.
func NewReporter(cfg Config, surface Surface, retry func(), logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reporter{
		cfg:     cfg,
		surface: surface,
		retry:   retry,
		logger:  logger,
		state:   stream.StateIdle,
	}
}

// Severity returns the current tiered disconnect severity.
func (r *Reporter) Severity() Severity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return TierAt(r.disconnectedAt, time.Now())
}

// HandleTransition consumes one connection state edge. Registered with the
// stream Manager's OnTransition.
func (r *Reporter) HandleTransition(t stream.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = t.To
	r.disconnectedAt = t.DisconnectedAt

	switch t.To {
	case stream.StateConnected:
		r.everConnected = true
		r.disconnectedAt = time.Time{}
		r.stopGraceLocked()

		if r.toastShown {
			r.toastShown = false
			r.surface.Dismiss(ToastReconnecting)
			r.surface.Show(Toast{Kind: ToastReconnected})
			r.armDismissLocked()
		}
		r.surface.Dismiss(ToastConnectionFailed)

	case stream.StateReconnecting:
		// One grace timer per outage; repeated errors must not re-arm it,
		// and once the toast is up there is nothing left to gate.
		if r.everConnected && !r.toastShown && r.graceTimer == nil {
			r.graceTimer = time.AfterFunc(r.cfg.GracePeriod, r.graceElapsed)
		}

	case stream.StateFailed:
		r.stopGraceLocked()
		if r.toastShown {
			r.toastShown = false
			r.surface.Dismiss(ToastReconnecting)
		}
		r.surface.Show(Toast{Kind: ToastConnectionFailed, Retry: r.retry})

	case stream.StateIdle:
		r.stopGraceLocked()
		r.stopDismissLocked()
		r.surface.Dismiss(ToastReconnecting)
		r.surface.Dismiss(ToastReconnected)
		r.surface.Dismiss(ToastConnectionFailed)
		r.everConnected = false
		r.toastShown = false
		r.disconnectedAt = time.Time{}
	}
}

// graceElapsed fires when an outage outlives the grace period.
func (r *Reporter) graceElapsed() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.graceTimer == nil {
		// Cancelled after the timer fired but before we took the lock.
		return
	}
	r.graceTimer = nil

	if r.state != stream.StateReconnecting {
		return
	}

	r.toastShown = true
	r.surface.Show(Toast{Kind: ToastReconnecting})
	r.logger.Info("reconnecting toast shown",
		"disconnected_for", time.Since(r.disconnectedAt),
	)
}

// dismissElapsed auto-dismisses the transient reconnected toast.
func (r *Reporter) dismissElapsed() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dismissTimer == nil {
		return
	}
	r.dismissTimer = nil
	r.surface.Dismiss(ToastReconnected)
}

func (r *Reporter) armDismissLocked() {
	r.stopDismissLocked()
	r.dismissTimer = time.AfterFunc(r.cfg.SuccessDismissAfter, r.dismissElapsed)
}

func (r *Reporter) stopGraceLocked() {
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
}

func (r *Reporter) stopDismissLocked() {
	if r.dismissTimer != nil {
		r.dismissTimer.Stop()
		r.dismissTimer = nil
	}
}
