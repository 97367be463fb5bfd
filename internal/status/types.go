package status

import "time"

// Severity is the tiered classification of an ongoing disconnect, derived
// purely from elapsed time. It feeds passive UI and is independent of the
// toast policy.
type Severity string

const (
	SeverityConnected           Severity = "connected"
	SeverityReconnectingSilent  Severity = "reconnecting-silent"
	SeverityReconnectingWarning Severity = "reconnecting-warning"
	SeverityDisconnected        Severity = "disconnected"
)

// Tier thresholds.
const (
	silentThreshold  = 5 * time.Second
	warningThreshold = 30 * time.Second
)

// TierAt classifies a disconnect by elapsed time. A zero disconnectedAt
// means connected.
func TierAt(disconnectedAt, now time.Time) Severity {
	if disconnectedAt.IsZero() {
		return SeverityConnected
	}
	elapsed := now.Sub(disconnectedAt)
	switch {
	case elapsed < silentThreshold:
		return SeverityReconnectingSilent
	case elapsed < warningThreshold:
		return SeverityReconnectingWarning
	default:
		return SeverityDisconnected
	}
}

// ToastKind identifies one of this subsystem's toasts.
type ToastKind string

const (
	ToastReconnecting     ToastKind = "reconnecting"      // Persistent until dismissed
	ToastReconnected      ToastKind = "reconnected"       // Transient success
	ToastConnectionFailed ToastKind = "connection-failed" // Persistent, carries a retry action
)

// Toast is one show request for the toast surface.
type Toast struct {
	Kind  ToastKind
	Retry func() // Set on ToastConnectionFailed only
}

// Surface renders toasts. Implemented by the UI collaborator; calls arrive
// on reporter goroutines and must not call back into the Reporter.
type Surface interface {
	Show(t Toast)
	Dismiss(kind ToastKind)
}

// Config holds the reporter's timing policy.
type Config struct {
	GracePeriod         time.Duration // Outage shorter than this shows nothing
	SuccessDismissAfter time.Duration // Auto-dismiss for the reconnected toast
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		GracePeriod:         10 * time.Second,
		SuccessDismissAfter: 10 * time.Second,
	}
}
