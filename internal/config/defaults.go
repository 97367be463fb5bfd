package config

import "time"

// Default values for optional configuration fields.
//
// The reconnect and status durations are product policy: brief interruptions
// stay invisible, sustained outages escalate, and a sequence that cannot
// recover within its budget stops retrying on its own.
const (
	DefaultPingTimeout         = 30 * time.Second
	DefaultWriteTimeout        = 5 * time.Second
	DefaultStreamBufferSize    = 1000
	DefaultReconnectBaseDelay  = 1 * time.Second
	DefaultReconnectMaxDelay   = 30 * time.Second
	DefaultMaxAttempts         = 10
	DefaultMaxSequenceDuration = 120 * time.Second
	DefaultGracePeriod         = 10 * time.Second
	DefaultSuccessDismissAfter = 10 * time.Second
	DefaultSideChannelTimeout  = 30
	DefaultSideChannelRetries  = 3
)

func (c *SyncConfig) applyDefaults() {
	// Stream defaults
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Reconnect defaults
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Reconnect.MaxSequenceDuration == 0 {
		c.Reconnect.MaxSequenceDuration = DefaultMaxSequenceDuration
	}

	// Status defaults
	if c.Status.GracePeriod == 0 {
		c.Status.GracePeriod = DefaultGracePeriod
	}
	if c.Status.SuccessDismissAfter == 0 {
		c.Status.SuccessDismissAfter = DefaultSuccessDismissAfter
	}

	// Side-channel defaults
	if c.SideChannel.Timeout == 0 {
		c.SideChannel.Timeout = DefaultSideChannelTimeout
	}
	if c.SideChannel.MaxRetries == 0 {
		c.SideChannel.MaxRetries = DefaultSideChannelRetries
	}
}
