package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *SyncConfig) Validate() error {
	if c.Server.StreamURL == "" {
		return errors.New("server.stream_url is required")
	}
	if !strings.HasPrefix(c.Server.StreamURL, "ws://") && !strings.HasPrefix(c.Server.StreamURL, "wss://") {
		return fmt.Errorf("server.stream_url must be a ws:// or wss:// URL, got %q", c.Server.StreamURL)
	}
	if c.Server.APIURL == "" {
		return errors.New("server.api_url is required")
	}

	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}

	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%v) cannot be less than base_delay (%v)",
			c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}
	if c.Reconnect.MaxAttempts < 1 {
		return errors.New("reconnect.max_attempts must be >= 1")
	}
	if c.Reconnect.MaxSequenceDuration <= 0 {
		return errors.New("reconnect.max_sequence_duration must be > 0")
	}

	if c.Status.GracePeriod <= 0 {
		return errors.New("status.grace_period must be > 0")
	}

	if c.SideChannel.MaxRetries < 0 {
		return errors.New("side_channel.max_retries must be >= 0")
	}

	for _, topic := range c.Topics {
		if strings.TrimSpace(topic) == "" {
			return errors.New("topics entries must be non-empty")
		}
	}

	return nil
}
