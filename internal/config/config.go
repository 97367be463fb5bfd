package config

import "time"

// SyncConfig is the root configuration for a sync client instance.
type SyncConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Device      DeviceConfig      `yaml:"device"`
	Stream      StreamConfig      `yaml:"stream"`
	Reconnect   ReconnectConfig   `yaml:"reconnect"`
	Status      StatusConfig      `yaml:"status"`
	SideChannel SideChannelConfig `yaml:"side_channel"`
	Topics      []string          `yaml:"topics"`
}

// ServerConfig holds dashboard server endpoints and credentials.
type ServerConfig struct {
	StreamURL string `yaml:"stream_url"` // WebSocket URL (e.g., wss://dash.example.com/sync/stream)
	APIURL    string `yaml:"api_url"`    // REST base URL for side-channel calls
	Token     string `yaml:"token"`      // Session token (bearer)
}

// DeviceConfig identifies this device.
type DeviceConfig struct {
	ID           string `yaml:"id"`            // Generated if empty
	PushEndpoint string `yaml:"push_endpoint"` // Local push delivery endpoint, if any
}

// StreamConfig holds push-stream transport settings.
type StreamConfig struct {
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	BufferSize   int           `yaml:"buffer_size"`
}

// ReconnectConfig holds the reconnection policy.
type ReconnectConfig struct {
	BaseDelay           time.Duration `yaml:"base_delay"`
	MaxDelay            time.Duration `yaml:"max_delay"`
	MaxAttempts         int           `yaml:"max_attempts"`
	MaxSequenceDuration time.Duration `yaml:"max_sequence_duration"`
}

// StatusConfig holds the user-feedback policy.
type StatusConfig struct {
	GracePeriod         time.Duration `yaml:"grace_period"`
	SuccessDismissAfter time.Duration `yaml:"success_dismiss_after"`
}

// SideChannelConfig holds REST side-channel client settings.
type SideChannelConfig struct {
	Timeout    int `yaml:"timeout_seconds"`
	MaxRetries int `yaml:"max_retries"`
}
