package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  stream_url: wss://dash.example.com/sync/stream
  api_url: https://dash.example.com/api
  token: abc123
device:
  id: test-device
topics:
  - widgets/weather
  - settings/general
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.StreamURL != "wss://dash.example.com/sync/stream" {
		t.Errorf("Server.StreamURL = %q, want %q", cfg.Server.StreamURL, "wss://dash.example.com/sync/stream")
	}
	if cfg.Device.ID != "test-device" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "test-device")
	}
	if len(cfg.Topics) != 2 || cfg.Topics[0] != "widgets/weather" {
		t.Errorf("Topics = %v, want [widgets/weather settings/general]", cfg.Topics)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_SYNC_TOKEN", "secret123")

	yaml := `
server:
  stream_url: wss://dash.example.com/sync/stream
  api_url: https://dash.example.com/api
  token: ${TEST_SYNC_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Token != "secret123" {
		t.Errorf("Server.Token = %q, want %q", cfg.Server.Token, "secret123")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	yaml := `
server:
  stream_url: wss://dash.example.com/sync/stream
  api_url: https://dash.example.com/api
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Reconnect.BaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("Reconnect.BaseDelay = %v, want default %v", cfg.Reconnect.BaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.Reconnect.MaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("Reconnect.MaxDelay = %v, want default %v", cfg.Reconnect.MaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.Reconnect.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Reconnect.MaxAttempts = %d, want default %d", cfg.Reconnect.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Status.GracePeriod != DefaultGracePeriod {
		t.Errorf("Status.GracePeriod = %v, want default %v", cfg.Status.GracePeriod, DefaultGracePeriod)
	}
	if cfg.Stream.BufferSize != DefaultStreamBufferSize {
		t.Errorf("Stream.BufferSize = %d, want default %d", cfg.Stream.BufferSize, DefaultStreamBufferSize)
	}
}

func TestValidate(t *testing.T) {
	valid := func() SyncConfig {
		return SyncConfig{
			Server: ServerConfig{
				StreamURL: "wss://dash.example.com/sync/stream",
				APIURL:    "https://dash.example.com/api",
			},
			Stream: StreamConfig{BufferSize: 100},
			Reconnect: ReconnectConfig{
				BaseDelay:           time.Second,
				MaxDelay:            30 * time.Second,
				MaxAttempts:         10,
				MaxSequenceDuration: 120 * time.Second,
			},
			Status: StatusConfig{GracePeriod: 10 * time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*SyncConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *SyncConfig) {},
			wantErr: "",
		},
		{
			name:    "missing stream url",
			mutate:  func(c *SyncConfig) { c.Server.StreamURL = "" },
			wantErr: "server.stream_url is required",
		},
		{
			name:    "stream url wrong scheme",
			mutate:  func(c *SyncConfig) { c.Server.StreamURL = "https://dash.example.com" },
			wantErr: `server.stream_url must be a ws:// or wss:// URL, got "https://dash.example.com"`,
		},
		{
			name:    "missing api url",
			mutate:  func(c *SyncConfig) { c.Server.APIURL = "" },
			wantErr: "server.api_url is required",
		},
		{
			name:    "max delay below base delay",
			mutate:  func(c *SyncConfig) { c.Reconnect.MaxDelay = 500 * time.Millisecond },
			wantErr: "reconnect.max_delay (500ms) cannot be less than base_delay (1s)",
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *SyncConfig) { c.Reconnect.MaxAttempts = 0 },
			wantErr: "reconnect.max_attempts must be >= 1",
		},
		{
			name:    "empty topic entry",
			mutate:  func(c *SyncConfig) { c.Topics = []string{"ok", "  "} },
			wantErr: "topics entries must be non-empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
