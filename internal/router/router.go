package router

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Set bundles the fixed broadcast channels and routes stream events to them.
// Unlike topic subscriptions these channels keep no cache and need no
// server-side registration; they exist as soon as the stream does.
type Set struct {
	ServiceStatus   *Fanout[ServiceStatusEvent]
	Backup          *Fanout[BackupEvent]
	Notification    *Fanout[NotificationEvent]
	CacheInvalidate *Fanout[CacheInvalidateEvent]
	Theme           *Fanout[ThemeEvent]
	Progress        *Fanout[ProgressEvent]
}

// Stats contains per-channel statistics.
type Stats struct {
	ServiceStatus   FanoutStats
	Backup          FanoutStats
	Notification    FanoutStats
	CacheInvalidate FanoutStats
	Theme           FanoutStats
	Progress        FanoutStats
}

// NewSet creates routers for all broadcast channels.
func NewSet(logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "router")

	return &Set{
		ServiceStatus:   NewFanout[ServiceStatusEvent](ChannelServiceStatus, logger),
		Backup:          NewFanout[BackupEvent](ChannelBackup, logger),
		Notification:    NewFanout[NotificationEvent](ChannelNotification, logger),
		CacheInvalidate: NewFanout[CacheInvalidateEvent](ChannelCacheInvalidate, logger),
		Theme:           NewFanout[ThemeEvent](ChannelTheme, logger),
		Progress:        NewFanout[ProgressEvent](ChannelProgress, logger),
	}
}

// HandleStreamEvent routes one stream event to its channel's fan-out. It
// reports whether the channel tag belongs to this set; a recognized channel
// counts as handled even when its payload fails to decode.
func (s *Set) HandleStreamEvent(channel string, payload json.RawMessage, _ time.Time) bool {
	switch channel {
	case ChannelServiceStatus:
		s.ServiceStatus.Dispatch(payload)
	case ChannelBackup:
		s.Backup.Dispatch(payload)
	case ChannelNotification:
		s.Notification.Dispatch(payload)
	case ChannelCacheInvalidate:
		s.CacheInvalidate.Dispatch(payload)
	case ChannelTheme:
		s.Theme.Dispatch(payload)
	case ChannelProgress:
		s.Progress.Dispatch(payload)
	default:
		return false
	}
	return true
}

// Stats returns statistics for every channel.
func (s *Set) Stats() Stats {
	return Stats{
		ServiceStatus:   s.ServiceStatus.Stats(),
		Backup:          s.Backup.Stats(),
		Notification:    s.Notification.Stats(),
		CacheInvalidate: s.CacheInvalidate.Stats(),
		Theme:           s.Theme.Stats(),
		Progress:        s.Progress.Stats(),
	}
}
