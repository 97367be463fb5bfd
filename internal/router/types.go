package router

// Broadcast channel names as they appear in the stream envelope's channel tag.
const (
	ChannelServiceStatus   = "service-status"
	ChannelBackup          = "backup"
	ChannelNotification    = "notification"
	ChannelCacheInvalidate = "cache-invalidate"
	ChannelTheme           = "theme"
	ChannelProgress        = "progress"
)

// ServiceStatusEvent announces a state change of a backend service.
type ServiceStatusEvent struct {
	Service string `json:"service"`
	Status  string `json:"status"` // e.g. "running", "degraded", "stopped"
	Message string `json:"message,omitempty"`
}

// BackupEvent marks one stage of a backup run.
type BackupEvent struct {
	BackupID string `json:"backupId"`
	Stage    string `json:"stage"` // "started", "snapshot", "upload", "completed", "failed"
	Error    string `json:"error,omitempty"`
}

// NotificationEvent is a user-visible notification pushed by the server.
type NotificationEvent struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	Severity string `json:"severity,omitempty"` // "info", "warning", "error"
}

// CacheInvalidateEvent names an entity whose externally-owned caches must be
// refreshed. The entity name is delivered verbatim; mapping it to cache keys
// is the consumer's job.
type CacheInvalidateEvent struct {
	Entity string `json:"entity"`
}

// ThemeEvent syncs an appearance change made on another device.
type ThemeEvent struct {
	Theme string `json:"theme"`
}

// ProgressEvent reports progress of a long-running server-side job.
type ProgressEvent struct {
	JobID    string  `json:"jobId"`
	Fraction float64 `json:"fraction"` // 0..1
	Detail   string  `json:"detail,omitempty"`
}
