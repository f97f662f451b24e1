package config

// Config is the daemon's on-disk configuration (YAML or JSON).
//
// The notifications block is read once at startup and stays fixed for the
// process lifetime. The logging block is hot-applied by the config watcher.
type Config struct {
	Recorder      RecorderConfig      `json:"recorder"`
	Notifications NotificationsConfig `json:"notifications"`
	Storage       StorageConfig       `json:"storage"`
	Logging       LoggingConfig       `json:"logging"`
	Telegram      *TelegramConfig     `json:"telegram,omitempty"`
}

// RecorderConfig points at the recorder backend's event port.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type RecorderConfig struct {
	Addr        string `json:"addr"`
	DialTimeout string `json:"dial_timeout,omitempty"` // default "5s"

	// Reconnect backoff bounds. Defaults: "1s" .. "30s".
	ReconnectMin string `json:"reconnect_min,omitempty"`
	ReconnectMax string `json:"reconnect_max,omitempty"`
}

// NotificationsConfig mirrors the user's alert preferences.
//
//   - recording_alerts: raise notifications for recording started/ended/failed
//     signals from the recorder backend.
//   - pre_alert_lead: how long before a flagged program's start time the
//     "starting soon" notification fires. Go duration string, default "300s".
type NotificationsConfig struct {
	RecordingAlerts bool   `json:"recording_alerts"`
	PreAlertLead    string `json:"pre_alert_lead,omitempty"`
}

// StorageConfig locates the TV library database.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// TelegramConfig enables mirroring notifications to a Telegram chat.
type TelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	RatePerSec int    `json:"rate_per_sec,omitempty"` // default 1
}
