package config

// Config is the process configuration. It is distinct from the operator
// settings file (token, templates, destination), which is owned by the
// settings package and re-read on every send.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Server  ServerConfig  `json:"server"`
	Logging LoggingConfig `json:"logging"`

	// Settings points at the operator settings file.
	Settings SettingsConfig `json:"settings"`

	// Storage controls the delivery log. If omitted, auditing is off and
	// resend is unavailable.
	Storage *StorageConfig `json:"storage,omitempty"`

	Dispatch DispatchConfig `json:"dispatch"`

	// Digest controls the periodic failed-delivery summary.
	Digest *DigestConfig `json:"digest,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr"` // default ":8080"
	// RequestTimeout bounds each inbound request, ShutdownTimeout bounds
	// graceful drain on exit.
	RequestTimeout  string `json:"request_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type SettingsConfig struct {
	Path string `json:"path"` // default "./settings.yaml"
}

// StorageConfig selects the delivery log backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./tokobot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // "file", "sqlite", "memory", "none"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type DispatchConfig struct {
	// SendTimeout bounds a single Bot API call. "0s" keeps the default.
	SendTimeout string `json:"send_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

type DigestConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a 5-field cron spec or descriptor ("@daily").
	Schedule string `json:"schedule,omitempty"`
	Window   string `json:"window,omitempty"` // Go duration string
	MaxIDs   int    `json:"max_ids,omitempty"`
}
