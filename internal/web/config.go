package web

import "time"

// Config represents the review server configuration
type Config struct {
	Addr     string         `json:"addr"`
	Auth     AuthConfig     `json:"auth"`
	Features FeatureConfig  `json:"features"`
	Limits   LimitsConfig   `json:"limits"`
	Timeouts TimeoutsConfig `json:"timeouts"`
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"api_key"`
}

// FeatureConfig contains feature toggles
type FeatureConfig struct {
	ExportEnabled         bool `json:"export_enabled"`
	ManualOverrideEnabled bool `json:"manual_override_enabled"`
}

// LimitsConfig bounds uploads and retained runs
type LimitsConfig struct {
	MaxUploadBytes int64 `json:"max_upload_bytes"`
	MaxSessions    int   `json:"max_sessions"`
}

// TimeoutsConfig are the HTTP server timeouts
type TimeoutsConfig struct {
	Read     time.Duration `json:"read"`
	Write    time.Duration `json:"write"`
	Idle     time.Duration `json:"idle"`
	Shutdown time.Duration `json:"shutdown"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Addr: ":8080",
		Features: FeatureConfig{
			ExportEnabled:         true,
			ManualOverrideEnabled: true,
		},
		Limits: LimitsConfig{
			MaxUploadBytes: 32 << 20,
			MaxSessions:    20,
		},
		Timeouts: TimeoutsConfig{
			Read:     60 * time.Second,
			Write:    60 * time.Second,
			Idle:     60 * time.Second,
			Shutdown: 30 * time.Second,
		},
	}
}
