package monitor

import (
	"github.com/doc-johnson/xray-reality-vpn/internal/app/config"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// Config re-exports the root configuration struct so embedding programs can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy holds the window, retention, history and timeout settings of a pass.
	Policy = ports.Policy
	// RegistryConfig selects where identities come from.
	RegistryConfig = config.RegistryConfig
	// CounterConfig selects how the relay's traffic counters are read.
	CounterConfig = config.CounterConfig
	// LogConfig locates the relay access log.
	LogConfig = config.LogConfig
	// ArtifactsConfig names the published documents.
	ArtifactsConfig = config.ArtifactsConfig
	ScheduleConfig  = config.ScheduleConfig
	MetricsConfig   = config.MetricsConfig
	LoggingConfig   = config.LoggingConfig
)

// LoadConfig loads YAML from disk, applies defaults and validates.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
