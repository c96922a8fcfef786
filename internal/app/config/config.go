package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

type Config struct {
	Registry  RegistryConfig  `yaml:"registry"`
	Counter   CounterConfig   `yaml:"counter"`
	Log       LogConfig       `yaml:"log"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Policy    ports.Policy    `yaml:"policy"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type RegistryConfig struct {
	Kind       string `yaml:"kind"` // "file", "xray_config", "postgres"
	Path       string `yaml:"path"`
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type CounterConfig struct {
	Kind    string `yaml:"kind"` // "grpc", "cli"
	Addr    string `yaml:"addr"`
	Binary  string `yaml:"binary"`
	Pattern string `yaml:"pattern"`
}

type LogConfig struct {
	Path         string `yaml:"path"`
	Location     string `yaml:"location"`
	MaxLineBytes int    `yaml:"max_line_bytes"`
}

type ArtifactsConfig struct {
	Dir      string `yaml:"dir"`
	Snapshot string `yaml:"snapshot"`
	Traffic  string `yaml:"traffic"`
	Presence string `yaml:"presence"`
	Ledger   string `yaml:"ledger"`
}

type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills every unset field. Defaults match the stock relay
// install layout under /data.
func (c *Config) ApplyDefaults() {
	if c.Registry.Kind == "" {
		c.Registry.Kind = "file"
	}
	if c.Registry.Kind == "file" && c.Registry.Path == "" {
		c.Registry.Path = "/data/config/.user_uuids"
	}
	if c.Registry.Kind == "xray_config" && c.Registry.Path == "" {
		c.Registry.Path = "/data/config/config.json"
	}
	if c.Registry.Table == "" {
		c.Registry.Table = "identities"
	}
	if c.Counter.Kind == "" {
		c.Counter.Kind = "grpc"
	}
	if c.Counter.Addr == "" {
		c.Counter.Addr = "127.0.0.1:10085"
	}
	if c.Counter.Binary == "" {
		c.Counter.Binary = "xray"
	}
	if c.Counter.Pattern == "" {
		c.Counter.Pattern = "user>>>"
	}
	if c.Log.Path == "" {
		c.Log.Path = "/data/logs/access.log"
	}
	if c.Log.Location == "" {
		c.Log.Location = "Local"
	}
	if c.Log.MaxLineBytes <= 0 {
		c.Log.MaxLineBytes = 64 << 10
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "/data/monitoring"
	}
	if c.Artifacts.Snapshot == "" {
		c.Artifacts.Snapshot = "stats.json"
	}
	if c.Artifacts.Traffic == "" {
		c.Artifacts.Traffic = "traffic_history.json"
	}
	if c.Artifacts.Presence == "" {
		c.Artifacts.Presence = "presence_history.json"
	}
	if c.Artifacts.Ledger == "" {
		c.Artifacts.Ledger = "ips.json"
	}
	if c.Policy.NowWindow == 0 {
		c.Policy.NowWindow = 2 * time.Minute
	}
	if c.Policy.Retention == 0 {
		c.Policy.Retention = 30 * 24 * time.Hour
	}
	if c.Policy.HistoryCapacity == 0 {
		c.Policy.HistoryCapacity = domain.DefaultHistoryCapacity
	}
	if c.Policy.CounterTimeout == 0 {
		c.Policy.CounterTimeout = 5 * time.Second
	}
	if c.Policy.LockTimeout == 0 {
		c.Policy.LockTimeout = 10 * time.Second
	}
	if c.Schedule.Interval == 0 {
		c.Schedule.Interval = time.Minute
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9105"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Registry.Kind {
	case "file", "xray_config":
		if c.Registry.Path == "" {
			errs = append(errs, errors.New("registry.path is required"))
		}
	case "postgres":
		if c.Registry.ConnString == "" {
			errs = append(errs, errors.New("registry.conn_string is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("registry.kind %q: %w", c.Registry.Kind, domain.ErrUnknownRegistry))
	}
	switch c.Counter.Kind {
	case "grpc", "cli":
	default:
		errs = append(errs, fmt.Errorf("counter.kind %q is not supported", c.Counter.Kind))
	}
	if _, err := c.LogLocation(); err != nil {
		errs = append(errs, fmt.Errorf("log.location: %w", err))
	}
	if c.Policy.NowWindow < 0 {
		errs = append(errs, errors.New("policy.now_window must be positive"))
	}
	if c.Policy.Retention < 0 {
		errs = append(errs, errors.New("policy.retention must be positive"))
	}
	if c.Policy.HistoryCapacity < 0 {
		errs = append(errs, errors.New("policy.history_capacity must be positive"))
	}
	if c.Schedule.Interval < 0 {
		errs = append(errs, errors.New("schedule.interval must be positive"))
	}
	return errors.Join(errs...)
}

// LogLocation resolves the time zone the relay writes access log times in.
func (c *Config) LogLocation() (*time.Location, error) {
	if c.Log.Location == "" || c.Log.Location == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Log.Location)
}

// ArtifactPath returns the on-disk location of a published document.
func (c *Config) ArtifactPath(a ports.Artifact) string {
	var name string
	switch a {
	case ports.ArtifactSnapshot:
		name = c.Artifacts.Snapshot
	case ports.ArtifactTraffic:
		name = c.Artifacts.Traffic
	case ports.ArtifactPresence:
		name = c.Artifacts.Presence
	case ports.ArtifactLedger:
		name = c.Artifacts.Ledger
	default:
		name = string(a) + ".json"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Artifacts.Dir, name)
}

// ArtifactPaths maps every artifact to its path.
func (c *Config) ArtifactPaths() map[ports.Artifact]string {
	out := make(map[ports.Artifact]string, len(ports.Artifacts))
	for _, a := range ports.Artifacts {
		out[a] = c.ArtifactPath(a)
	}
	return out
}
