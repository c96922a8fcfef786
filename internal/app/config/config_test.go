package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
registry:
  path: /srv/xray/.user_uuids
policy:
  now_window: 90s
artifacts:
  dir: /srv/monitoring
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Registry.Kind != "file" {
		t.Fatalf("expected default registry kind file, got %s", cfg.Registry.Kind)
	}
	if cfg.Policy.NowWindow != 90*time.Second {
		t.Fatalf("expected now window 90s, got %s", cfg.Policy.NowWindow)
	}
	if cfg.Policy.Retention != 720*time.Hour {
		t.Fatalf("expected retention 720h, got %s", cfg.Policy.Retention)
	}
	if cfg.Policy.HistoryCapacity != 1440 {
		t.Fatalf("expected history capacity 1440, got %d", cfg.Policy.HistoryCapacity)
	}
	if cfg.Policy.CounterTimeout != 5*time.Second {
		t.Fatalf("expected counter timeout 5s, got %s", cfg.Policy.CounterTimeout)
	}
	if cfg.Counter.Kind != "grpc" || cfg.Counter.Addr != "127.0.0.1:10085" {
		t.Fatalf("unexpected counter defaults %+v", cfg.Counter)
	}
	if cfg.Schedule.Interval != time.Minute {
		t.Fatalf("expected interval 1m, got %s", cfg.Schedule.Interval)
	}
	if got := cfg.ArtifactPath(ports.ArtifactSnapshot); got != "/srv/monitoring/stats.json" {
		t.Fatalf("unexpected snapshot path %s", got)
	}
	if got := cfg.ArtifactPath(ports.ArtifactLedger); got != "/srv/monitoring/ips.json" {
		t.Fatalf("unexpected ledger path %s", got)
	}
}

func TestValidateRejectsUnknownRegistry(t *testing.T) {
	cfg := &Config{Registry: RegistryConfig{Kind: "ldap"}}
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrUnknownRegistry) {
		t.Fatalf("expected ErrUnknownRegistry, got %v", err)
	}
}

func TestValidatePostgresNeedsConnString(t *testing.T) {
	cfg := &Config{Registry: RegistryConfig{Kind: "postgres"}}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing conn_string to fail validation")
	}
	cfg.Registry.ConnString = "postgres://monitor@localhost/relay?sslmode=disable"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateBadLocation(t *testing.T) {
	cfg := &Config{Log: LogConfig{Location: "Mars/Olympus"}}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown time zone to fail validation")
	}
}
