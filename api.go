// Package xrayreality re-exports the monitor runtime so callers can import
// the module root directly.
package xrayreality

import (
	"context"
	"time"

	base "github.com/doc-johnson/xray-reality-vpn/pkg/monitor"
)

// Re-exported errors for convenience.
var (
	ErrSourceUnavailable = base.ErrSourceUnavailable
	ErrLockBusy          = base.ErrLockBusy
	ErrUnknownRegistry   = base.ErrUnknownRegistry
	ErrEmptyRegistry     = base.ErrEmptyRegistry
)

type (
	Config        = base.Config
	Policy        = base.Policy
	Runtime       = base.Runtime
	RuntimeOption = base.RuntimeOption
	Report        = base.Report
	Summary       = base.Summary
	Registry      = base.Registry
	CounterSource = base.CounterSource
	LogSource     = base.LogSource
	ArtifactStore = base.ArtifactStore
	Observability = base.Observability
	Identity      = base.Identity
	RawTraffic    = base.RawTraffic
	Traffic       = base.Traffic
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Runtime helpers.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithRegistry(r Registry) RuntimeOption             { return base.WithRegistry(r) }
func WithCounterSource(c CounterSource) RuntimeOption   { return base.WithCounterSource(c) }
func WithLogSource(l LogSource) RuntimeOption           { return base.WithLogSource(l) }
func WithStore(s ArtifactStore) RuntimeOption           { return base.WithStore(s) }
func WithObservability(obs Observability) RuntimeOption { return base.WithObservability(obs) }
func WithClock(now func() time.Time) RuntimeOption      { return base.WithClock(now) }

// Admin helpers.
func ResetTotals(ctx context.Context, cfg *Config, name string) error {
	return base.ResetTotals(ctx, cfg, name)
}

func Summarize(cfg *Config, now time.Time) (*Summary, error) {
	return base.SummarizeConfig(cfg, now)
}
