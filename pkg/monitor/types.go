package monitor

import (
	"github.com/doc-johnson/xray-reality-vpn/internal/app/pipeline"
	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// Ports that callers can implement to replace a default adapter.
type (
	Registry      = ports.Registry
	CounterSource = ports.CounterSource
	LogSource     = ports.LogSource
	ArtifactStore = ports.ArtifactStore
	Observability = ports.Observability
	Field         = ports.Field
	ScanStats     = ports.ScanStats
	Artifact      = ports.Artifact
)

// Documents and values exchanged through the ports.
type (
	Identity       = domain.Identity
	Observation    = domain.Observation
	Traffic        = domain.Traffic
	RawTraffic     = domain.RawTraffic
	Totals         = domain.Totals
	Snapshot       = domain.Snapshot
	UserStats      = domain.UserStats
	AddressLedger  = domain.AddressLedger
	TrafficSeries  = domain.TrafficSeries
	PresenceSeries = domain.PresenceSeries
	Report         = pipeline.Report
)

const (
	ArtifactSnapshot = ports.ArtifactSnapshot
	ArtifactTraffic  = ports.ArtifactTraffic
	ArtifactPresence = ports.ArtifactPresence
	ArtifactLedger   = ports.ArtifactLedger
)

var (
	ErrSourceUnavailable = domain.ErrSourceUnavailable
	ErrLockBusy          = domain.ErrLockBusy
	ErrUnknownRegistry   = domain.ErrUnknownRegistry
	ErrEmptyRegistry     = domain.ErrEmptyRegistry
)
