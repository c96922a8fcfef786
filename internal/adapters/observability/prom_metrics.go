package observability

import (
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// PromObs logs through zerolog and records metrics in a Prometheus registry.
type PromObs struct {
	log      zerolog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewLogger builds the JSON line logger used by PromObs. Unknown levels fall
// back to info.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "xray-monitor").Logger()
}

// NewPromObs registers the monitor metrics with reg (the default registerer
// when nil).
func NewPromObs(reg prometheus.Registerer, logger zerolog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	counters := map[string]prometheus.Counter{
		ports.MetricPasses:            counter(ports.MetricPasses, "Reconciliation passes completed."),
		ports.MetricCounterErrors:     counter(ports.MetricCounterErrors, "Counter queries that failed or timed out."),
		ports.MetricCounterAnomalies:  counter(ports.MetricCounterAnomalies, "Negative counter deltas clamped to zero."),
		ports.MetricLogLinesSkipped:   counter(ports.MetricLogLinesSkipped, "Access log lines skipped as malformed."),
		ports.MetricArtifactWriteErrs: counter(ports.MetricArtifactWriteErrs, "Artifact publishes that failed."),
		ports.MetricArtifactCorrupt:   counter(ports.MetricArtifactCorrupt, "Published artifacts that failed to decode and were reset."),
		ports.MetricUplinkBytes:       counter(ports.MetricUplinkBytes, "Uplink bytes attributed to identities."),
		ports.MetricDownlinkBytes:     counter(ports.MetricDownlinkBytes, "Downlink bytes attributed to identities."),
	}
	gauges := map[string]prometheus.Gauge{
		ports.GaugeIdentities:      gauge(ports.GaugeIdentities, "Identities in the registry at the last pass."),
		ports.GaugeLedgerAddresses: gauge(ports.GaugeLedgerAddresses, "Addresses retained in the address ledger."),
		ports.GaugeActiveAddresses: gauge(ports.GaugeActiveAddresses, "Distinct addresses active in the now window, all identities."),
	}
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricPassDuration,
		Help:    "Wall time of one reconciliation pass.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	collectors := []prometheus.Collector{latency}
	for _, c := range counters {
		collectors = append(collectors, c)
	}
	for _, g := range gauges {
		collectors = append(collectors, g)
	}
	reg.MustRegister(collectors...)

	return &PromObs{
		log:      logger,
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			ports.MetricPassDuration: latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	withFields(p.log.Info(), fields).Msg(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	withFields(p.log.Error().Err(err), fields).Msg(msg)
}

// LogCritical is used for conditions that lose data, such as a corrupt
// artifact being replaced by an empty baseline.
func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	withFields(p.log.WithLevel(zerolog.FatalLevel).Str("severity", "critical").Err(err), fields).Msg(msg)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func withFields(ev *zerolog.Event, fields []ports.Field) *zerolog.Event {
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	return ev
}

var _ ports.Observability = (*PromObs)(nil)
