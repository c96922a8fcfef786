package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPromObs(reg, NewLogger(&bytes.Buffer{}, "info"))

	obs.IncCounter(ports.MetricPasses, 1)
	if got := testutil.ToFloat64(obs.counters[ports.MetricPasses]); got != 1 {
		t.Fatalf("expected passes counter 1, got %f", got)
	}

	obs.IncCounter(ports.MetricUplinkBytes, 500)
	if got := testutil.ToFloat64(obs.counters[ports.MetricUplinkBytes]); got != 500 {
		t.Fatalf("expected uplink counter 500, got %f", got)
	}

	obs.SetGauge(ports.GaugeLedgerAddresses, 42)
	if got := testutil.ToFloat64(obs.gauges[ports.GaugeLedgerAddresses]); got != 42 {
		t.Fatalf("expected ledger gauge 42, got %f", got)
	}

	obs.ObserveLatency(ports.MetricPassDuration, 0.5)
	hCollector := obs.histos[ports.MetricPassDuration].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	// unknown names are ignored
	obs.IncCounter("nope", 1)
	obs.SetGauge("nope", 1)

	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Fatalf("expected registered metrics, got %d (err %v)", n, err)
	}
}

func TestPromObsLogsJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	obs := NewPromObs(prometheus.NewRegistry(), NewLogger(&buf, "info"))

	obs.LogError("counter_source_unavailable", errors.New("dial timeout"), ports.Field{Key: "identities", Value: 3})
	obs.LogCritical("artifact_corrupt", errors.New("bad json"), ports.Field{Key: "artifact", Value: "snapshot"})

	out := buf.String()
	for _, want := range []string{
		`"message":"counter_source_unavailable"`,
		`"error":"dial timeout"`,
		`"identities":3`,
		`"severity":"critical"`,
		`"artifact":"snapshot"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected log output to contain %s, got:\n%s", want, out)
		}
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	obs := NewPromObs(prometheus.NewRegistry(), NewLogger(&buf, "error"))

	obs.LogInfo("pass_complete")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at error level, got %s", buf.String())
	}
	obs.LogError("artifact_write_failed", errors.New("disk full"))
	if !strings.Contains(buf.String(), "artifact_write_failed") {
		t.Fatalf("expected error line, got %s", buf.String())
	}
}
