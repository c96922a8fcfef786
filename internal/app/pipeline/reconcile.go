package pipeline

import (
	"context"
	"fmt"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// reconcileCounters drains the counter source once and returns a clamped delta
// for every registry identity. On a source failure every delta is zero and the
// error is returned for reporting only.
func reconcileCounters(ctx context.Context, src ports.CounterSource, ids []domain.Identity, pol ports.Policy, obs ports.Observability) (map[string]domain.Traffic, error) {
	deltas := make(map[string]domain.Traffic, len(ids))
	for _, id := range ids {
		deltas[id.Name] = domain.Traffic{}
	}
	if src == nil {
		return deltas, nil
	}

	qctx, cancel := context.WithTimeout(ctx, pol.CounterTimeout)
	defer cancel()

	raw, err := src.QueryAndReset(qctx)
	if err != nil {
		obs.LogError("counter_source_unavailable", err)
		obs.IncCounter(ports.MetricCounterErrors, 1)
		return deltas, err
	}

	unknown := 0
	for name, r := range raw {
		if _, ok := deltas[name]; !ok {
			unknown++
			continue
		}
		t, anomalous := r.Clamp()
		if anomalous {
			obs.LogError("counter_negative_delta",
				fmt.Errorf("up=%d dn=%d", r.Up, r.Down),
				ports.Field{Key: "identity", Value: name})
			obs.IncCounter(ports.MetricCounterAnomalies, 1)
		}
		deltas[name] = t
	}
	if unknown > 0 {
		obs.LogInfo("counter_unknown_identity", ports.Field{Key: "count", Value: unknown})
	}
	return deltas, nil
}

// applyTotals builds the totals of this run from the stored baseline.
// Registry identities receive their delta. Stored identities the registry no
// longer lists are carried over unchanged.
func applyTotals(baseline *domain.Snapshot, ids []domain.Identity, deltas map[string]domain.Traffic, now domain.Timestamp) map[string]domain.Totals {
	out := make(map[string]domain.Totals, max(len(ids), len(baseline.Users)))
	for name, u := range baseline.Users {
		out[name] = u.Totals
	}
	for _, id := range ids {
		out[id.Name] = baseline.TotalsOf(id.Name).Apply(deltas[id.Name], now)
	}
	return out
}
