package pipeline

import (
	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
)

// appendSamples records this run in both rings and returns the rolling peak of
// every identity, the new sample included.
func appendSamples(traffic *domain.TrafficSeries, presence *domain.PresenceSeries, capacity int, now domain.Timestamp, deltas map[string]domain.Traffic, active map[string]int) map[string]int {
	traffic.SetCapacity(capacity)
	presence.SetCapacity(capacity)

	traffic.Push(domain.TrafficSample{TS: now, Users: deltas})
	presence.Push(domain.PresenceSample{TS: now, Users: active})

	peaks := make(map[string]int, len(active))
	for name := range active {
		peaks[name] = domain.RollingPeak(presence, name)
	}
	return peaks
}
