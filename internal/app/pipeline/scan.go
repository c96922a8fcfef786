package pipeline

import (
	"context"
	"time"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// windowScan is what one pass over the access log yields.
type windowScan struct {
	// ActiveNow counts distinct addresses per identity seen in the now window.
	ActiveNow map[string]int
	// Latest holds the newest observation per (identity, address).
	Latest []domain.Observation
	Stats  ports.ScanStats
}

// scanWindow reads the whole log once. An address is active when it was seen
// after now-window; timestamps ahead of now count as active.
func scanWindow(ctx context.Context, src ports.LogSource, ids []domain.Identity, now time.Time, window time.Duration) (windowScan, error) {
	known := domain.NameSet(ids)
	res := windowScan{ActiveNow: make(map[string]int, len(ids))}
	for _, id := range ids {
		res.ActiveNow[id.Name] = 0
	}
	if src == nil {
		return res, nil
	}

	cutoff := now.Add(-window)
	active := make(map[string]map[string]struct{})
	latest := make(map[string]map[string]time.Time)

	stats, err := src.Scan(ctx, func(o domain.Observation) {
		if _, ok := known[o.Identity]; !ok {
			return
		}
		addrs, ok := latest[o.Identity]
		if !ok {
			addrs = make(map[string]time.Time)
			latest[o.Identity] = addrs
		}
		if prev, ok := addrs[o.Address]; !ok || o.Seen.After(prev) {
			addrs[o.Address] = o.Seen
		}
		if o.Seen.After(cutoff) {
			set, ok := active[o.Identity]
			if !ok {
				set = make(map[string]struct{})
				active[o.Identity] = set
			}
			set[o.Address] = struct{}{}
		}
	})
	res.Stats = stats

	for name, set := range active {
		res.ActiveNow[name] = len(set)
	}
	for name, addrs := range latest {
		for addr, seen := range addrs {
			res.Latest = append(res.Latest, domain.Observation{Identity: name, Address: addr, Seen: seen})
		}
	}
	return res, err
}
