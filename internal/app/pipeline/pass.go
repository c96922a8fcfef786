package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// Deps are the ports one pass runs against.
type Deps struct {
	Registry ports.Registry
	Counter  ports.CounterSource
	Log      ports.LogSource
	Store    ports.ArtifactStore
	Obs      ports.Observability
	Now      func() time.Time
}

// Report describes what a pass did.
type Report struct {
	At         time.Time
	Identities []string
	Deltas     map[string]domain.Traffic
	Totals     map[string]domain.Totals
	ActiveNow  map[string]int
	Peaks      map[string]int

	LogLines      int
	LogSkipped    int
	LedgerEntries int
	Pruned        int

	// CounterErr is set when the counter source failed; deltas are then zero.
	CounterErr error
	// SnapshotSkipped is set when the snapshot lock or baseline was not
	// available. Counters were not queried and the snapshot was not rewritten.
	SnapshotSkipped bool
}

func withPolicyDefaults(pol ports.Policy) ports.Policy {
	if pol.NowWindow <= 0 {
		pol.NowWindow = 2 * time.Minute
	}
	if pol.Retention <= 0 {
		pol.Retention = 30 * 24 * time.Hour
	}
	if pol.HistoryCapacity <= 0 {
		pol.HistoryCapacity = domain.DefaultHistoryCapacity
	}
	if pol.CounterTimeout <= 0 {
		pol.CounterTimeout = 5 * time.Second
	}
	if pol.LockTimeout <= 0 {
		pol.LockTimeout = 10 * time.Second
	}
	return pol
}

// RunPass runs one reconciliation pass: read the registry, drain the counters
// and scan the log concurrently, merge, aggregate and publish. Source failures
// degrade the pass; only registry errors and failed writes are returned.
func RunPass(ctx context.Context, d Deps, pol ports.Policy) (*Report, error) {
	pol = withPolicyDefaults(pol)
	if d.Now == nil {
		d.Now = time.Now
	}
	start := time.Now()
	now := d.Now()
	stamp := domain.At(now)

	ids, err := d.Registry.Identities(ctx)
	if err != nil {
		d.Obs.LogError("registry_unavailable", err)
		return nil, fmt.Errorf("load registry: %w", err)
	}
	if len(ids) == 0 {
		// A vanished or truncated registry must not wipe stored totals.
		d.Obs.LogError("registry_empty", domain.ErrEmptyRegistry)
		return nil, fmt.Errorf("load registry: %w", domain.ErrEmptyRegistry)
	}
	d.Obs.SetGauge(ports.GaugeIdentities, float64(len(ids)))

	rep := &Report{At: stamp.Time, Identities: domain.Names(ids)}
	docs := make(map[ports.Artifact]any, len(ports.Artifacts))
	var loadErrs []error

	// The snapshot is read-modify-write across processes: hold the lock from
	// the baseline read until it is published.
	snapshot, release, err := lockSnapshotBaseline(ctx, d, pol, rep)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	if release != nil {
		defer func() {
			if err := release(); err != nil {
				d.Obs.LogError("snapshot_unlock_failed", err)
			}
		}()
	}

	ledger := domain.NewAddressLedger()
	if err := loadBaseline(d.Store, d.Obs, ports.ArtifactLedger, ledger, func() { ledger = domain.NewAddressLedger() }); err != nil {
		loadErrs = append(loadErrs, err)
		ledger = nil
	}
	traffic := domain.NewRing[domain.TrafficSample](pol.HistoryCapacity)
	if err := loadBaseline(d.Store, d.Obs, ports.ArtifactTraffic, traffic, func() { traffic = domain.NewRing[domain.TrafficSample](pol.HistoryCapacity) }); err != nil {
		loadErrs = append(loadErrs, err)
		traffic = nil
	}
	presence := domain.NewRing[domain.PresenceSample](pol.HistoryCapacity)
	if err := loadBaseline(d.Store, d.Obs, ports.ArtifactPresence, presence, func() { presence = domain.NewRing[domain.PresenceSample](pol.HistoryCapacity) }); err != nil {
		loadErrs = append(loadErrs, err)
		presence = nil
	}

	var (
		deltas map[string]domain.Traffic
		scan   windowScan
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if snapshot == nil {
			deltas = zeroDeltas(ids)
			return nil
		}
		deltas, rep.CounterErr = reconcileCounters(gctx, d.Counter, ids, pol, d.Obs)
		return nil
	})
	g.Go(func() error {
		var err error
		scan, err = scanWindow(gctx, d.Log, ids, now, pol.NowWindow)
		if err != nil && gctx.Err() == nil {
			d.Obs.LogError("access_log_unreadable", err)
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep.Deltas = deltas
	rep.ActiveNow = scan.ActiveNow
	rep.LogLines, rep.LogSkipped = scan.Stats.Lines, scan.Stats.Skipped
	d.Obs.IncCounter(ports.MetricLogLinesSkipped, float64(scan.Stats.Skipped))

	if ledger != nil {
		rep.Pruned = mergeLedger(ledger, scan.Latest, now, pol.Retention)
		rep.LedgerEntries = ledger.Len()
		d.Obs.SetGauge(ports.GaugeLedgerAddresses, float64(rep.LedgerEntries))
		docs[ports.ArtifactLedger] = ledger
	}

	if traffic == nil {
		traffic = domain.NewRing[domain.TrafficSample](pol.HistoryCapacity)
	} else {
		docs[ports.ArtifactTraffic] = traffic
	}
	presenceLost := presence == nil
	if presenceLost {
		presence = domain.NewRing[domain.PresenceSample](pol.HistoryCapacity)
	} else {
		docs[ports.ArtifactPresence] = presence
	}
	rep.Peaks = appendSamples(traffic, presence, pol.HistoryCapacity, stamp, deltas, scan.ActiveNow)

	active := 0
	for _, n := range scan.ActiveNow {
		active += n
	}
	d.Obs.SetGauge(ports.GaugeActiveAddresses, float64(active))

	if snapshot != nil {
		rep.Totals = applyTotals(snapshot, ids, deltas, stamp)
		next := domain.NewSnapshot()
		next.Updated = stamp
		for name, totals := range rep.Totals {
			peak := rep.Peaks[name]
			if presenceLost {
				// The 24h window could not be read, keep the stored peak.
				peak = max(peak, snapshot.Users[name].IPsMax24h)
			}
			next.Users[name] = domain.UserStats{
				Totals:    totals,
				IPsNow:    scan.ActiveNow[name],
				IPsMax24h: peak,
			}
		}
		docs[ports.ArtifactSnapshot] = next

		var up, dn uint64
		for _, t := range deltas {
			up += t.Up
			dn += t.Down
		}
		d.Obs.IncCounter(ports.MetricUplinkBytes, float64(up))
		d.Obs.IncCounter(ports.MetricDownlinkBytes, float64(dn))
	}

	pubErr := publishAll(d.Store, d.Obs, docs)

	d.Obs.IncCounter(ports.MetricPasses, 1)
	d.Obs.ObserveLatency(ports.MetricPassDuration, time.Since(start).Seconds())
	d.Obs.LogInfo("pass_complete",
		ports.Field{Key: "identities", Value: len(ids)},
		ports.Field{Key: "active_addresses", Value: active},
		ports.Field{Key: "ledger_entries", Value: rep.LedgerEntries},
		ports.Field{Key: "snapshot_skipped", Value: rep.SnapshotSkipped},
		ports.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})

	return rep, errors.Join(append(loadErrs, pubErr)...)
}

// lockSnapshotBaseline takes the snapshot lock and reads the stored totals.
// A nil snapshot means the snapshot must be left alone this pass.
func lockSnapshotBaseline(ctx context.Context, d Deps, pol ports.Policy, rep *Report) (*domain.Snapshot, func() error, error) {
	lctx, cancel := context.WithTimeout(ctx, pol.LockTimeout)
	defer cancel()

	release, err := d.Store.LockSnapshot(lctx)
	if err != nil {
		d.Obs.LogError("snapshot_lock_busy", err)
		rep.SnapshotSkipped = true
		return nil, nil, nil
	}

	snapshot := domain.NewSnapshot()
	if err := loadBaseline(d.Store, d.Obs, ports.ArtifactSnapshot, snapshot, func() { snapshot = domain.NewSnapshot() }); err != nil {
		rep.SnapshotSkipped = true
		return nil, release, err
	}
	if snapshot.Users == nil {
		snapshot.Users = make(map[string]domain.UserStats)
	}
	return snapshot, release, nil
}

func zeroDeltas(ids []domain.Identity) map[string]domain.Traffic {
	out := make(map[string]domain.Traffic, len(ids))
	for _, id := range ids {
		out[id.Name] = domain.Traffic{}
	}
	return out
}
