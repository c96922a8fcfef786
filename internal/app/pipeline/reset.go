package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// ResetTotals zeroes the traffic totals of name in the published snapshot
// under the snapshot lock. Presence figures are kept. A name not yet in the
// snapshot gets a zeroed entry.
func ResetTotals(ctx context.Context, store ports.ArtifactStore, obs ports.Observability, name string, lockTimeout time.Duration) error {
	if name == "" {
		return errors.New("reset: identity name is required")
	}
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	lctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	release, err := store.LockSnapshot(lctx)
	if err != nil {
		return fmt.Errorf("reset %s: %w", name, err)
	}
	defer func() {
		if err := release(); err != nil {
			obs.LogError("snapshot_unlock_failed", err)
		}
	}()

	snapshot := domain.NewSnapshot()
	if err := loadBaseline(store, obs, ports.ArtifactSnapshot, snapshot, func() { snapshot = domain.NewSnapshot() }); err != nil {
		return fmt.Errorf("reset %s: %w", name, err)
	}
	prev := snapshot.TotalsOf(name)
	snapshot.ResetTotals(name)

	if err := store.Publish(ports.ArtifactSnapshot, snapshot); err != nil {
		obs.LogError("artifact_write_failed", err, ports.Field{Key: "artifact", Value: string(ports.ArtifactSnapshot)})
		obs.IncCounter(ports.MetricArtifactWriteErrs, 1)
		return fmt.Errorf("reset %s: %w", name, err)
	}
	obs.LogInfo("totals_reset",
		ports.Field{Key: "identity", Value: name},
		ports.Field{Key: "previous_up", Value: prev.Up},
		ports.Field{Key: "previous_dn", Value: prev.Down})
	return nil
}
