package pipeline

import (
	"errors"
	"fmt"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// loadBaseline reads artifact a into dst. A missing document calls reset; a
// corrupt one is logged as data loss and also reset. Any other read failure is
// returned, and the caller must not overwrite that artifact.
func loadBaseline(store ports.ArtifactStore, obs ports.Observability, a ports.Artifact, dst any, reset func()) error {
	err := store.Load(a, dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrArtifactMissing):
		reset()
		return nil
	case errors.Is(err, domain.ErrCorruptArtifact):
		reset()
		obs.LogCritical("artifact_corrupt", err, ports.Field{Key: "artifact", Value: string(a)})
		obs.IncCounter(ports.MetricArtifactCorrupt, 1)
		return nil
	default:
		obs.LogError("artifact_load_failed", err, ports.Field{Key: "artifact", Value: string(a)})
		return fmt.Errorf("load %s: %w", a, err)
	}
}

// publishAll writes every document present in docs in publish order. A failed
// write only affects its own artifact.
func publishAll(store ports.ArtifactStore, obs ports.Observability, docs map[ports.Artifact]any) error {
	var errs []error
	for _, a := range ports.Artifacts {
		doc, ok := docs[a]
		if !ok {
			continue
		}
		if err := store.Publish(a, doc); err != nil {
			obs.LogError("artifact_write_failed", err, ports.Field{Key: "artifact", Value: string(a)})
			obs.IncCounter(ports.MetricArtifactWriteErrs, 1)
			errs = append(errs, fmt.Errorf("publish %s: %w", a, err))
		}
	}
	return errors.Join(errs...)
}
