package ports

import "context"

// Artifact names one of the published documents.
type Artifact string

const (
	ArtifactSnapshot Artifact = "snapshot"
	ArtifactTraffic  Artifact = "traffic_history"
	ArtifactPresence Artifact = "presence_history"
	ArtifactLedger   Artifact = "address_ledger"
)

// Artifacts lists every published document in publish order.
var Artifacts = []Artifact{ArtifactLedger, ArtifactTraffic, ArtifactPresence, ArtifactSnapshot}

// ArtifactStore loads and atomically publishes documents. Load returns
// domain.ErrArtifactMissing or domain.ErrCorruptArtifact (wrapped) when there
// is no usable previous version.
type ArtifactStore interface {
	Load(a Artifact, dst any) error
	Publish(a Artifact, v any) error
	// LockSnapshot serialises read-modify-write cycles of the snapshot across
	// processes. The returned func releases the lock.
	LockSnapshot(ctx context.Context) (func() error, error)
}
