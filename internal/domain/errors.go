package domain

import "errors"

var (
	// ErrSourceUnavailable marks a counter query that failed or timed out.
	ErrSourceUnavailable = errors.New("counter source unavailable")
	// ErrArtifactMissing is returned when a published document does not exist yet.
	ErrArtifactMissing = errors.New("artifact missing")
	// ErrCorruptArtifact is returned when a published document cannot be decoded.
	ErrCorruptArtifact = errors.New("artifact corrupt")
	// ErrLockBusy is returned when the snapshot lock could not be acquired in time.
	ErrLockBusy = errors.New("snapshot lock busy")
	// ErrEmptyRegistry is returned when the registry lists no identities.
	ErrEmptyRegistry = errors.New("registry is empty")
	// ErrUnknownRegistry is returned for an unsupported registry kind.
	ErrUnknownRegistry = errors.New("unknown registry kind")
)
