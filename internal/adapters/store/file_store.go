package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStore keeps each artifact as a JSON document replaced atomically by
// rename, so concurrent readers see either the previous or the new version.
type FileStore struct {
	paths    map[ports.Artifact]string
	lockPath string
}

// NewFileStore maps every artifact to its path. The snapshot lock lives next
// to the snapshot as "<snapshot>.lock".
func NewFileStore(paths map[ports.Artifact]string) *FileStore {
	cp := make(map[ports.Artifact]string, len(paths))
	for a, p := range paths {
		cp[a] = p
	}
	s := &FileStore{paths: cp}
	if p, ok := cp[ports.ArtifactSnapshot]; ok {
		s.lockPath = p + ".lock"
	}
	return s
}

func (s *FileStore) path(a ports.Artifact) (string, error) {
	p, ok := s.paths[a]
	if !ok || p == "" {
		return "", fmt.Errorf("no path configured for artifact %s", a)
	}
	return p, nil
}

func (s *FileStore) Load(a ports.Artifact, dst any) error {
	p, err := s.path(a)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", p, domain.ErrArtifactMissing)
		}
		return fmt.Errorf("read %s: %w", p, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%s: empty document: %w", p, domain.ErrCorruptArtifact)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %v: %w", p, err, domain.ErrCorruptArtifact)
	}
	return nil
}

func (s *FileStore) Publish(a ports.Artifact, v any) error {
	p, err := s.path(a)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", a, err)
	}
	raw = append(raw, '\n')
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", p, err)
	}
	if err := atomic.WriteFile(p, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("replace %s: %w", p, err)
	}
	return nil
}

// LockSnapshot takes the advisory snapshot lock, retrying until ctx is done.
func (s *FileStore) LockSnapshot(ctx context.Context) (func() error, error) {
	if s.lockPath == "" {
		return nil, errors.New("no snapshot path configured")
	}
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(s.lockPath)
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if !ok {
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrLockBusy, s.lockPath, err)
	}
	return lock.Close, nil
}

var _ ports.ArtifactStore = (*FileStore)(nil)
