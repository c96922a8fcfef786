package registry

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// FileRegistry reads the API's ".user_uuids" list: one "name:uuid" per line.
type FileRegistry struct {
	path string
	obs  ports.Observability
}

func NewFileRegistry(path string, obs ports.Observability) *FileRegistry {
	return &FileRegistry{path: path, obs: obs}
}

func (r *FileRegistry) Identities(ctx context.Context) ([]domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry %s: %w", r.path, err)
	}

	var (
		out  []domain.Identity
		seen = make(map[string]struct{})
		sc   = bufio.NewScanner(bytes.NewReader(data))
		line int
	)
	for sc.Scan() {
		line++
		name, key, ok := strings.Cut(sc.Text(), ":")
		name, key = strings.TrimSpace(name), strings.TrimSpace(key)
		if !ok || name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if _, err := uuid.Parse(key); err != nil {
			if r.obs != nil {
				r.obs.LogError("registry_bad_key", err,
					ports.Field{Key: "identity", Value: name},
					ports.Field{Key: "line", Value: line})
			}
			key = ""
		}
		out = append(out, domain.Identity{Name: name, Key: key})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan registry %s: %w", r.path, err)
	}
	return out, nil
}

var _ ports.Registry = (*FileRegistry)(nil)
