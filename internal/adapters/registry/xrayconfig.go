package registry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// XrayConfigRegistry takes identities from the relay's own config.json: the
// email of every client on every inbound, in file order. Clients of disabled
// users are absent from the relay config, so this registry only sees enabled
// users.
type XrayConfigRegistry struct {
	path string
}

func NewXrayConfigRegistry(path string) *XrayConfigRegistry {
	return &XrayConfigRegistry{path: path}
}

type xrayConfig struct {
	Inbounds []struct {
		Protocol string `json:"protocol"`
		Settings struct {
			Clients []struct {
				ID    string `json:"id"`
				Email string `json:"email"`
			} `json:"clients"`
		} `json:"settings"`
	} `json:"inbounds"`
}

func (r *XrayConfigRegistry) Identities(ctx context.Context) ([]domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read relay config %s: %w", r.path, err)
	}

	var cfg xrayConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode relay config %s: %w", r.path, err)
	}

	var (
		out  []domain.Identity
		seen = make(map[string]struct{})
	)
	for _, in := range cfg.Inbounds {
		for _, c := range in.Settings.Clients {
			if c.Email == "" {
				continue
			}
			if _, dup := seen[c.Email]; dup {
				continue
			}
			seen[c.Email] = struct{}{}
			out = append(out, domain.Identity{Name: c.Email, Key: c.ID})
		}
	}
	return out, nil
}

var _ ports.Registry = (*XrayConfigRegistry)(nil)
