package ports

import (
	"context"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
)

// Registry lists the identities known for this run, in registry order.
type Registry interface {
	Identities(ctx context.Context) ([]domain.Identity, error)
}
