package ports

import (
	"context"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
)

// CounterSource returns the traffic accumulated per identity since the previous
// call and resets the source's accumulators as a side effect. A delta handed
// out once cannot be read again.
type CounterSource interface {
	QueryAndReset(ctx context.Context) (map[string]domain.RawTraffic, error)
}
