package ports

import (
	"context"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
)

// ScanStats summarises one pass over the access log.
type ScanStats struct {
	Lines   int
	Skipped int
}

// LogSource walks the connection log once, handing every well-formed
// observation to fn. A missing log is an empty log.
type LogSource interface {
	Scan(ctx context.Context, fn func(domain.Observation)) (ScanStats, error)
}
