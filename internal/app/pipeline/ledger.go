package pipeline

import (
	"time"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
)

// mergeLedger folds the latest observations into the stored ledger and prunes
// entries older than retention. It returns the number of pruned addresses.
func mergeLedger(l *domain.AddressLedger, latest []domain.Observation, now time.Time, retention time.Duration) int {
	if l.Users == nil {
		l.Users = make(map[string]map[string]domain.Timestamp)
	}
	for _, o := range latest {
		l.Merge(o)
	}
	return l.Prune(now.Add(-retention))
}
