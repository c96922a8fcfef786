package monitor

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/doc-johnson/xray-reality-vpn/internal/adapters/observability"
	"github.com/doc-johnson/xray-reality-vpn/internal/adapters/store"
	"github.com/doc-johnson/xray-reality-vpn/internal/app/pipeline"
	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
)

// ResetTotals zeroes one identity's stored traffic totals without building a
// full runtime. It takes the same snapshot lock as a pass.
func ResetTotals(ctx context.Context, cfg *Config, name string) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	obs := observability.NewPromObs(prometheus.NewRegistry(), observability.NewLogger(os.Stderr, cfg.Logging.Level))
	return pipeline.ResetTotals(ctx, store.NewFileStore(cfg.ArtifactPaths()), obs, name, cfg.Policy.LockTimeout)
}

// Windows are the chart spans summarised by Summarize.
var Windows = []time.Duration{time.Hour, 6 * time.Hour, 24 * time.Hour}

// UserSummary is one identity's published state plus windowed traffic sums.
type UserSummary struct {
	Name     string
	Stats    UserStats
	Windowed []Traffic
}

// Summary is a read-only view over the published documents.
type Summary struct {
	Updated time.Time
	Users   []UserSummary
}

// Summarize reads the published snapshot and traffic history and sums each
// identity's traffic over Windows, ending at now.
func Summarize(st ArtifactStore, now time.Time) (*Summary, error) {
	snap := domain.NewSnapshot()
	if err := st.Load(ArtifactSnapshot, snap); err != nil && !errors.Is(err, domain.ErrArtifactMissing) {
		return nil, err
	}
	traffic := domain.NewRing[domain.TrafficSample](0)
	if err := st.Load(ArtifactTraffic, traffic); err != nil && !errors.Is(err, domain.ErrArtifactMissing) {
		return nil, err
	}

	names := make([]string, 0, len(snap.Users))
	for name := range snap.Users {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &Summary{Updated: snap.Updated.Time}
	for _, name := range names {
		us := UserSummary{Name: name, Stats: snap.Users[name]}
		for _, w := range Windows {
			us.Windowed = append(us.Windowed, domain.SumTraffic(traffic.Since(now.Add(-w)), name))
		}
		out.Users = append(out.Users, us)
	}
	return out, nil
}

// SummarizeConfig is Summarize over the file store described by cfg.
func SummarizeConfig(cfg *Config, now time.Time) (*Summary, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return Summarize(store.NewFileStore(cfg.ArtifactPaths()), now)
}
