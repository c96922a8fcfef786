package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/doc-johnson/xray-reality-vpn/pkg/monitor"
)

// counterFunc adapts a plain function to monitor.CounterSource.
type counterFunc func(context.Context) (map[string]monitor.RawTraffic, error)

func (f counterFunc) QueryAndReset(ctx context.Context) (map[string]monitor.RawTraffic, error) {
	return f(ctx)
}

type staticRegistry []monitor.Identity

func (r staticRegistry) Identities(context.Context) ([]monitor.Identity, error) { return r, nil }

func main() {
	dir, err := os.MkdirTemp("", "xray-monitor-demo")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := monitor.DefaultConfig()
	cfg.Artifacts.Dir = dir
	cfg.Log.Path = dir + "/access.log"

	simulated := counterFunc(func(context.Context) (map[string]monitor.RawTraffic, error) {
		return map[string]monitor.RawTraffic{
			"alice": {Up: rand.Int63n(1 << 20), Down: rand.Int63n(8 << 20)},
			"bob":   {Up: rand.Int63n(1 << 16), Down: rand.Int63n(1 << 22)},
		}, nil
	})

	rt, err := monitor.NewRuntime(cfg,
		monitor.WithRegistry(staticRegistry{{Name: "alice"}, {Name: "bob"}}),
		monitor.WithCounterSource(simulated),
	)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	for i := 0; i < 3; i++ {
		rep, err := rt.RunOnce(context.Background())
		if err != nil {
			log.Fatalf("pass %d: %v", i, err)
		}
		for _, name := range rep.Identities {
			t := rep.Totals[name]
			fmt.Printf("%s pass=%d %s up=%d dn=%d\n", rep.At.Format(time.RFC3339), i, name, t.Up, t.Down)
		}
	}
}
