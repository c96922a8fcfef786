package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/doc-johnson/xray-reality-vpn/pkg/monitor"
)

func main() {
	cfg, err := monitor.LoadConfig("../../data/monitor.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := monitor.NewRuntime(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("monitor exited: %v", err)
	}
}
