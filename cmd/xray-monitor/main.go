package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/doc-johnson/xray-reality-vpn/pkg/monitor"
)

const defaultConfigPath = "/data/config/monitor.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "loop":
		err = loopCommand(os.Args[2:])
	case "reset":
		err = resetCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("xray-monitor %s: %v", cmd, err)
	}
}

// loadConfig falls back to the stock layout when the default config file is
// absent. An explicitly named file must exist.
func loadConfig(fs *flag.FlagSet, path string) (*monitor.Config, error) {
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	cfg, err := monitor.LoadConfig(path)
	if err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		return monitor.DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "Path to monitor configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(fs, *cfgPath)
	if err != nil {
		return err
	}

	rt, err := monitor.NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := rt.RunOnce(ctx)
	if rep != nil {
		fmt.Printf("pass at %s: identities=%d active=%d ledger=%d skipped_lines=%d\n",
			rep.At.Format(time.RFC3339), len(rep.Identities), sumActive(rep.ActiveNow), rep.LedgerEntries, rep.LogSkipped)
		if rep.SnapshotSkipped {
			fmt.Println("snapshot lock busy or unreadable: counters left for the next pass")
		}
	}
	return err
}

func loopCommand(args []string) error {
	fs := flag.NewFlagSet("loop", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "Path to monitor configuration file")
	interval := fs.Duration("interval", 0, "Override schedule.interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(fs, *cfgPath)
	if err != nil {
		return err
	}
	if *interval > 0 {
		cfg.Schedule.Interval = *interval
	}

	rt, err := monitor.NewRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}

func resetCommand(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "Path to monitor configuration file")
	user := fs.String("user", "", "Identity whose traffic totals are zeroed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("-user is required")
	}
	cfg, err := loadConfig(fs, *cfgPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := monitor.ResetTotals(ctx, cfg, *user); err != nil {
		return err
	}
	fmt.Printf("traffic totals of %s reset\n", *user)
	return nil
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := monitor.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "Path to monitor configuration file")
	asJSON := fs.Bool("json", false, "Print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(fs, *cfgPath)
	if err != nil {
		return err
	}

	sum, err := monitor.SummarizeConfig(cfg, time.Now())
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}

	if sum.Updated.IsZero() {
		fmt.Println("no pass published yet")
	} else {
		fmt.Printf("updated %s\n", sum.Updated.Format(time.RFC3339))
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tUP\tDOWN\tLAST SEEN\tIPS NOW\tIPS MAX 24H\t1H\t6H\t24H")
	for _, u := range sum.Users {
		lastSeen := "-"
		if !u.Stats.LastSeen.IsZero() {
			lastSeen = u.Stats.LastSeen.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d", u.Name,
			humanBytes(u.Stats.Up), humanBytes(u.Stats.Down), lastSeen, u.Stats.IPsNow, u.Stats.IPsMax24h)
		for _, w := range u.Windowed {
			fmt.Fprintf(tw, "\t%s", humanBytes(w.Total()))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func sumActive(active map[string]int) int {
	n := 0
	for _, v := range active {
		n += v
	}
	return n
}

func humanBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func printUsage() {
	fmt.Printf(`xray-monitor

Usage:
  xray-monitor <command> [flags]

Commands:
  run        Run one reconciliation pass and publish the artifacts
  loop       Run a pass every schedule.interval and serve /metrics and /healthz
  reset      Zero the stored traffic totals of one identity
  validate   Load and validate a config file without running a pass
  stats      Print the published per-user state and 1h/6h/24h traffic sums

Examples:
  xray-monitor run -config /data/config/monitor.yaml
  xray-monitor loop -interval 1m
  xray-monitor reset -user alice
  xray-monitor stats -json
`)
}
