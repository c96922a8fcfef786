package counter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/goccy/go-json"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// CLISource shells out to "xray api statsquery" for hosts where the API port
// is only reachable through the relay binary's own client.
type CLISource struct {
	binary  string
	addr    string
	pattern string
	run     Runner
}

func NewCLISource(binary, addr, pattern string) *CLISource {
	if binary == "" {
		binary = "xray"
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &CLISource{binary: binary, addr: addr, pattern: pattern, run: runCommand}
}

// WithRunner replaces the command runner.
func (s *CLISource) WithRunner(r Runner) *CLISource {
	s.run = r
	return s
}

func (s *CLISource) args() []string {
	return []string{"api", "statsquery", "--server=" + s.addr, "-pattern", s.pattern, "-reset"}
}

func (s *CLISource) QueryAndReset(ctx context.Context) (map[string]domain.RawTraffic, error) {
	out, err := s.run(ctx, s.binary, s.args()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s statsquery: %v", domain.ErrSourceUnavailable, s.binary, err)
	}
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return map[string]domain.RawTraffic{}, nil
	}

	var resp struct {
		Stat []Stat `json:"stat"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode statsquery output: %v", domain.ErrSourceUnavailable, err)
	}
	return Fold(resp.Stat), nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

var _ ports.CounterSource = (*CLISource)(nil)
