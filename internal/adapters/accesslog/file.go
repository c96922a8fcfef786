package accesslog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

const (
	DefaultMaxLineBytes = 64 * 1024
	ctxCheckEvery       = 4096
)

// FileLog reads the relay access log from the start on every scan. The relay
// rotates it externally, so a shorter or vanished file is simply a shorter log.
type FileLog struct {
	path    string
	loc     *time.Location
	maxLine int
}

func NewFileLog(path string, loc *time.Location, maxLineBytes int) *FileLog {
	if loc == nil {
		loc = time.Local
	}
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	return &FileLog{path: path, loc: loc, maxLine: maxLineBytes}
}

func (l *FileLog) Scan(ctx context.Context, fn func(domain.Observation)) (ports.ScanStats, error) {
	var stats ports.ScanStats

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("open access log %s: %w", l.path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, l.maxLine)
	overlong := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return stats, nil
			}
			return stats, fmt.Errorf("read access log %s: %w", l.path, err)
		}

		// Fragments of a line longer than the buffer are dropped as one skipped line.
		if overlong || isPrefix {
			if !overlong {
				stats.Lines++
				stats.Skipped++
			}
			overlong = isPrefix
			continue
		}

		stats.Lines++
		if stats.Lines%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		if len(chunk) == 0 {
			continue
		}
		obs, ok := ParseLine(string(chunk), l.loc)
		if !ok {
			stats.Skipped++
			continue
		}
		fn(obs)
	}
}

var _ ports.LogSource = (*FileLog)(nil)
