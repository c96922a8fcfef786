package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "monitoring")
	return NewFileStore(map[ports.Artifact]string{
		ports.ArtifactSnapshot: filepath.Join(dir, "stats.json"),
		ports.ArtifactTraffic:  filepath.Join(dir, "traffic_history.json"),
		ports.ArtifactPresence: filepath.Join(dir, "presence_history.json"),
		ports.ArtifactLedger:   filepath.Join(dir, "ips.json"),
	}), dir
}

func TestPublishThenLoad(t *testing.T) {
	s, dir := newTestStore(t)
	now := domain.At(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	snap := domain.NewSnapshot()
	snap.Updated = now
	snap.Users["bob"] = domain.UserStats{Totals: domain.Totals{Up: 1500, Down: 2000, LastSeen: now}, IPsNow: 1, IPsMax24h: 3}
	if err := s.Publish(ports.ArtifactSnapshot, snap); err != nil {
		t.Fatalf("publish: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "stats.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("published document is not JSON: %v", err)
	}
	users := doc["users"].(map[string]any)
	bob := users["bob"].(map[string]any)
	for _, key := range []string{"up", "dn", "last_seen", "ips_now", "ips_max_24h"} {
		if _, ok := bob[key]; !ok {
			t.Fatalf("expected key %q in %v", key, bob)
		}
	}

	got := domain.NewSnapshot()
	if err := s.Load(ports.ArtifactSnapshot, got); err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	s, dir := newTestStore(t)

	var ledger domain.AddressLedger
	if err := s.Load(ports.ArtifactLedger, &ledger); !errors.Is(err, domain.ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing, got %v", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, body := range []string{"", "  \n", `{"users": {"alice": `} {
		if err := os.WriteFile(filepath.Join(dir, "ips.json"), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := s.Load(ports.ArtifactLedger, &ledger); !errors.Is(err, domain.ErrCorruptArtifact) {
			t.Fatalf("expected ErrCorruptArtifact for %q, got %v", body, err)
		}
	}
}

func TestFailedPublishKeepsPreviousBytes(t *testing.T) {
	s, dir := newTestStore(t)

	if err := s.Publish(ports.ArtifactTraffic, domain.NewRing[domain.TrafficSample](10)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	path := filepath.Join(dir, "traffic_history.json")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if err := s.Publish(ports.ArtifactTraffic, map[string]any{"bad": make(chan int)}); err == nil {
		t.Fatalf("expected publish of an unencodable value to fail")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("document changed after failed publish:\n%s\n---\n%s", before, after)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestReaderNeverSeesPartialDocument(t *testing.T) {
	s, dir := newTestStore(t)
	path := filepath.Join(dir, "ips.json")

	write := func(i int) error {
		l := domain.NewAddressLedger()
		for j := 0; j < 200; j++ {
			l.Merge(domain.Observation{
				Identity: fmt.Sprintf("user%d", j%7),
				Address:  fmt.Sprintf("10.%d.%d.%d", i%250, j/250, j%250),
				Seen:     time.Unix(int64(1_700_000_000+i), 0),
			})
		}
		return s.Publish(ports.ArtifactLedger, l)
	}
	if err := write(0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if err := write(i); err != nil {
				t.Errorf("publish %d: %v", i, err)
				return
			}
		}
	}()

	for i := 0; i < 300; i++ {
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		var l domain.AddressLedger
		if err := json.Unmarshal(raw, &l); err != nil {
			close(stop)
			wg.Wait()
			t.Fatalf("reader saw a partial document on iteration %d: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestLockSnapshotExcludes(t *testing.T) {
	s, _ := newTestStore(t)

	release, err := s.LockSnapshot(context.Background())
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	other := NewFileStore(s.paths)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := other.LockSnapshot(ctx); !errors.Is(err, domain.ErrLockBusy) {
		t.Fatalf("expected ErrLockBusy while held, got %v", err)
	}

	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	release2, err := other.LockSnapshot(context.Background())
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	_ = release2()
}
