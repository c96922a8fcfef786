package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type stubRegistry struct {
	ids []domain.Identity
	err error
}

func (r *stubRegistry) Identities(context.Context) ([]domain.Identity, error) {
	return r.ids, r.err
}

func registryOf(names ...string) *stubRegistry {
	r := &stubRegistry{}
	for _, n := range names {
		r.ids = append(r.ids, domain.Identity{Name: n})
	}
	return r
}

type stubCounter struct {
	result map[string]domain.RawTraffic
	err    error
	calls  int
}

func (c *stubCounter) QueryAndReset(context.Context) (map[string]domain.RawTraffic, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out := c.result
	c.result = nil
	return out, nil
}

type stubLog struct {
	lines []domain.Observation
	err   error
}

func (l *stubLog) Scan(_ context.Context, fn func(domain.Observation)) (ports.ScanStats, error) {
	for _, o := range l.lines {
		fn(o)
	}
	return ports.ScanStats{Lines: len(l.lines)}, l.err
}

// memStore keeps encoded documents in memory so every load goes through the
// same JSON codec as the file store.
type memStore struct {
	mu         sync.Mutex
	docs       map[ports.Artifact][]byte
	loadErr    map[ports.Artifact]error
	publishErr map[ports.Artifact]error
	lockErr    error
	held       bool
	published  []ports.Artifact
}

func newMemStore() *memStore {
	return &memStore{
		docs:       make(map[ports.Artifact][]byte),
		loadErr:    make(map[ports.Artifact]error),
		publishErr: make(map[ports.Artifact]error),
	}
}

func (s *memStore) Load(a ports.Artifact, dst any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadErr[a]; err != nil {
		return err
	}
	raw, ok := s.docs[a]
	if !ok {
		return fmt.Errorf("%s: %w", a, domain.ErrArtifactMissing)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %v: %w", a, err, domain.ErrCorruptArtifact)
	}
	return nil
}

func (s *memStore) Publish(a ports.Artifact, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.publishErr[a]; err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.docs[a] = raw
	s.published = append(s.published, a)
	return nil
}

func (s *memStore) LockSnapshot(context.Context) (func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockErr != nil {
		return nil, s.lockErr
	}
	if s.held {
		return nil, domain.ErrLockBusy
	}
	s.held = true
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.held = false
		return nil
	}, nil
}

func (s *memStore) seed(t *testing.T, a ports.Artifact, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("seed %s: %v", a, err)
	}
	s.docs[a] = raw
}

func (s *memStore) read(t *testing.T, a ports.Artifact, dst any) {
	t.Helper()
	if err := s.Load(a, dst); err != nil {
		t.Fatalf("read %s: %v", a, err)
	}
}

func (s *memStore) wasPublished(a ports.Artifact) bool {
	for _, p := range s.published {
		if p == a {
			return true
		}
	}
	return false
}

type mockObs struct {
	mu        sync.Mutex
	infos     []string
	errors    []string
	criticals []string
	counters  map[string]float64
	gauges    map[string]float64
}

func newMockObs() *mockObs {
	return &mockObs{counters: make(map[string]float64), gauges: make(map[string]float64)}
}

func (m *mockObs) LogInfo(msg string, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockObs) LogError(msg string, _ error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockObs) LogCritical(msg string, _ error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criticals = append(m.criticals, msg)
}

func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += v
}

func (m *mockObs) ObserveLatency(string, float64) {}

func (m *mockObs) SetGauge(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = v
}

func (m *mockObs) logged(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, group := range [][]string{m.infos, m.errors, m.criticals} {
		for _, got := range group {
			if got == msg {
				return true
			}
		}
	}
	return false
}
