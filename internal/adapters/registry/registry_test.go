package registry

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

func TestFileRegistryParsesUserList(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".user_uuids")
	data := "alice:6f1c3a52-8a53-4c7e-9d8b-0f4d2c1b7e11\n" +
		"\n" +
		"garbage line\n" +
		" bob : 0b7e6a0f-4f0c-4d2a-9c1e-5a3f2b8d9c44 \n" +
		"carol:not-a-uuid\n" +
		"alice:11111111-1111-1111-1111-111111111111\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	obs := &recordingObs{}

	ids, err := NewFileRegistry(path, obs).Identities(context.Background())
	if err != nil {
		t.Fatalf("identities: %v", err)
	}

	want := []domain.Identity{
		{Name: "alice", Key: "6f1c3a52-8a53-4c7e-9d8b-0f4d2c1b7e11"},
		{Name: "bob", Key: "0b7e6a0f-4f0c-4d2a-9c1e-5a3f2b8d9c44"},
		{Name: "carol"},
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("unexpected identities (-want +got):\n%s", diff)
	}
	if len(obs.errors) != 1 {
		t.Fatalf("expected the bad key to be logged once, got %d", len(obs.errors))
	}
}

func TestFileRegistryMissingFileIsEmpty(t *testing.T) {
	ids, err := NewFileRegistry(filepath.Join(t.TempDir(), "absent"), nil).Identities(context.Background())
	if err != nil {
		t.Fatalf("expected no error for a missing registry, got %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no identities, got %v", ids)
	}
}

func TestXrayConfigRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
  "inbounds": [
    {"protocol": "dokodemo-door", "tag": "api"},
    {"protocol": "vless", "settings": {"clients": [
      {"id": "6f1c3a52-8a53-4c7e-9d8b-0f4d2c1b7e11", "flow": "xtls-rprx-vision", "email": "alice"},
      {"id": "0b7e6a0f-4f0c-4d2a-9c1e-5a3f2b8d9c44", "email": "bob"},
      {"id": "ffffffff-0000-0000-0000-000000000000"}
    ]}}
  ]
}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ids, err := NewXrayConfigRegistry(path).Identities(context.Background())
	if err != nil {
		t.Fatalf("identities: %v", err)
	}
	if got := domain.Names(ids); !cmp.Equal(got, []string{"alice", "bob"}) {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestXrayConfigRegistryRejectsBrokenJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"inbounds": [`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := NewXrayConfigRegistry(path).Identities(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPostgresRegistryIdentities(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	expectedQuery := regexp.QuoteMeta(`SELECT name, key FROM "relay"."identities" ORDER BY position, name`)
	mock.ExpectQuery(expectedQuery).
		WillReturnRows(sqlmock.NewRows([]string{"name", "key"}).
			AddRow("alice", "6f1c3a52-8a53-4c7e-9d8b-0f4d2c1b7e11").
			AddRow("bob", nil).
			AddRow("", "ignored"))

	ids, err := NewPostgresRegistry(db, "relay.identities").Identities(context.Background())
	if err != nil {
		t.Fatalf("identities: %v", err)
	}

	want := []domain.Identity{
		{Name: "alice", Key: "6f1c3a52-8a53-4c7e-9d8b-0f4d2c1b7e11"},
		{Name: "bob"},
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("unexpected identities (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRegistryQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT name, key FROM").WillReturnError(context.DeadlineExceeded)

	if _, err := NewPostgresRegistry(db, "identities").Identities(context.Background()); err == nil {
		t.Fatalf("expected query error to surface")
	}
}

type recordingObs struct {
	errors []error
}

func (r *recordingObs) LogInfo(string, ...ports.Field)                 {}
func (r *recordingObs) LogError(_ string, err error, _ ...ports.Field) { r.errors = append(r.errors, err) }
func (r *recordingObs) LogCritical(string, error, ...ports.Field)      {}
func (r *recordingObs) IncCounter(string, float64)                     {}
func (r *recordingObs) ObserveLatency(string, float64)                 {}
func (r *recordingObs) SetGauge(string, float64)                       {}
