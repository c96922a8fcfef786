package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
	"github.com/doc-johnson/xray-reality-vpn/internal/ports"
)

// PostgresRegistry reads identities from a table maintained by the user
// management service. It never writes.
type PostgresRegistry struct {
	db    *sql.DB
	query string
}

// NewPostgresRegistry expects table to have name, key and position columns.
// The table may be schema qualified.
func NewPostgresRegistry(db *sql.DB, table string) *PostgresRegistry {
	return &PostgresRegistry{
		db:    db,
		query: "SELECT name, key FROM " + quoteTable(table) + " ORDER BY position, name",
	}
}

func (r *PostgresRegistry) Identities(ctx context.Context) ([]domain.Identity, error) {
	rows, err := r.db.QueryContext(ctx, r.query)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []domain.Identity
	for rows.Next() {
		var (
			name string
			key  sql.NullString
		)
		if err := rows.Scan(&name, &key); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if name == "" {
			continue
		}
		out = append(out, domain.Identity{Name: name, Key: key.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

var _ ports.Registry = (*PostgresRegistry)(nil)
