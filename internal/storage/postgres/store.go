// Package postgres provides the Postgres-backed contract store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fedleads/harvester/internal/contracts"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for contract rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes normalized contracts into Postgres. Duplicate external IDs
// across runs are suppressed by the ON CONFLICT clause.
type Store struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "contracts"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "contracts"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveContracts inserts the records, skipping external IDs already stored by
// earlier runs. Returns the number of newly inserted rows.
func (s *Store) SaveContracts(ctx context.Context, runID string, records []contracts.NormalizedContract) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("contract store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	external_id,
	run_id,
	title,
	agency,
	sub_agency,
	city,
	region,
	category_code,
	value_display,
	posted_date,
	due_date,
	source_url,
	provenance,
	priority_tier
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (external_id) DO NOTHING`, s.table)

	inserted := 0
	for _, rec := range records {
		if rec.ExternalID == "" {
			return inserted, fmt.Errorf("record external id is required")
		}
		tag, err := s.pool.Exec(ctx, query,
			rec.ExternalID,
			runID,
			rec.Title,
			rec.Agency,
			rec.SubAgency,
			rec.Location.City,
			rec.Location.Region,
			rec.CategoryCode,
			rec.ValueDisplay,
			rec.PostedDate,
			rec.DueDate,
			rec.SourceURL,
			string(rec.Provenance),
			string(rec.PriorityTier),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert contract %s: %w", rec.ExternalID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
