// Package sqlite provides a file-backed contract store for local runs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/fedleads/harvester/internal/contracts"
)

const schema = `
CREATE TABLE IF NOT EXISTS contracts (
	external_id   TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	title         TEXT NOT NULL,
	agency        TEXT,
	sub_agency    TEXT,
	city          TEXT,
	region        TEXT,
	category_code TEXT,
	value_display TEXT,
	posted_date   TIMESTAMP,
	due_date      TIMESTAMP,
	source_url    TEXT,
	provenance    TEXT NOT NULL,
	priority_tier TEXT NOT NULL,
	created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// Store writes normalized contracts into a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (and if needed bootstraps) the database at path.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("storage.path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create contracts table: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveContracts inserts records, ignoring external IDs stored by earlier
// runs. Returns the number of newly inserted rows.
func (s *Store) SaveContracts(ctx context.Context, runID string, records []contracts.NormalizedContract) (int, error) {
	const query = `
INSERT OR IGNORE INTO contracts (
	external_id, run_id, title, agency, sub_agency, city, region,
	category_code, value_display, posted_date, due_date, source_url,
	provenance, priority_tier
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

	inserted := 0
	for _, rec := range records {
		if rec.ExternalID == "" {
			return inserted, fmt.Errorf("record external id is required")
		}
		var due *time.Time
		if rec.DueDate != nil {
			due = rec.DueDate
		}
		res, err := s.db.ExecContext(ctx, query,
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
			due,
			rec.SourceURL,
			string(rec.Provenance),
			string(rec.PriorityTier),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert contract %s: %w", rec.ExternalID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

// Count returns the number of stored contracts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count contracts: %w", err)
	}
	return n, nil
}

// Close shuts down the database handle.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}
