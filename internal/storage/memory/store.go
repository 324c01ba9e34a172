// Package memory implements an in-memory contract store for tests and runs
// that only need the CLI summary.
package memory

import (
	"context"
	"sync"

	"github.com/fedleads/harvester/internal/contracts"
)

// Store keeps contracts in a map keyed by external ID.
type Store struct {
	mu      sync.Mutex
	records map[string]contracts.NormalizedContract
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]contracts.NormalizedContract)}
}

// SaveContracts inserts records not seen before; existing external IDs are
// left untouched. Returns the number of newly inserted rows.
func (s *Store) SaveContracts(_ context.Context, _ string, records []contracts.NormalizedContract) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, rec := range records {
		if _, ok := s.records[rec.ExternalID]; ok {
			continue
		}
		s.records[rec.ExternalID] = rec
		inserted++
	}
	return inserted, nil
}

// All returns a copy of every stored contract.
func (s *Store) All() []contracts.NormalizedContract {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contracts.NormalizedContract, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

// Close is a no-op.
func (s *Store) Close() {}
