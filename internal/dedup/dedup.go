// Package dedup drops repeat records within a single acquisition run.
// Cross-run suppression is the storage layer's job via its insert-if-absent
// semantics.
package dedup

import "github.com/fedleads/harvester/internal/contracts"

// Deduplicator tracks seen external IDs and title+agency composite keys for
// one run. It is not safe for concurrent use; each run owns its own instance.
type Deduplicator struct {
	seenIDs  map[string]struct{}
	seenKeys map[string]struct{}
}

// New returns an empty Deduplicator.
func New() *Deduplicator {
	return &Deduplicator{
		seenIDs:  make(map[string]struct{}),
		seenKeys: make(map[string]struct{}),
	}
}

// Accept returns true the first time a record's external ID (or, when the ID
// is empty, its composite key) is seen, and false on every later sighting.
func (d *Deduplicator) Accept(rec contracts.NormalizedContract) bool {
	if rec.ExternalID != "" {
		if _, ok := d.seenIDs[rec.ExternalID]; ok {
			return false
		}
		d.seenIDs[rec.ExternalID] = struct{}{}
		// Also claim the composite key so the same notice arriving from the
		// other provider without an ID is still dropped.
		d.seenKeys[rec.CompositeKey()] = struct{}{}
		return true
	}
	key := rec.CompositeKey()
	if _, ok := d.seenKeys[key]; ok {
		return false
	}
	d.seenKeys[key] = struct{}{}
	return true
}

// Filter returns the records Accept keeps, preserving order, plus the count
// of dropped duplicates.
func (d *Deduplicator) Filter(records []contracts.NormalizedContract) ([]contracts.NormalizedContract, int) {
	kept := make([]contracts.NormalizedContract, 0, len(records))
	dropped := 0
	for _, rec := range records {
		if d.Accept(rec) {
			kept = append(kept, rec)
		} else {
			dropped++
		}
	}
	return kept, dropped
}
