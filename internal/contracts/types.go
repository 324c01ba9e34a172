// Package contracts defines the core types shared across the acquisition pipeline.
package contracts

import (
	"fmt"
	"strings"
	"time"
)

// Provenance identifies which upstream provider produced a record.
type Provenance string

// Provenance values carried on every normalized contract.
const (
	ProvenancePrimary   Provenance = "primary"
	ProvenanceSecondary Provenance = "secondary"
)

// PriorityTier is the relevance bucket assigned to a record.
type PriorityTier string

// Priority tiers, most relevant first.
const (
	TierExact   PriorityTier = "exact"
	TierRelated PriorityTier = "related"
	TierKeyword PriorityTier = "keyword"
	TierGeneral PriorityTier = "general"
)

// TierRank returns a sortable rank for a tier, lower is more relevant.
// Unknown tiers sort last.
func TierRank(t PriorityTier) int {
	switch t {
	case TierExact:
		return 0
	case TierRelated:
		return 1
	case TierKeyword:
		return 2
	case TierGeneral:
		return 3
	default:
		return 4
	}
}

// Location is the place of performance reported by a provider.
type Location struct {
	City   string `json:"city"`
	Region string `json:"region"`
}

// NormalizedContract is the canonical output unit of an acquisition run.
type NormalizedContract struct {
	ExternalID   string       `json:"external_id"`
	Title        string       `json:"title"`
	Agency       string       `json:"agency"`
	SubAgency    string       `json:"sub_agency,omitempty"`
	Location     Location     `json:"location"`
	CategoryCode string       `json:"category_code"`
	ValueDisplay string       `json:"value_display,omitempty"`
	PostedDate   time.Time    `json:"posted_date"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	SourceURL    string       `json:"source_url"`
	Provenance   Provenance   `json:"provenance"`
	PriorityTier PriorityTier `json:"priority_tier"`
}

// IDSource hands out sequence numbers for synthesized external IDs.
// One instance belongs to each run; it is never shared between runs.
type IDSource struct {
	next int
}

// Next returns the next sequence number, starting at 1.
func (s *IDSource) Next() int {
	s.next++
	return s.next
}

// Normalize enforces the record invariants in place: a non-empty external ID
// (synthesized from provenance, timestamp and a run-scoped counter when the
// provider supplied none), a non-empty title derived from the agency, and a
// default due date thirty days after posting when the provider omitted one.
func (c *NormalizedContract) Normalize(now time.Time, ids *IDSource) {
	if strings.TrimSpace(c.ExternalID) == "" {
		c.ExternalID = fmt.Sprintf("%s-%d-%d", c.Provenance, now.UnixNano(), ids.Next())
	}
	if strings.TrimSpace(c.Title) == "" {
		agency := strings.TrimSpace(c.Agency)
		if agency == "" {
			agency = "unknown agency"
		}
		c.Title = fmt.Sprintf("Untitled opportunity (%s)", agency)
	}
	if c.PostedDate.IsZero() {
		c.PostedDate = now
	}
	if c.DueDate == nil {
		due := c.PostedDate.AddDate(0, 0, 30)
		c.DueDate = &due
	}
}

// CompositeKey returns the fallback dedup key for records without a stable
// provider identifier.
func (c *NormalizedContract) CompositeKey() string {
	return strings.ToLower(strings.TrimSpace(c.Title)) + "\x1f" + strings.ToLower(strings.TrimSpace(c.Agency))
}
