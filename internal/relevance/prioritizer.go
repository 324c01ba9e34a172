// Package relevance classifies normalized contracts into priority tiers and
// orders them so downstream consumers see the most relevant records first.
package relevance

import (
	"sort"
	"strings"

	"github.com/fedleads/harvester/internal/contracts"
)

// Config drives tier classification. Caps apply only to secondary-source
// ingest; primary results arrive pre-filtered by their query parameters.
type Config struct {
	PrimaryCode  string
	RelatedCodes []string
	SectorPrefix string
	Keywords     []string
	RelatedCap   int
	GeneralCap   int
}

// Classifier assigns priority tiers from a category code and free text.
type Classifier struct {
	cfg     Config
	related map[string]struct{}
}

// NewClassifier builds a Classifier from config.
func NewClassifier(cfg Config) *Classifier {
	related := make(map[string]struct{}, len(cfg.RelatedCodes))
	for _, code := range cfg.RelatedCodes {
		related[strings.TrimSpace(code)] = struct{}{}
	}
	return &Classifier{cfg: cfg, related: related}
}

// RelatedCap returns the per-run cap for prefix-matched RELATED records.
func (c *Classifier) RelatedCap() int { return c.cfg.RelatedCap }

// GeneralCap returns the per-run cap for GENERAL records.
func (c *Classifier) GeneralCap() int { return c.cfg.GeneralCap }

// Classify returns exactly one tier for the given category code and
// description text. Precedence: exact code, related code, keyword hit,
// sector-prefix code, then general.
func (c *Classifier) Classify(categoryCode, text string) contracts.PriorityTier {
	code := strings.TrimSpace(categoryCode)
	if code != "" && code == c.cfg.PrimaryCode {
		return contracts.TierExact
	}
	if _, ok := c.related[code]; ok && code != "" {
		return contracts.TierRelated
	}
	lower := strings.ToLower(text)
	for _, kw := range c.cfg.Keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return contracts.TierKeyword
		}
	}
	if c.cfg.SectorPrefix != "" && strings.HasPrefix(code, c.cfg.SectorPrefix) {
		return contracts.TierRelated
	}
	return contracts.TierGeneral
}

// ClassifyRecord assigns the record's tier in place using its category code
// and title.
func (c *Classifier) ClassifyRecord(rec *contracts.NormalizedContract) {
	rec.PriorityTier = c.Classify(rec.CategoryCode, rec.Title)
}

// Order sorts records by tier (EXACT > RELATED > KEYWORD > GENERAL),
// preserving discovery order within each tier.
func Order(records []contracts.NormalizedContract) []contracts.NormalizedContract {
	out := make([]contracts.NormalizedContract, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return contracts.TierRank(out[i].PriorityTier) < contracts.TierRank(out[j].PriorityTier)
	})
	return out
}
