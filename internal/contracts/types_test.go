package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSynthesizesExternalID(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	ids := &IDSource{}

	first := NormalizedContract{Provenance: ProvenancePrimary, Title: "Custodial services", Agency: "GSA"}
	second := NormalizedContract{Provenance: ProvenancePrimary, Title: "Window washing", Agency: "GSA"}
	first.Normalize(now, ids)
	second.Normalize(now, ids)

	require.NotEmpty(t, first.ExternalID)
	require.NotEmpty(t, second.ExternalID)
	require.NotEqual(t, first.ExternalID, second.ExternalID)
	require.Contains(t, first.ExternalID, string(ProvenancePrimary))
}

func TestNormalizeKeepsProviderID(t *testing.T) {
	t.Parallel()

	rec := NormalizedContract{ExternalID: "SAM-123", Title: "x", Agency: "y", Provenance: ProvenancePrimary}
	rec.Normalize(time.Now(), &IDSource{})
	require.Equal(t, "SAM-123", rec.ExternalID)
}

func TestNormalizeSyntheticTitleAndDueDate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := NormalizedContract{Agency: "Dept of Veterans Affairs", Provenance: ProvenanceSecondary, PostedDate: now}
	rec.Normalize(now, &IDSource{})

	require.Contains(t, rec.Title, "Dept of Veterans Affairs")
	require.NotNil(t, rec.DueDate)
	require.Equal(t, now.AddDate(0, 0, 30), *rec.DueDate)
}

func TestTierRankOrdering(t *testing.T) {
	t.Parallel()

	require.Less(t, TierRank(TierExact), TierRank(TierRelated))
	require.Less(t, TierRank(TierRelated), TierRank(TierKeyword))
	require.Less(t, TierRank(TierKeyword), TierRank(TierGeneral))
	require.Greater(t, TierRank(PriorityTier("bogus")), TierRank(TierGeneral))
}

func TestCompositeKeyNormalizesCase(t *testing.T) {
	t.Parallel()

	a := NormalizedContract{Title: " Janitorial Services ", Agency: "GSA"}
	b := NormalizedContract{Title: "janitorial services", Agency: "gsa"}
	require.Equal(t, a.CompositeKey(), b.CompositeKey())
}
