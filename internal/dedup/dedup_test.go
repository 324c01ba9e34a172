package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fedleads/harvester/internal/contracts"
)

func TestAcceptIsIdempotentPerID(t *testing.T) {
	t.Parallel()

	d := New()
	rec := contracts.NormalizedContract{ExternalID: "SAM-1", Title: "Custodial", Agency: "GSA"}

	require.True(t, d.Accept(rec))
	require.False(t, d.Accept(rec))
}

func TestAcceptFallsBackToCompositeKey(t *testing.T) {
	t.Parallel()

	d := New()
	a := contracts.NormalizedContract{Title: "Janitorial Services", Agency: "VA"}
	b := contracts.NormalizedContract{Title: "janitorial services", Agency: "va"}

	require.True(t, d.Accept(a))
	require.False(t, d.Accept(b))
}

func TestAcceptDropsCrossProviderRepeatWithoutID(t *testing.T) {
	t.Parallel()

	d := New()
	withID := contracts.NormalizedContract{ExternalID: "SAM-9", Title: "Floor cleaning", Agency: "GSA"}
	noID := contracts.NormalizedContract{Title: "Floor cleaning", Agency: "GSA"}

	require.True(t, d.Accept(withID))
	require.False(t, d.Accept(noID))
}

func TestDistinctIDsSameTitleAreKept(t *testing.T) {
	t.Parallel()

	// Providers reuse titles across notices; distinct IDs win over the
	// composite key.
	d := New()
	first := contracts.NormalizedContract{ExternalID: "SAM-1", Title: "Cleaning", Agency: "GSA"}
	second := contracts.NormalizedContract{ExternalID: "SAM-2", Title: "Cleaning", Agency: "GSA"}

	require.True(t, d.Accept(first))
	require.True(t, d.Accept(second))
}

func TestFilterCountsDrops(t *testing.T) {
	t.Parallel()

	d := New()
	in := []contracts.NormalizedContract{
		{ExternalID: "a", Title: "one", Agency: "x"},
		{ExternalID: "a", Title: "one", Agency: "x"},
		{ExternalID: "b", Title: "two", Agency: "x"},
	}
	kept, dropped := d.Filter(in)
	require.Len(t, kept, 2)
	require.Equal(t, 1, dropped)
	require.Equal(t, "a", kept[0].ExternalID)
	require.Equal(t, "b", kept[1].ExternalID)
}
