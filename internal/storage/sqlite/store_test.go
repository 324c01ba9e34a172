package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fedleads/harvester/internal/contracts"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func testRecord(id string) contracts.NormalizedContract {
	return contracts.NormalizedContract{
		ExternalID:   id,
		Title:        "Custodial services",
		Agency:       "GSA",
		Location:     contracts.Location{City: "Richmond", Region: "VA"},
		CategoryCode: "561720",
		PostedDate:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Provenance:   contracts.ProvenancePrimary,
		PriorityTier: contracts.TierExact,
	}
}

func TestSaveContractsInsertsAndIgnoresDuplicates(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	inserted, err := store.SaveContracts(ctx, "run-1", []contracts.NormalizedContract{
		testRecord("SAM-1"),
		testRecord("SAM-2"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	// a later run re-delivers SAM-2
	inserted, err = store.SaveContracts(ctx, "run-2", []contracts.NormalizedContract{
		testRecord("SAM-2"),
		testRecord("SAM-3"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestSaveContractsRejectsEmptyExternalID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.SaveContracts(context.Background(), "run-1", []contracts.NormalizedContract{{}})
	require.Error(t, err)
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "")
	require.Error(t, err)
}
