package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserversDoNotPanicBeforeInit(t *testing.T) {
	// Each observer lazily initializes the collectors, so calling them in any
	// order must be safe.
	require.NotPanics(t, func() {
		ObserveRequest("sam", 200)
		ObserveRetry("sam", "429")
		ObserveIngested("usaspending", "exact", 3)
		ObserveIngested("usaspending", "general", 0)
		ObserveDedupDrop()
		ObserveFallback()
		ObserveRunDuration(2 * time.Second)
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	require.NotNil(t, Handler())
}
