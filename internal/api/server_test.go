package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fedleads/harvester/internal/pipeline"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(0, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLatestRunBeforeAnyRun(t *testing.T) {
	t.Parallel()

	srv := NewServer(0, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/latest", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestRunReturnsReport(t *testing.T) {
	t.Parallel()

	srv := NewServer(0, zap.NewNop())
	srv.SetReport(&pipeline.Report{
		RunID:        "run-42",
		StartedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC),
		FellBack:     true,
		PrimaryCount: 3,
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got pipeline.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "run-42", got.RunID)
	require.True(t, got.FellBack)
	require.Equal(t, 3, got.PrimaryCount)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := NewServer(0, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}
