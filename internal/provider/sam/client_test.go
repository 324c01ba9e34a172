package sam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fedleads/harvester/internal/contracts"
	"github.com/fedleads/harvester/internal/httpclient"
	"github.com/fedleads/harvester/internal/pacing"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

func newTestClient(t *testing.T, srvURL string, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = srvURL
	hc := httpclient.New(httpclient.Config{
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Second,
		Timeout:    5 * time.Second,
	}, contracts.NopSleeper{}, nil)
	pacer := pacing.New(pacing.Config{MinDelay: time.Millisecond, MaxDelay: time.Millisecond}, contracts.NopSleeper{}, nil)
	return New(hc, cfg, pacer, nil, fakeClock{now: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}, nil)
}

func opportunityJSON(id, title, naics string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"noticeId": %q,
		"title": %q,
		"fullParentPathName": "GENERAL SERVICES ADMINISTRATION.PUBLIC BUILDINGS SERVICE",
		"naicsCode": %q,
		"postedDate": "2026-07-28",
		"responseDeadLine": "2026-08-20",
		"uiLink": "https://sam.gov/opp/%s/view",
		"placeOfPerformance": {"city": {"name": "Richmond"}, "state": {"code": "VA"}}
	}`, id, title, naics, id))
}

func envelope(total int, opps ...json.RawMessage) []byte {
	body, _ := json.Marshal(map[string]any{
		"totalRecords":      total,
		"opportunitiesData": opps,
	})
	return body
}

func TestFetchCollectsAcrossPairs(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		id := r.URL.Query().Get("state") + "-" + r.URL.Query().Get("ncode")
		_, _ = w.Write(envelope(1, opportunityJSON(id, "Custodial services", r.URL.Query().Get("ncode"))))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Config{APIKey: "k", PageSize: 100, PageCap: 2})
	tally := &contracts.FailureTally{}
	records, err := client.Fetch(context.Background(), FetchParams{
		RunID:         "run-1",
		Regions:       []string{"VA", "MD"},
		CategoryCodes: []string{"561720"},
		LookbackDays:  7,
	}, tally, &contracts.IDSource{})

	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "VA-561720", records[0].ExternalID)
	require.Equal(t, "MD-561720", records[1].ExternalID)
	require.Equal(t, contracts.ProvenancePrimary, records[0].Provenance)
	require.Equal(t, "GENERAL SERVICES ADMINISTRATION", records[0].Agency)
	require.Equal(t, "PUBLIC BUILDINGS SERVICE", records[0].SubAgency)
	require.Equal(t, "VA", records[0].Location.Region)
	require.Equal(t, 0, tally.Consecutive())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, calls)
}

func TestFetchPaginatesUntilShortPage(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	offsets := []string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		offsets = append(offsets, r.URL.Query().Get("offset"))
		n := len(offsets)
		mu.Unlock()
		if n == 1 {
			// full page: page size records -> client should request page 2
			_, _ = w.Write(envelope(3,
				opportunityJSON("a", "one", "561720"),
				opportunityJSON("b", "two", "561720"),
			))
			return
		}
		_, _ = w.Write(envelope(3, opportunityJSON("c", "three", "561720")))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Config{APIKey: "k", PageSize: 2, PageCap: 5})
	records, err := client.Fetch(context.Background(), FetchParams{
		Regions:       []string{"VA"},
		CategoryCodes: []string{"561720"},
	}, &contracts.FailureTally{}, &contracts.IDSource{})

	require.NoError(t, err)
	require.Len(t, records, 3)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"0", "2"}, offsets)
}

func TestFetchStopsAtPageCap(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		// always a full page with a huge reported total
		_, _ = w.Write(envelope(10000,
			opportunityJSON("a", "one", "561720"),
			opportunityJSON("b", "two", "561720"),
		))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Config{APIKey: "k", PageSize: 2, PageCap: 2})
	records, err := client.Fetch(context.Background(), FetchParams{
		Regions:       []string{"VA"},
		CategoryCodes: []string{"561720"},
	}, &contracts.FailureTally{}, &contracts.IDSource{})

	require.NoError(t, err)
	require.Len(t, records, 4)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, calls)
}

func TestFetchDropsMalformedRecords(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"totalRecords": 2,
			"opportunitiesData": []json.RawMessage{
				json.RawMessage(`{"noticeId": 42}`), // wrong type, dropped
				opportunityJSON("good", "Cleaning", "561720"),
			},
		})
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Config{APIKey: "k", PageSize: 100, PageCap: 1})
	records, err := client.Fetch(context.Background(), FetchParams{
		Regions:       []string{"VA"},
		CategoryCodes: []string{"561720"},
	}, &contracts.FailureTally{}, &contracts.IDSource{})

	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "good", records[0].ExternalID)
}

func TestFetchAbortsOnCredentialError(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"API_KEY_INVALID"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Config{APIKey: "bad", PageSize: 100, PageCap: 2})
	_, err := client.Fetch(context.Background(), FetchParams{
		Regions:       []string{"VA", "MD"},
		CategoryCodes: []string{"561720", "561740"},
	}, &contracts.FailureTally{}, &contracts.IDSource{})

	require.True(t, contracts.IsCredentialError(err))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestFetchCountsPairFailuresAndContinues(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Config{APIKey: "k", PageSize: 100, PageCap: 1})
	tally := &contracts.FailureTally{}
	records, err := client.Fetch(context.Background(), FetchParams{
		Regions:       []string{"VA"},
		CategoryCodes: []string{"561720", "561740", "561210"},
	}, tally, &contracts.IDSource{})

	require.NoError(t, err)
	require.Empty(t, records)
	require.Equal(t, 3, tally.Consecutive())
}

func TestMapOpportunityAliasesAndSyntheticFields(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`{
		"id": "alias-id",
		"title": "  Grounds keeping  ",
		"department": "DEPT OF DEFENSE",
		"subTier": "DEFENSE LOGISTICS AGENCY",
		"classificationCode": "561730",
		"award": {"amount": "$1,200,000"}
	}`)
	rec, err := mapOpportunity(raw, "VA")
	require.NoError(t, err)
	require.Equal(t, "alias-id", rec.ExternalID)
	require.Equal(t, "Grounds keeping", rec.Title)
	require.Equal(t, "DEPT OF DEFENSE", rec.Agency)
	require.Equal(t, "DEFENSE LOGISTICS AGENCY", rec.SubAgency)
	require.Equal(t, "561730", rec.CategoryCode)
	require.Equal(t, "$1,200,000", rec.ValueDisplay)
	require.Equal(t, "VA", rec.Location.Region)
}

func TestMapOpportunityRejectsEmptyRecord(t *testing.T) {
	t.Parallel()

	_, err := mapOpportunity(json.RawMessage(`{}`), "VA")
	require.Error(t, err)
}
