// Package usaspending implements the fallback bulk-award client. One broad
// paginated POST, records classified into priority tiers on ingest with
// per-tier acceptance caps.
package usaspending

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/fedleads/harvester/internal/contracts"
	"github.com/fedleads/harvester/internal/httpclient"
	"github.com/fedleads/harvester/internal/relevance"
	"github.com/fedleads/harvester/internal/telemetry"
)

const providerName = "usaspending"

// Config describes the bulk award endpoint.
type Config struct {
	BaseURL  string
	PageSize int
}

// Client fetches awards from the fallback provider.
type Client struct {
	http       *httpclient.Client
	cfg        Config
	classifier *relevance.Classifier
	archive    contracts.BlobStore
	clock      contracts.Clock
	logger     *zap.Logger
}

// New builds a Client. The archive is optional.
func New(http *httpclient.Client, cfg Config, classifier *relevance.Classifier, archive contracts.BlobStore, clock contracts.Clock, logger *zap.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:       http,
		cfg:        cfg,
		classifier: classifier,
		archive:    archive,
		clock:      clock,
		logger:     logger,
	}
}

// Fetch issues one bulk query for the region and classifies each award on
// ingest. An EXACT match is inserted at the front of the result list; the
// RELATED and GENERAL tiers stop accepting once their caps are reached. Any
// terminal failure yields an empty list, which the caller treats as "no
// data", never as an error.
func (c *Client) Fetch(ctx context.Context, runID, region string, lookbackDays int, ids *contracts.IDSource) []contracts.NormalizedContract {
	body, err := c.fetchAwards(ctx, region, lookbackDays)
	if err != nil {
		c.logger.Warn("bulk award query failed",
			zap.String("region", region),
			zap.Error(err),
		)
		return nil
	}
	c.archiveBody(ctx, runID, region, body)

	var envelope searchResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.logger.Warn("decode bulk award response failed", zap.Error(err))
		return nil
	}

	var out []contracts.NormalizedContract
	relatedKept, generalKept := 0, 0
	for _, raw := range envelope.Results {
		rec, err := mapAward(raw, region)
		if err != nil {
			c.logger.Warn("dropping malformed award", zap.String("region", region), zap.Error(err))
			continue
		}
		c.classifier.ClassifyRecord(&rec)
		rec.Normalize(c.clock.Now(), ids)

		switch rec.PriorityTier {
		case contracts.TierExact:
			// guaranteed to precede all other secondary output
			out = append([]contracts.NormalizedContract{rec}, out...)
		case contracts.TierRelated:
			if relatedKept >= c.classifier.RelatedCap() {
				continue
			}
			relatedKept++
			out = append(out, rec)
		case contracts.TierGeneral:
			if generalKept >= c.classifier.GeneralCap() {
				continue
			}
			generalKept++
			out = append(out, rec)
		default:
			out = append(out, rec)
		}
		telemetry.ObserveIngested(providerName, string(rec.PriorityTier), 1)
	}

	c.logger.Info("bulk awards ingested",
		zap.String("region", region),
		zap.Int("accepted", len(out)),
		zap.Int("related_kept", relatedKept),
		zap.Int("general_kept", generalKept),
	)
	return out
}

func (c *Client) fetchAwards(ctx context.Context, region string, lookbackDays int) ([]byte, error) {
	if lookbackDays <= 0 {
		lookbackDays = 90
	}
	now := c.clock.Now()

	payload := map[string]any{
		"filters": map[string]any{
			"time_period": []map[string]string{{
				"start_date": now.AddDate(0, 0, -lookbackDays).Format("2006-01-02"),
				"end_date":   now.Format("2006-01-02"),
			}},
			"award_type_codes": []string{"A", "B", "C", "D"},
			"place_of_performance_locations": []map[string]string{{
				"country": "USA",
				"state":   region,
			}},
		},
		"fields": awardFields,
		"limit":  c.cfg.PageSize,
		"page":   1,
		"order":  "desc",
		"sort":   "Award Amount",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal award query: %w", err)
	}

	resp, err := c.http.Do(ctx, httpclient.Request{
		Provider: providerName,
		Method:   http.MethodPost,
		URL:      c.cfg.BaseURL,
		Header:   http.Header{"Content-Type": []string{"application/json"}},
		Body:     body,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) archiveBody(ctx context.Context, runID, region string, body []byte) {
	if c.archive == nil {
		return
	}
	path := fmt.Sprintf("usaspending/%s/%s.json", runID, region)
	if _, err := c.archive.PutObject(ctx, path, "application/json", body); err != nil {
		c.logger.Warn("archive awards failed", zap.String("path", path), zap.Error(err))
	}
}
