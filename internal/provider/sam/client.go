// Package sam implements the primary opportunity-search client. It sweeps
// the Cartesian product of regions and category codes with paced, paginated
// queries and degrades to partial results on anything short of a credential
// rejection.
package sam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/fedleads/harvester/internal/contracts"
	"github.com/fedleads/harvester/internal/httpclient"
	"github.com/fedleads/harvester/internal/pacing"
	"github.com/fedleads/harvester/internal/pipeline"
)

const providerName = "sam"

// Config describes the provider endpoint and pagination limits.
type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int
	PageCap  int
}

// FetchParams describe one sweep of the provider. It aliases the pipeline's
// parameter type so Client satisfies pipeline.PrimarySource.
type FetchParams = pipeline.PrimaryParams

// Client fetches opportunities from the primary provider.
type Client struct {
	http    *httpclient.Client
	cfg     Config
	pacer   *pacing.Pacer
	archive contracts.BlobStore
	clock   contracts.Clock
	logger  *zap.Logger
}

// New builds a Client. The archive is optional; when set, every raw page
// body is stored for later auditing.
func New(http *httpclient.Client, cfg Config, pacer *pacing.Pacer, archive contracts.BlobStore, clock contracts.Clock, logger *zap.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.PageCap <= 0 {
		cfg.PageCap = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    http,
		cfg:     cfg,
		pacer:   pacer,
		archive: archive,
		clock:   clock,
		logger:  logger,
	}
}

// Fetch sweeps regions x category codes. Failed pairs are logged, counted
// into the tally and skipped; a successful pair resets the tally. The only
// error returned is a credential rejection, which aborts the whole sweep.
func (c *Client) Fetch(ctx context.Context, params FetchParams, tally *contracts.FailureTally, ids *contracts.IDSource) ([]contracts.NormalizedContract, error) {
	var collected []contracts.NormalizedContract
	first := true

	for _, region := range params.Regions {
		for _, code := range params.CategoryCodes {
			if ctx.Err() != nil {
				return collected, nil
			}
			if !first {
				c.pacer.Pause(ctx, len(params.Regions))
			}
			first = false

			records, err := c.fetchPair(ctx, params, region, code, len(params.Regions))
			if err != nil {
				if contracts.IsCredentialError(err) {
					c.logger.Error("credentials rejected, aborting primary sweep",
						zap.String("region", region),
						zap.String("naics", code),
					)
					return collected, err
				}
				failures := tally.Fail()
				c.logger.Warn("pair fetch failed, skipping",
					zap.String("region", region),
					zap.String("naics", code),
					zap.Int("consecutive_failures", failures),
					zap.Error(err),
				)
				continue
			}

			tally.Reset()
			for i := range records {
				records[i].Normalize(c.clock.Now(), ids)
			}
			collected = append(collected, records...)
			c.logger.Info("pair fetched",
				zap.String("region", region),
				zap.String("naics", code),
				zap.Int("records", len(records)),
			)
		}
	}
	return collected, nil
}

// fetchPair runs one paginated query sequence for a region/category pair.
func (c *Client) fetchPair(ctx context.Context, params FetchParams, region, code string, regionCount int) ([]contracts.NormalizedContract, error) {
	var out []contracts.NormalizedContract

	for page := 0; page < c.cfg.PageCap; page++ {
		if page > 0 {
			c.pacer.Pause(ctx, regionCount)
		}

		body, err := c.fetchPage(ctx, params, region, code, page)
		if err != nil {
			return nil, err
		}
		c.archivePage(ctx, params.RunID, region, code, page, body)

		var envelope searchResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}

		for _, raw := range envelope.Opportunities {
			rec, err := mapOpportunity(raw, region)
			if err != nil {
				c.logger.Warn("dropping malformed opportunity",
					zap.String("region", region),
					zap.String("naics", code),
					zap.Int("page", page),
					zap.Error(err),
				)
				continue
			}
			out = append(out, rec)
		}

		// Stop once the provider runs dry: a short page, or the reported
		// total already covered.
		if len(envelope.Opportunities) < c.cfg.PageSize {
			break
		}
		if envelope.TotalRecords > 0 && (page+1)*c.cfg.PageSize >= envelope.TotalRecords {
			break
		}
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, params FetchParams, region, code string, page int) ([]byte, error) {
	now := c.clock.Now()
	lookback := params.LookbackDays
	if lookback <= 0 {
		lookback = 7
	}

	query := url.Values{}
	query.Set("api_key", c.cfg.APIKey)
	query.Set("ncode", code)
	query.Set("state", region)
	query.Set("postedFrom", now.AddDate(0, 0, -lookback).Format("01/02/2006"))
	query.Set("postedTo", now.Format("01/02/2006"))
	query.Set("limit", strconv.Itoa(c.cfg.PageSize))
	query.Set("offset", strconv.Itoa(page*c.cfg.PageSize))

	resp, err := c.http.Do(ctx, httpclient.Request{
		Provider: providerName,
		Method:   http.MethodGet,
		URL:      c.cfg.BaseURL,
		Query:    query,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) archivePage(ctx context.Context, runID, region, code string, page int, body []byte) {
	if c.archive == nil {
		return
	}
	path := fmt.Sprintf("sam/%s/%s-%s-p%d.json", runID, region, code, page)
	if _, err := c.archive.PutObject(ctx, path, "application/json", body); err != nil {
		c.logger.Warn("archive page failed", zap.String("path", path), zap.Error(err))
	}
}
