// Package httpclient implements the shared rate-limited HTTP client used by
// both provider clients. It retries 429/5xx responses and transport errors
// with jittered exponential backoff, honors Retry-After, and short-circuits
// on credential rejections.
package httpclient

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fedleads/harvester/internal/contracts"
	"github.com/fedleads/harvester/internal/telemetry"
)

// Request describes one provider call. The body is held as bytes so the
// request can be rebuilt for every retry attempt.
type Request struct {
	Provider string
	Method   string
	URL      string
	Query    url.Values
	Header   http.Header
	Body     []byte
}

// Response is a fully-read provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Config controls retry and throttle behavior.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
	HostRPS    float64
	HostBurst  int
}

// Client issues provider requests with retry, backoff and per-host throttling.
type Client struct {
	http    *http.Client
	cfg     Config
	sleeper contracts.Sleeper
	logger  *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a Client with sane defaults for any zero config values.
func New(cfg Config, sleeper contracts.Sleeper, logger *zap.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if sleeper == nil {
		sleeper = contracts.TimerSleeper{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
		sleeper:  sleeper,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Do executes the request, retrying per the backoff schedule. It returns a
// typed error from the contracts package when the budget is exhausted, and a
// CredentialError immediately when the provider rejects the API key.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	attempts := c.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.waitHost(ctx, req.URL); err != nil {
			return Response{}, fmt.Errorf("host throttle: %w", err)
		}

		resp, err := c.attempt(ctx, req)
		if err != nil {
			timeout := isTimeoutErr(err)
			if ctx.Err() != nil || attempt == attempts-1 {
				return Response{}, &contracts.NetworkError{Provider: req.Provider, Timeout: timeout, Err: err}
			}
			reason := "network"
			if timeout {
				reason = "timeout"
			}
			telemetry.ObserveRetry(req.Provider, reason)
			c.logger.Warn("transport error, retrying",
				zap.String("provider", req.Provider),
				zap.Int("attempt", attempt),
				zap.Bool("timeout", timeout),
				zap.Error(err),
			)
			c.sleeper.Sleep(ctx, c.backoff(attempt))
			continue
		}

		telemetry.ObserveRequest(req.Provider, resp.StatusCode)
		switch {
		case resp.StatusCode < http.StatusMultipleChoices:
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			if attempt == attempts-1 {
				return Response{}, &contracts.RateLimitError{
					Provider:   req.Provider,
					StatusCode: resp.StatusCode,
					Attempts:   attempts,
				}
			}
			delay := c.backoff(attempt)
			if ra, ok := retryAfter(resp.Header); ok && resp.StatusCode == http.StatusTooManyRequests {
				delay = min(ra, c.cfg.MaxDelay)
			}
			telemetry.ObserveRetry(req.Provider, strconv.Itoa(resp.StatusCode))
			c.logger.Warn("retryable status, backing off",
				zap.String("provider", req.Provider),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			c.sleeper.Sleep(ctx, delay)

		case resp.StatusCode == http.StatusForbidden:
			if detail, ok := credentialFailure(resp.Body); ok {
				return Response{}, &contracts.CredentialError{Provider: req.Provider, Detail: detail}
			}
			c.logger.Error("forbidden response without credential marker",
				zap.String("provider", req.Provider),
				zap.String("url", req.URL),
			)
			return Response{}, fmt.Errorf("%s: forbidden (status 403)", req.Provider)

		default:
			return Response{}, fmt.Errorf("%s: unexpected status %d", req.Provider, resp.StatusCode)
		}
	}
	return Response{}, &contracts.RateLimitError{Provider: req.Provider, Attempts: attempts}
}

func (c *Client) attempt(ctx context.Context, req Request) (Response, error) {
	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response body: %w", err)
	}
	return Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       data,
	}, nil
}

// backoff returns baseDelay * 2^attempt plus jitter, capped at MaxDelay.
// Jitter is bounded below baseDelay so successive delays never shrink.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= c.cfg.MaxDelay {
			return c.cfg.MaxDelay
		}
	}
	delay += randomJitter(c.cfg.BaseDelay)
	if delay > c.cfg.MaxDelay {
		return c.cfg.MaxDelay
	}
	return delay
}

func (c *Client) waitHost(ctx context.Context, rawURL string) error {
	if c.cfg.HostRPS <= 0 {
		return nil
	}
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}
	c.mu.Lock()
	limiter, ok := c.limiters[host]
	if !ok {
		burst := c.cfg.HostBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(c.cfg.HostRPS), burst)
		c.limiters[host] = limiter
	}
	c.mu.Unlock()
	return limiter.Wait(ctx)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// retryAfter parses the Retry-After header as either delta-seconds or an
// HTTP date.
func retryAfter(h http.Header) (time.Duration, bool) {
	raw := h.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

var credentialMarkers = []string{
	"api_key_invalid",
	"invalid api_key",
	"invalid api key",
	"api key invalid",
	"invalid credential",
}

// credentialFailure inspects a 403 body for the structured invalid-key error
// providers return when the API key itself is bad.
func credentialFailure(body []byte) (string, bool) {
	lower := strings.ToLower(string(body))
	for _, marker := range credentialMarkers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}
	return "", false
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
