// Package pacing inserts jittered delays between provider calls so a run
// stays under provider rate limits even when every request succeeds.
package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/fedleads/harvester/internal/contracts"
)

// Config bounds the randomized delay and controls scaling for wide runs.
type Config struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	// WideRegionThreshold is the region count above which delays are scaled
	// by WideScale, spreading a large region/category sweep over more time.
	WideRegionThreshold int
	WideScale           float64
}

// Pacer produces randomized inter-call delays.
type Pacer struct {
	cfg     Config
	sleeper contracts.Sleeper

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a Pacer. A nil rng falls back to a time-seeded source; tests
// pass a seeded one for determinism.
func New(cfg Config, sleeper contracts.Sleeper, rng *rand.Rand) *Pacer {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 800 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = 4 * time.Second
	}
	if cfg.WideRegionThreshold <= 0 {
		cfg.WideRegionThreshold = 3
	}
	if cfg.WideScale <= 0 {
		cfg.WideScale = 1.5
	}
	if sleeper == nil {
		sleeper = contracts.TimerSleeper{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Pacer{cfg: cfg, sleeper: sleeper, rng: rng}
}

// Delay returns a randomized delay in [MinDelay, MaxDelay], scaled up when
// the run covers more regions than the wide threshold.
func (p *Pacer) Delay(regionCount int) time.Duration {
	p.mu.Lock()
	span := p.cfg.MaxDelay - p.cfg.MinDelay
	d := p.cfg.MinDelay
	if span > 0 {
		d += time.Duration(p.rng.Int63n(int64(span) + 1))
	}
	p.mu.Unlock()

	if regionCount > p.cfg.WideRegionThreshold {
		d = time.Duration(float64(d) * p.cfg.WideScale)
	}
	return d
}

// Pause blocks for one randomized delay, honoring cancellation.
func (p *Pacer) Pause(ctx context.Context, regionCount int) {
	p.sleeper.Sleep(ctx, p.Delay(regionCount))
}
