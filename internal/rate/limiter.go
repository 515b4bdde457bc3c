package rate

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of requests allowed per window.
	DefaultLimit = 10
	// DefaultWindow is the trailing window length.
	DefaultWindow = 60 * time.Second
	// DefaultSweepInterval is how often idle addresses are purged.
	DefaultSweepInterval = 10 * time.Minute
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Limit  int
	Window time.Duration
}

// Validate checks that the limiter can admit at least one request.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return errors.New("rate limit must be > 0")
	}
	if c.Window <= 0 {
		return errors.New("rate window must be > 0")
	}
	return nil
}

// Limiter is a per-address sliding-window limiter. It is safe for concurrent use.
type Limiter struct {
	config Config
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a [Limiter]. Zero fields in cfg fall back to the defaults.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	l := &Limiter{
		config: cfg,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// Allow records a request from addr, or returns ErrRateLimited when addr
// already made Limit requests inside the trailing window.
func (l *Limiter) Allow(addr string) error {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(l.hits[addr], now)
	if len(recent) >= l.config.Limit {
		l.hits[addr] = recent
		return ErrRateLimited
	}
	l.hits[addr] = append(recent, now)
	return nil
}

// Sweep prunes every address and drops the ones left without timestamps. It
// returns the number of addresses removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for addr, ts := range l.hits {
		recent := l.prune(ts, now)
		if len(recent) == 0 {
			delete(l.hits, addr)
			removed++
			continue
		}
		l.hits[addr] = recent
	}
	return removed
}

// Len returns the number of tracked addresses.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// Run sweeps every interval until ctx is done. onSweep, when non-nil, receives
// the number of addresses removed by each sweep.
func (l *Limiter) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := l.Sweep()
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}

// prune keeps timestamps with now-t < window. Timestamps are appended in
// order, so the kept ones form a suffix.
func (l *Limiter) prune(ts []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(ts) && now.Sub(ts[i]) >= l.config.Window {
		i++
	}
	if i == 0 {
		return ts
	}
	kept := make([]time.Time, len(ts)-i)
	copy(kept, ts[i:])
	return kept
}
