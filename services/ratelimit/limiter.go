package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// globalKey is the bucket key used when per-client mode is off, and for
// the optional global ceiling.
const globalKey = "global"

// Config holds token bucket configuration.
type Config struct {
	// MaxRequests is the bucket capacity per window.
	MaxRequests int

	// Window is the time to refill a bucket from empty to capacity.
	Window time.Duration

	// PerClient keys buckets by client id; when false all callers share
	// one bucket.
	PerClient bool

	// GlobalLimit is an optional ceiling across all clients, applied on
	// top of per-client buckets. Zero disables it.
	GlobalLimit int
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxRequests: 60,
		Window:      time.Minute,
		PerClient:   true,
	}
}

// bucket is per-key limiter state. Tokens are whole; sub-token elapsed
// time is preserved by leaving lastRefill untouched on a zero-token refill.
type bucket struct {
	tokens     int
	lastRefill time.Time
}

// Limiter is an in-memory token bucket rate limiter. Buckets are created
// lazily, pre-filled to capacity, and live for the process lifetime. One
// mutex serializes the check-then-decrement sequence so concurrent
// requests cannot both observe a surplus token. The limiter is correct
// only for a single in-memory instance; horizontal scaling needs an
// external shared counter.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
	logger  *zap.Logger

	// now is swapped in tests to control the clock
	now func() time.Time
}

// New creates a Limiter.
func New(cfg Config, logger *zap.Logger) *Limiter {
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		logger:  logger,
		now:     time.Now,
	}
}

// IsAllowed admits or rejects one request for the client. Admission
// consumes one token from the client's bucket and, when a global ceiling
// is configured, one from the global bucket as well; both must hold a
// token or neither is consumed.
func (l *Limiter) IsAllowed(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.bucketFor(l.key(clientID), l.cfg.MaxRequests, now)
	l.refill(b, l.cfg.MaxRequests, now)

	var gb *bucket
	if l.useGlobalCeiling() {
		gb = l.bucketFor(globalKey, l.cfg.GlobalLimit, now)
		l.refill(gb, l.cfg.GlobalLimit, now)
		if gb.tokens < 1 {
			return false
		}
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	if gb != nil {
		gb.tokens--
	}
	return true
}

// GetRemaining returns the current token count for the client without
// consuming anything.
func (l *Limiter) GetRemaining(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.bucketFor(l.key(clientID), l.cfg.MaxRequests, now)
	l.refill(b, l.cfg.MaxRequests, now)
	return b.tokens
}

// GetRetryAfter returns how long the client must wait for one token to
// accrue, floored at zero.
func (l *Limiter) GetRetryAfter(clientID string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.bucketFor(l.key(clientID), l.cfg.MaxRequests, now)
	l.refill(b, l.cfg.MaxRequests, now)
	if b.tokens > 0 {
		return 0
	}

	wait := l.tokenInterval(l.cfg.MaxRequests) - now.Sub(b.lastRefill)
	if wait < 0 {
		return 0
	}
	return wait
}

// Reset evicts the client's bucket; the next request sees a full bucket.
func (l *Limiter) Reset(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, l.key(clientID))
}

// Clear evicts every bucket.
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}

func (l *Limiter) key(clientID string) string {
	if !l.cfg.PerClient {
		return globalKey
	}
	return clientID
}

func (l *Limiter) useGlobalCeiling() bool {
	return l.cfg.PerClient && l.cfg.GlobalLimit > 0
}

// bucketFor returns the bucket for key, lazily creating it pre-filled to
// capacity. Caller holds the mutex.
func (l *Limiter) bucketFor(key string, capacity int, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, lastRefill: now}
		l.buckets[key] = b
	}
	return b
}

// refill converts elapsed time into whole tokens at capacity/window and
// caps at capacity. The timestamp only advances when at least one whole
// token accrued, so frequent sub-interval calls cannot starve the bucket.
func (l *Limiter) refill(b *bucket, capacity int, now time.Time) {
	interval := l.tokenInterval(capacity)
	elapsed := now.Sub(b.lastRefill)
	if elapsed < interval {
		return
	}
	added := int(elapsed / interval)
	b.tokens += added
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(added) * interval)
}

// tokenInterval is the time for one token to accrue.
func (l *Limiter) tokenInterval(capacity int) time.Duration {
	if capacity <= 0 {
		return l.cfg.Window
	}
	return l.cfg.Window / time.Duration(capacity)
}
