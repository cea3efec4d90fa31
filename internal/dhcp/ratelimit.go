package dhcp

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket with a global budget and a per-client
// budget, both refilled once per interval. Clients are identified by an
// opaque key, normally the hardware address.
type RateLimiter struct {
	enabled     bool
	globalLimit int
	clientLimit int
	interval    time.Duration
	staleAfter  time.Duration
	now         func() time.Time

	mu           sync.Mutex
	globalTokens int
	clients      map[string]*clientBucket
	lastRefill   time.Time
}

type clientBucket struct {
	tokens   int
	lastSeen time.Time
}

// RateLimiterStats is a point-in-time view of the limiter.
type RateLimiterStats struct {
	GlobalTokens   int
	TrackedClients int
}

// NewRateLimiter creates a limiter allowing globalLimit events per second in
// total and clientLimit per key. Non-positive limits fall back to 100 and 10.
func NewRateLimiter(enabled bool, globalLimit, clientLimit int) *RateLimiter {
	if globalLimit <= 0 {
		globalLimit = 100
	}
	if clientLimit <= 0 {
		clientLimit = 10
	}
	r := &RateLimiter{
		enabled:     enabled,
		globalLimit: globalLimit,
		clientLimit: clientLimit,
		interval:    time.Second,
		staleAfter:  30 * time.Second,
		now:         time.Now,
		clients:     make(map[string]*clientBucket),
	}
	r.globalTokens = globalLimit
	r.lastRefill = r.now()
	return r
}

// Allow consumes one global and one per-key token, reporting false when
// either budget is spent.
func (r *RateLimiter) Allow(key string) bool {
	if !r.enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.refill(now)

	if r.globalTokens <= 0 {
		return false
	}

	b, ok := r.clients[key]
	if !ok {
		b = &clientBucket{tokens: r.clientLimit}
		r.clients[key] = b
	}
	b.lastSeen = now
	if b.tokens <= 0 {
		return false
	}

	r.globalTokens--
	b.tokens--
	return true
}

// refill tops buckets up for every whole interval elapsed and forgets
// clients idle longer than staleAfter. Caller holds mu.
func (r *RateLimiter) refill(now time.Time) {
	intervals := int(now.Sub(r.lastRefill) / r.interval)
	if intervals <= 0 {
		return
	}
	r.lastRefill = r.lastRefill.Add(time.Duration(intervals) * r.interval)

	r.globalTokens = min(r.globalTokens+r.globalLimit*intervals, r.globalLimit)
	for key, b := range r.clients {
		if now.Sub(b.lastSeen) > r.staleAfter {
			delete(r.clients, key)
			continue
		}
		b.tokens = min(b.tokens+r.clientLimit*intervals, r.clientLimit)
	}
}

// Stats returns current limiter state.
func (r *RateLimiter) Stats() RateLimiterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RateLimiterStats{GlobalTokens: r.globalTokens, TrackedClients: len(r.clients)}
}
