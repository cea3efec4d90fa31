package dhcp

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(global, client int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(true, global, client)
	rl.now = clock.now
	rl.lastRefill = clock.t
	return rl, clock
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(false, 10, 5)
	for i := 0; i < 100; i++ {
		if !rl.Allow("001122334455") {
			t.Fatalf("disabled rate limiter rejected request %d", i)
		}
	}
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(true, 0, -1)
	if rl.globalLimit != 100 || rl.clientLimit != 10 {
		t.Errorf("limits = %d/%d, want 100/10", rl.globalLimit, rl.clientLimit)
	}
}

func TestRateLimiterGlobalLimit(t *testing.T) {
	rl, _ := newTestLimiter(5, 100)
	for i := 0; i < 5; i++ {
		if !rl.Allow("001122334455") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("AABBCCDDEEFF") {
		t.Error("6th request should be rejected (global limit)")
	}
}

func TestRateLimiterPerClientLimit(t *testing.T) {
	rl, _ := newTestLimiter(100, 3)
	for i := 0; i < 3; i++ {
		if !rl.Allow("001122334455") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("001122334455") {
		t.Error("4th request from same client should be rejected")
	}
	if !rl.Allow("AABBCCDDEEFF") {
		t.Error("different client should still be allowed")
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl, clock := newTestLimiter(3, 3)
	for i := 0; i < 3; i++ {
		rl.Allow("001122334455")
	}
	if rl.Allow("001122334455") {
		t.Error("should be rate-limited after exhausting tokens")
	}

	clock.advance(500 * time.Millisecond)
	if rl.Allow("001122334455") {
		t.Error("refilled before a full interval elapsed")
	}

	clock.advance(600 * time.Millisecond)
	if !rl.Allow("001122334455") {
		t.Error("should be allowed after refill")
	}
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	rl, clock := newTestLimiter(10, 5)
	rl.Allow("001122334455")
	rl.Allow("AABBCCDDEEFF")

	clock.advance(31 * time.Second)
	rl.Allow("AABBCCDDEEFF")

	if got := rl.Stats().TrackedClients; got != 1 {
		t.Errorf("TrackedClients = %d, want 1", got)
	}
}

func TestRateLimiterStats(t *testing.T) {
	rl, _ := newTestLimiter(10, 5)
	rl.Allow("001122334455")
	rl.Allow("AABBCCDDEEFF")

	stats := rl.Stats()
	if stats.GlobalTokens != 8 { // 10 - 2
		t.Errorf("GlobalTokens = %d, want 8", stats.GlobalTokens)
	}
	if stats.TrackedClients != 2 {
		t.Errorf("TrackedClients = %d, want 2", stats.TrackedClients)
	}
}
