package server

import (
	"net/netip"
	"time"
)

// RateLimiter caps how many connections one client IP may open per window.
// It is driven by the reactor goroutine only, so it takes no locks and runs
// no cleanup goroutine; prune is called from the loop instead.
type RateLimiter struct {
	buckets   map[netip.Addr]*bucket
	rate      int           // connections per window
	window    time.Duration // time window
	lastPrune time.Time
}

type bucket struct {
	tokens    int
	lastReset time.Time
}

// NewRateLimiter creates a new rate limiter
// rate: number of connections allowed per window
// window: time window (e.g., 1 minute)
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[netip.Addr]*bucket),
		rate:    rate,
		window:  window,
	}
}

// Allow reports whether a new connection from ip is within its budget.
func (rl *RateLimiter) Allow(ip netip.Addr, now time.Time) bool {
	b, exists := rl.buckets[ip]
	if !exists {
		rl.buckets[ip] = &bucket{
			tokens:    rl.rate - 1,
			lastReset: now,
		}
		return true
	}

	// Reset bucket if window has passed
	if now.Sub(b.lastReset) >= rl.window {
		b.tokens = rl.rate - 1
		b.lastReset = now
		return true
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// prune drops buckets idle for two windows. It does nothing if it already
// ran within the last window.
func (rl *RateLimiter) prune(now time.Time) {
	if now.Sub(rl.lastPrune) < rl.window {
		return
	}
	rl.lastPrune = now

	for ip, b := range rl.buckets {
		if now.Sub(b.lastReset) > rl.window*2 {
			delete(rl.buckets, ip)
		}
	}
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	return len(rl.buckets)
}
