// Package ratelimit provides a deterministic token bucket used to bound
// per-connection inbound message rates.
package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time.Now so tests can drive refills deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// nanosPerToken is the fixed-point scale: one token = 1e9 nano-tokens, so a
// fill rate of N tokens/sec adds exactly N nano-tokens per elapsed nanosecond
// without float rounding.
const nanosPerToken = int64(time.Second)

// TokenBucket refills at an integer tokens/sec rate up to a fixed capacity.
type TokenBucket struct {
	mu sync.Mutex

	clock    Clock
	capacity int64 // nano-tokens
	rate     int64 // tokens/sec == nano-tokens/ns

	available int64 // nano-tokens
	last      time.Time
}

// NewTokenBucket returns a bucket that starts full. A nil clock selects
// RealClock. Non-positive capacity or rate yields a bucket that never refills
// past its initial contents.
func NewTokenBucket(clock Clock, capacity, rate int64) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	if capacity < 0 {
		capacity = 0
	}
	if rate < 0 {
		rate = 0
	}
	return &TokenBucket{
		clock:     clock,
		capacity:  capacity * nanosPerToken,
		rate:      rate,
		available: capacity * nanosPerToken,
		last:      clock.Now(),
	}
}

// Allow consumes tokens if available. tokens <= 0 always succeeds.
func (b *TokenBucket) Allow(tokens int64) bool {
	if tokens <= 0 {
		return true
	}
	cost := tokens * nanosPerToken

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.available < cost {
		return false
	}
	b.available -= cost
	return true
}

func (b *TokenBucket) refillLocked() {
	now := b.clock.Now()
	if now.Before(b.last) {
		// Clock went backwards; re-anchor without refilling.
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Nanoseconds()
	b.last = now
	if elapsed <= 0 || b.rate <= 0 || b.available >= b.capacity {
		return
	}

	need := b.capacity - b.available
	// Guard elapsed*rate overflow: enough time to fill the bucket clamps to
	// capacity.
	if elapsed >= need/b.rate {
		b.available = b.capacity
		return
	}
	b.available += elapsed * b.rate
}
