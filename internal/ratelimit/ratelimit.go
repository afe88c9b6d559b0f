package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	mu         sync.Mutex
	tokens     int
	capacity   int
	rate       int // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a new token bucket with the given rate and capacity
func NewTokenBucket(rate, capacity int) *TokenBucket {
	return &TokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		rate:       rate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request can be allowed and consumes a token if available
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	tokensToAdd := int(elapsed.Seconds() * float64(tb.rate))
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

type sourceBucket struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// SourceGate limits how fast connections are admitted, globally and per
// source IP. A zero rate disables that dimension.
type SourceGate struct {
	mu        sync.Mutex
	global    *TokenBucket
	perSource map[string]*sourceBucket
	rate      int
	burst     int
	maxIdle   time.Duration
}

// NewSourceGate creates a gate admitting globalRate connections per second
// overall and perSourceRate per source IP, each with the given burst.
func NewSourceGate(globalRate, perSourceRate, burst int) *SourceGate {
	g := &SourceGate{
		perSource: make(map[string]*sourceBucket),
		rate:      perSourceRate,
		burst:     burst,
		maxIdle:   5 * time.Minute,
	}
	if globalRate > 0 {
		g.global = NewTokenBucket(globalRate, burst)
	}
	return g
}

// Allow reports whether a connection from src may be admitted, consuming
// tokens if so.
func (g *SourceGate) Allow(src string) bool {
	if g.global != nil && !g.global.Allow() {
		return false
	}
	if g.rate <= 0 {
		return true
	}
	g.mu.Lock()
	sb, ok := g.perSource[src]
	if !ok {
		sb = &sourceBucket{bucket: NewTokenBucket(g.rate, g.burst)}
		g.perSource[src] = sb
	}
	sb.lastSeen = time.Now()
	g.mu.Unlock()

	return sb.bucket.Allow()
}

// Sweep drops per-source buckets that have been idle longer than the gate's
// retention window and returns how many were removed.
func (g *SourceGate) Sweep() int {
	cutoff := time.Now().Add(-g.maxIdle)
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for src, sb := range g.perSource {
		if sb.lastSeen.Before(cutoff) {
			delete(g.perSource, src)
			removed++
		}
	}
	return removed
}
