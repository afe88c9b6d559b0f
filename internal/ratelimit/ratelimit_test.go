package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	bucket := NewTokenBucket(2, 5) // 2 tokens per second, capacity of 5

	// Initial tokens should be at capacity
	for i := 0; i < 5; i++ {
		if !bucket.Allow() {
			t.Errorf("Expected initial request %d to be allowed", i)
		}
	}

	// Next request should be denied (bucket empty)
	if bucket.Allow() {
		t.Error("Expected request to be denied when bucket is empty")
	}

	// Wait and check if tokens are refilled
	time.Sleep(1100 * time.Millisecond)

	if !bucket.Allow() {
		t.Error("Expected request to be allowed after token refill")
	}
	if !bucket.Allow() {
		t.Error("Expected second request to be allowed after token refill")
	}

	// Third request should be denied
	if bucket.Allow() {
		t.Error("Expected third request to be denied")
	}
}

func TestSourceGatePerSource(t *testing.T) {
	g := NewSourceGate(0, 2, 3) // per-source: 2/s with burst 3; global disabled

	src := "198.51.100.7"
	for i := 0; i < 3; i++ {
		if !g.Allow(src) {
			t.Errorf("Expected connection %d from %s to be allowed", i, src)
		}
	}
	if g.Allow(src) {
		t.Error("Expected connection to be denied once the source burst is spent")
	}

	// a different source has its own bucket
	if !g.Allow("203.0.113.9") {
		t.Error("Expected connection from a fresh source to be allowed")
	}
}

func TestSourceGateGlobal(t *testing.T) {
	g := NewSourceGate(2, 0, 2) // global: 2/s with burst 2; per-source disabled

	if !g.Allow("198.51.100.1") {
		t.Error("Expected first global connection to be allowed")
	}
	if !g.Allow("198.51.100.2") {
		t.Error("Expected second global connection to be allowed")
	}
	if g.Allow("198.51.100.3") {
		t.Error("Expected connection to be denied due to the global limit")
	}
}

func TestSourceGateDisabled(t *testing.T) {
	g := NewSourceGate(0, 0, 5)

	for i := 0; i < 100; i++ {
		if !g.Allow("198.51.100.7") {
			t.Errorf("Expected connection %d to be allowed when limits are disabled", i)
		}
	}
}

func TestSourceGateSweep(t *testing.T) {
	g := NewSourceGate(0, 1, 1)
	g.maxIdle = 10 * time.Millisecond

	g.Allow("198.51.100.1")
	time.Sleep(20 * time.Millisecond)
	g.Allow("198.51.100.2")

	if removed := g.Sweep(); removed != 1 {
		t.Errorf("Expected 1 stale bucket removed, got %d", removed)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.perSource["198.51.100.2"]; !ok {
		t.Error("Expected the recently seen bucket to survive the sweep")
	}
	if _, ok := g.perSource["198.51.100.1"]; ok {
		t.Error("Expected the stale bucket to be swept")
	}
}
