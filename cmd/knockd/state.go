package main

import (
	"sync"
	"time"
)

// serverState is the in-memory StateStore for single-instance deployments.
type serverState struct {
	mu       sync.Mutex
	counters Counters
	closing  bool
	ready    bool
}

func newServerState() *serverState {
	return &serverState{}
}

func (s *serverState) Decision(hidden, timedOut bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hidden {
		s.counters.KnockHits++
	} else {
		s.counters.NormalRoutes++
	}
	if timedOut {
		s.counters.SniffTimeouts++
	}
}

func (s *serverState) Rejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Rejected++
}

func (s *serverState) PipeOpened() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.ActivePipes++
	s.counters.TotalPipes++
}

func (s *serverState) PipeClosed(time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.ActivePipes--
}

func (s *serverState) setClosing(closing bool) { s.mu.Lock(); s.closing = closing; s.mu.Unlock() }
func (s *serverState) setReady(ready bool)     { s.mu.Lock(); s.ready = ready; s.mu.Unlock() }
func (s *serverState) isClosing() bool         { s.mu.Lock(); defer s.mu.Unlock(); return s.closing }
func (s *serverState) isReady() bool           { s.mu.Lock(); defer s.mu.Unlock(); return s.ready }

func (s *serverState) getStats() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}
