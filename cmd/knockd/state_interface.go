package main

import "time"

// Counters is the stats snapshot shown on the dashboard and state API.
type Counters struct {
	KnockHits     int64
	NormalRoutes  int64
	SniffTimeouts int64
	Rejected      int64
	ActivePipes   int64
	TotalPipes    int64
}

// StateStore abstracts stats bookkeeping so several knockd instances can
// share counters. The exported methods satisfy tunnel.Recorder.
type StateStore interface {
	Decision(hidden, timedOut bool)
	Rejected()
	PipeOpened()
	PipeClosed(d time.Duration)
	setClosing(closing bool)
	setReady(ready bool)
	isClosing() bool
	isReady() bool
	getStats() Counters
}
