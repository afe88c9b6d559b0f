package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/matst80/knockport/internal/obs"
	"github.com/redis/go-redis/v9"
)

const (
	keyKnockHits     = "knockport:knock_hits"
	keyNormalRoutes  = "knockport:normal_routes"
	keySniffTimeouts = "knockport:sniff_timeouts"
	keyRejected      = "knockport:rejected"
	keyTotalPipes    = "knockport:total_pipes"
)

// redisStateStore shares routing counters across knockd instances. Active
// pipes stay instance-local: a pipe only ever lives and dies on the instance
// that accepted it, and tunnel state is never persisted.
type redisStateStore struct {
	client  *redis.Client
	mu      sync.Mutex
	active  int64
	closing bool
	ready   bool
}

func newRedisStateStore(addr, password string, db int) (*redisStateStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &redisStateStore{client: rdb}, nil
}

var _ StateStore = (*redisStateStore)(nil)

func (r *redisStateStore) incr(key string) {
	if err := r.client.Incr(context.Background(), key).Err(); err != nil {
		obs.Error("redis.incr", obs.Fields{"err": err.Error(), "key": key})
	}
}

func (r *redisStateStore) Decision(hidden, timedOut bool) {
	if hidden {
		r.incr(keyKnockHits)
	} else {
		r.incr(keyNormalRoutes)
	}
	if timedOut {
		r.incr(keySniffTimeouts)
	}
}

func (r *redisStateStore) Rejected() {
	r.incr(keyRejected)
}

func (r *redisStateStore) PipeOpened() {
	r.mu.Lock()
	r.active++
	r.mu.Unlock()
	r.incr(keyTotalPipes)
}

func (r *redisStateStore) PipeClosed(time.Duration) {
	r.mu.Lock()
	r.active--
	r.mu.Unlock()
}

func (r *redisStateStore) setClosing(closing bool) { r.mu.Lock(); r.closing = closing; r.mu.Unlock() }
func (r *redisStateStore) setReady(ready bool)     { r.mu.Lock(); r.ready = ready; r.mu.Unlock() }
func (r *redisStateStore) isClosing() bool         { r.mu.Lock(); defer r.mu.Unlock(); return r.closing }
func (r *redisStateStore) isReady() bool           { r.mu.Lock(); defer r.mu.Unlock(); return r.ready }

func (r *redisStateStore) getStats() Counters {
	r.mu.Lock()
	c := Counters{ActivePipes: r.active}
	r.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	vals, err := r.client.MGet(ctx, keyKnockHits, keyNormalRoutes, keySniffTimeouts, keyRejected, keyTotalPipes).Result()
	if err != nil {
		obs.Error("redis.stats", obs.Fields{"err": err.Error()})
		return c
	}
	nums := make([]int64, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			nums[i], _ = strconv.ParseInt(s, 10, 64)
		}
	}
	c.KnockHits, c.NormalRoutes, c.SniffTimeouts, c.Rejected, c.TotalPipes = nums[0], nums[1], nums[2], nums[3], nums[4]
	return c
}
