package app

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"meeting-scheduler/internal/availability"
)

// schedule is the per-owner configuration the slot grid is computed from.
type schedule struct {
	rules  []availability.Rule
	buffer int
}

// scheduleCache keeps recent owner schedules for the slot read path. Entries
// expire so that writes made by another instance become visible.
//
// gen counts invalidations. A reader snapshots it before loading from the
// store and stores the result only if no invalidation happened meanwhile.
type scheduleCache struct {
	mu  sync.Mutex
	gen uint64
	lru *expirable.LRU[string, schedule]
}

func newScheduleCache(size int, ttl time.Duration) *scheduleCache {
	if size <= 0 {
		return nil
	}
	return &scheduleCache{lru: expirable.NewLRU[string, schedule](size, nil, ttl)}
}

func (c *scheduleCache) get(ownerID string) (schedule, bool) {
	if c == nil {
		return schedule{}, false
	}
	return c.lru.Get(ownerID)
}

func (c *scheduleCache) generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// putIf stores s unless the cache was invalidated after gen was read.
func (c *scheduleCache) putIf(ownerID string, s schedule, gen uint64) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.lru.Add(ownerID, s)
	return true
}

func (c *scheduleCache) invalidate(ownerID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.lru.Remove(ownerID)
}
