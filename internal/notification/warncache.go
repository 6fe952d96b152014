package notification

import (
	"sync"
	"time"
)

// warnCache rate-limits log noise for mailboxes that keep sending
// notifications without a registered connection. Entries expire after a TTL
// so a mailbox connected later warns again if it breaks again, and the cache
// is capped so an attacker spraying addresses cannot grow it without bound.
type warnCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	seen    map[string]time.Time
	now     func() time.Time
}

func newWarnCache(ttl time.Duration, maxSize int) *warnCache {
	return &warnCache{
		ttl:     ttl,
		maxSize: maxSize,
		seen:    make(map[string]time.Time),
		now:     time.Now,
	}
}

// shouldWarn reports whether the address has not warned within the TTL, and
// records the warning when it has not.
func (c *warnCache) shouldWarn(address string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if at, ok := c.seen[address]; ok && now.Sub(at) < c.ttl {
		return false
	}

	c.prune(now)
	c.seen[address] = now
	return true
}

// prune drops expired entries, then evicts oldest-first if still at capacity.
func (c *warnCache) prune(now time.Time) {
	for addr, at := range c.seen {
		if now.Sub(at) >= c.ttl {
			delete(c.seen, addr)
		}
	}
	for len(c.seen) >= c.maxSize {
		var oldest string
		var oldestAt time.Time
		for addr, at := range c.seen {
			if oldest == "" || at.Before(oldestAt) {
				oldest = addr
				oldestAt = at
			}
		}
		delete(c.seen, oldest)
	}
}
