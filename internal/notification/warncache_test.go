package notification

import (
	"fmt"
	"testing"
	"time"
)

func TestWarnCacheSuppressesWithinTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newWarnCache(15*time.Minute, 100)
	c.now = func() time.Time { return now }

	if !c.shouldWarn("a@x.com") {
		t.Fatal("first sighting must warn")
	}
	now = now.Add(5 * time.Minute)
	if c.shouldWarn("a@x.com") {
		t.Error("second sighting within TTL must not warn")
	}
	now = now.Add(15 * time.Minute)
	if !c.shouldWarn("a@x.com") {
		t.Error("sighting after TTL must warn again")
	}
}

func TestWarnCacheBoundedSize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newWarnCache(time.Hour, 10)
	c.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		now = now.Add(time.Second)
		c.shouldWarn(fmt.Sprintf("addr%d@x.com", i))
	}
	if len(c.seen) > 10 {
		t.Errorf("cache size = %d, cap is 10", len(c.seen))
	}
	// The newest entry survives eviction.
	if c.shouldWarn("addr99@x.com") {
		t.Error("newest entry was evicted before older ones")
	}
}
