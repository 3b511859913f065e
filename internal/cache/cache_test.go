package cache

import (
	"testing"
	"time"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(capacity int) (*Cache[string], *fakeClock) {
	c := New[string](capacity)
	clk := &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return c, clk
}

func TestPutGet(t *testing.T) {
	c, _ := newTestCache(10)

	c.Put("k", "v", time.Minute)
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != "v" {
		t.Errorf("expected v, got %q", got)
	}
}

func TestGet_Miss(t *testing.T) {
	c, _ := newTestCache(10)

	if _, ok := c.Get("absent"); ok {
		t.Fatal("expected miss")
	}
}

func TestGet_ExpiredIsMissAndRemoved(t *testing.T) {
	c, clk := newTestCache(10)

	c.Put("k", "v", time.Minute)
	clk.advance(time.Minute) // exactly at TTL boundary counts as expired

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed on read, len=%d", c.Len())
	}
}

func TestGet_BeforeExpiryIsHit(t *testing.T) {
	c, clk := newTestCache(10)

	c.Put("k", "v", time.Minute)
	clk.advance(59 * time.Second)

	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before TTL")
	}
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(10)

	c.Put("k", "v", time.Minute)
	c.Invalidate("k")

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestInvalidateAll(t *testing.T) {
	c, _ := newTestCache(10)

	c.Put("a", "1", time.Minute)
	c.Put("b", "2", time.Minute)
	c.InvalidateAll()

	if c.Len() != 0 {
		t.Errorf("expected empty cache, len=%d", c.Len())
	}
}

func TestLRUEviction(t *testing.T) {
	c, _ := newTestCache(2)

	c.Put("a", "1", time.Minute)
	c.Put("b", "2", time.Minute)

	// Touch a so b becomes least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}

	c.Put("c", "3", time.Minute)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

func TestPut_UpdatesExisting(t *testing.T) {
	c, _ := newTestCache(2)

	c.Put("k", "old", time.Minute)
	c.Put("k", "new", time.Minute)

	got, _ := c.Get("k")
	if got != "new" {
		t.Errorf("expected new, got %q", got)
	}
	if c.Len() != 1 {
		t.Errorf("update must not grow the cache, len=%d", c.Len())
	}
}

func TestPut_NonPositiveTTLIgnored(t *testing.T) {
	c, _ := newTestCache(10)

	c.Put("k", "v", 0)
	if c.Len() != 0 {
		t.Error("zero TTL entry should not be stored")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	c, clk := newTestCache(10)

	c.Put("short", "v", time.Second)
	c.Put("long", "v", time.Hour)
	clk.advance(time.Minute)

	c.sweep()

	if c.Len() != 1 {
		t.Fatalf("expected 1 entry after sweep, got %d", c.Len())
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("unexpired entry must survive sweep")
	}
}

func TestStats(t *testing.T) {
	c, _ := newTestCache(5)

	c.Put("k", "v", time.Minute)
	c.Get("k")      // hit
	c.Get("absent") // miss

	s := c.Stats()
	if s.Size != 1 || s.Capacity != 5 {
		t.Errorf("unexpected occupancy: %+v", s)
	}
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("unexpected counters: %+v", s)
	}
	if s.HitRate() != 0.5 {
		t.Errorf("expected hit rate 0.5, got %f", s.HitRate())
	}
}

func TestStats_ColdCacheHitRate(t *testing.T) {
	c, _ := newTestCache(5)
	if rate := c.Stats().HitRate(); rate != 0 {
		t.Errorf("expected 0 hit rate for cold cache, got %f", rate)
	}
}
