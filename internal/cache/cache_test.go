package cache

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for expiry tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestCache_SetGet(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", time.Minute)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit for fresh entry")
	}
	if got != "v" {
		t.Errorf("expected %q, got %q", "v", got)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestCache_ExpiryIsLazy(t *testing.T) {
	clock := newFakeClock()
	c := NewWithClock[int](clock.Now)

	c.Set("k", 42, time.Minute)
	clock.Advance(time.Minute) // now == expiresAt counts as expired

	if c.Len() != 1 {
		t.Fatalf("entry should linger until accessed, len=%d", c.Len())
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after TTL elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("read past expiry should evict, len=%d", c.Len())
	}
}

func TestCache_HasEvictsExpired(t *testing.T) {
	clock := newFakeClock()
	c := NewWithClock[int](clock.Now)

	c.Set("k", 1, 30*time.Second)
	if !c.Has("k") {
		t.Fatal("expected Has to report fresh entry")
	}

	clock.Advance(31 * time.Second)
	if c.Has("k") {
		t.Error("expected Has to report false after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("Has should evict expired entry, len=%d", c.Len())
	}
}

func TestCache_NoExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewWithClock[int](clock.Now)

	c.Set("forever", 7, NoExpiry)
	clock.Advance(1000 * time.Hour)

	got, ok := c.Get("forever")
	if !ok || got != 7 {
		t.Errorf("NoExpiry entry must survive, got=%d ok=%t", got, ok)
	}
}

func TestCache_SetRefreshesTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewWithClock[int](clock.Now)

	c.Set("k", 1, time.Minute)
	clock.Advance(50 * time.Second)
	c.Set("k", 2, time.Minute)
	clock.Advance(50 * time.Second)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("re-set entry should still be fresh")
	}
	if got != 2 {
		t.Errorf("expected refreshed value 2, got %d", got)
	}
}

func TestCache_ClearExpired(t *testing.T) {
	clock := newFakeClock()
	c := NewWithClock[int](clock.Now)

	c.Set("old", 1, time.Second)
	c.Set("fresh", 2, time.Hour)
	c.Set("forever", 3, NoExpiry)
	clock.Advance(2 * time.Second)

	c.ClearExpired()

	if c.Len() != 2 {
		t.Errorf("expected 2 surviving entries, got %d", c.Len())
	}
	if c.Has("old") {
		t.Error("expired entry survived sweep")
	}
	if !c.Has("fresh") || !c.Has("forever") {
		t.Error("fresh entries must survive sweep")
	}
}

func TestCache_Delete(t *testing.T) {
	c := New[int]()
	c.Set("k", 1, NoExpiry)
	c.Delete("k")
	if c.Has("k") {
		t.Error("deleted entry still present")
	}
	// Deleting an absent key is a no-op
	c.Delete("missing")
}
