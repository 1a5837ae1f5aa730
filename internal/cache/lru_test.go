package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	c.Set("a", "first")
	got, ok := c.Get("a")
	if !ok || got != "first" {
		t.Errorf("Get(a) = %q, %v; want first, true", got, ok)
	}

	c.Set("a", "second")
	got, _ = c.Get("a")
	if got != "second" {
		t.Errorf("Get(a) after overwrite = %q, want second", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](3, time.Minute)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
	}

	// Touch key-0 so key-1 becomes the eviction candidate.
	if _, ok := c.Get("key-0"); !ok {
		t.Fatal("key-0 should be present")
	}

	c.Set("key-3", 3)

	if _, ok := c.Get("key-1"); ok {
		t.Error("key-1 should have been evicted")
	}
	if _, ok := c.Get("key-0"); !ok {
		t.Error("key-0 should survive, it was used most recently")
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)

	c.Set("a", "value")
	c.Set("b", "value")
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry should read as a miss")
	}

	removed := c.CleanExpired()
	if removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1 (a was already dropped by Get)", removed)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_Delete(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	c.Set("a", "value")
	c.Delete("a")
	c.Delete("a") // deleting twice is a no-op

	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry should be gone")
	}
}

func TestManager_CleansRegisteredCaches(t *testing.T) {
	c := NewLRUCache[string](10, 5*time.Millisecond)
	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)
	defer m.Stop()

	c.Set("a", "value")

	deadline := time.After(500 * time.Millisecond)
	for c.Size() > 0 {
		select {
		case <-deadline:
			t.Fatal("cleanup never removed the expired entry")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
