package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int64, string](2, time.Minute)
	c.Set(1, "a")
	c.Set(2, "b")
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected key 1")
	}
	c.Set(3, "c")

	if _, ok := c.Get(2); ok {
		t.Fatal("key 2 should have been evicted")
	}
	if v, ok := c.Get(1); !ok || v != "a" {
		t.Fatalf("key 1: got %q %v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRU[string, int](10, time.Minute).WithClock(clock.now)
	c.Set("x", 1)
	c.Set("y", 2)

	clock.t = clock.t.Add(30 * time.Second)
	c.Set("y", 3)
	if v, ok := c.Get("x"); !ok || v != 1 {
		t.Fatalf("x before expiry: %d %v", v, ok)
	}

	clock.t = clock.t.Add(45 * time.Second)
	if _, ok := c.Get("x"); ok {
		t.Fatal("x should have expired")
	}
	if removed := c.CleanExpired(); removed != 0 {
		t.Fatalf("removed %d, want 0 (y was refreshed)", removed)
	}

	clock.t = clock.t.Add(time.Minute)
	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d, want 0", c.Len())
	}
}

func TestLRUDelete(t *testing.T) {
	c := NewLRU[int64, int](4, time.Minute)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Delete(1)
	c.Delete(42)
	if _, ok := c.Get(1); ok {
		t.Fatal("deleted key still present")
	}
	if c.Len() != 1 {
		t.Fatalf("len after delete = %d, want 1", c.Len())
	}
	if v, ok := c.Get(2); !ok || v != 2 {
		t.Fatal("untouched key lost")
	}
}

func TestJanitorStopsWithContext(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRU[int, int](4, time.Millisecond).WithClock(clock.now)
	c.Set(1, 1)
	clock.t = clock.t.Add(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	j := NewJanitor(c)
	go j.Run(ctx, 5*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for c.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("janitor never cleaned the expired entry")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-j.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
