package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_GetSet(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	if _, ok, _ := c.Get(ctx, "missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	if err := c.Set(ctx, "k", []byte(`{"temp":60}`), time.Hour); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v; want hit", ok, err)
	}
	if string(got) != `{"temp":60}` {
		t.Fatalf("Get() = %s", got)
	}
}

func TestMemoryCache_ExpiredEntriesAreAbsent(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte(`1`), 12*time.Hour)

	now = now.Add(12*time.Hour - time.Second)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("entry should still be live just before expiry")
	}

	now = now.Add(time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("entry should be absent once the TTL has elapsed")
	}
}

func TestMemoryCache_SetResetsTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte(`"old"`), time.Hour)
	now = now.Add(50 * time.Minute)
	_ = c.Set(ctx, "k", []byte(`"new"`), time.Hour)
	now = now.Add(50 * time.Minute)

	got, ok, _ := c.Get(ctx, "k")
	if !ok || string(got) != `"new"` {
		t.Fatalf("Get() = %s, %v; want the overwritten value", got, ok)
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	value := []byte(`"abc"`)
	_ = c.Set(ctx, "k", value, time.Minute)
	value[1] = 'z'

	got, _, _ := c.Get(ctx, "k")
	got[2] = 'z'

	again, _, _ := c.Get(ctx, "k")
	if string(again) != `"abc"` {
		t.Fatalf("stored value was mutated: %s", again)
	}
}

func TestMemoryCache_Sweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(func() time.Time { return now })
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte(`1`), time.Minute)
	_ = c.Set(ctx, "long", []byte(`2`), time.Hour)
	_ = c.Set(ctx, "forever", []byte(`3`), 0)

	if removed := c.Sweep(now.Add(2 * time.Minute)); removed != 1 {
		t.Fatalf("Sweep() removed %d, want 1", removed)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "shared", []byte(`{}`), time.Minute)
		}()
		go func() {
			defer wg.Done()
			_, _, _ = c.Get(ctx, "shared")
		}()
	}
	wg.Wait()

	if _, ok, _ := c.Get(ctx, "shared"); !ok {
		t.Fatal("expected the shared key to be present")
	}
}
