package util

import (
	"testing"
	"time"
)

func TestLRUCapacityEviction(t *testing.T) {
	cache, err := NewWithConfig(CacheConfig[string, int]{Capacity: 2})
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}

	cache.Put("a", 1, 1)
	cache.Put("b", 2, 1)
	cache.Put("c", 3, 1)

	if _, ok := cache.Get("a"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	if v, ok := cache.Get("c"); !ok || v != 3 {
		t.Fatalf("Get(c) = %v, %v", v, ok)
	}
	if cache.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cache.Len())
	}
}

func TestLRUGetRefreshesRecency(t *testing.T) {
	cache, _ := NewWithConfig(CacheConfig[string, int]{Capacity: 2})

	cache.Put("a", 1, 1)
	cache.Put("b", 2, 1)
	cache.Get("a")
	cache.Put("c", 3, 1)

	if _, ok := cache.Get("b"); ok {
		t.Fatal("b should have been evicted, not a")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Fatal("a should have survived after access")
	}
}

func TestLRUWeightEviction(t *testing.T) {
	cache, _ := NewWithConfig(CacheConfig[string, string]{MaxWeight: 10})

	cache.Put("small", "x", 3)
	cache.Put("big", "y", 8)

	if _, ok := cache.Get("small"); ok {
		t.Fatal("small entry should have been evicted to fit the big one")
	}
	if cache.Weight() != 8 {
		t.Fatalf("Weight() = %d, want 8", cache.Weight())
	}
}

func TestLRUTTLExpiry(t *testing.T) {
	cache, _ := NewWithConfig(CacheConfig[string, int]{Capacity: 10, TTL: 10 * time.Millisecond})

	cache.Put("a", 1, 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := cache.Get("a"); ok {
		t.Fatal("expired entry should not be returned")
	}
	if cache.Len() != 0 {
		t.Fatalf("Len() = %d after lazy expiry, want 0", cache.Len())
	}
}

func TestLRURejectsUnboundedConfig(t *testing.T) {
	if _, err := NewWithConfig(CacheConfig[string, int]{}); err == nil {
		t.Fatal("expected error for config without bounds")
	}
}
