package ratelimiter

import (
	"testing"
	"time"

	"mnemos/internal/config"
)

func TestTokenBucketBurstThenDeny(t *testing.T) {
	tb := NewTokenBucket(1, 3)

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d denied within burst capacity", i)
		}
	}
	if tb.Allow() {
		t.Fatal("request allowed after bucket drained")
	}
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(50, 1)

	if !tb.Allow() {
		t.Fatal("first request denied")
	}
	if tb.Allow() {
		t.Fatal("request allowed with empty bucket")
	}

	time.Sleep(40 * time.Millisecond)

	if !tb.Allow() {
		t.Fatal("request denied after refill interval")
	}
}

func TestSlidingWindowCounterLimit(t *testing.T) {
	sw := NewSlidingWindowCounter(2, 100*time.Millisecond, 4)

	if !sw.Allow() || !sw.Allow() {
		t.Fatal("requests denied under the limit")
	}
	if sw.Allow() {
		t.Fatal("request allowed over the limit")
	}

	time.Sleep(150 * time.Millisecond)

	if !sw.Allow() {
		t.Fatal("request denied after window expired")
	}
}

func TestNewSelectsAlgorithm(t *testing.T) {
	cfg := config.RateLimiterConfig{
		Algorithm:   "tokenBucket",
		TokenBucket: config.TokenBucketConfig{Rate: 1, Capacity: 3},
	}
	if _, err := New(cfg); err != nil {
		t.Fatalf("tokenBucket: %v", err)
	}

	cfg.Algorithm = "leakyBucket"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}
