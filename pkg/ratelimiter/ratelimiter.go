package ratelimiter

import (
	"fmt"
	"time"

	"mnemos/internal/config"
)

// RateLimiter answers whether one more request may proceed right now.
type RateLimiter interface {
	Allow() bool
}

// New builds a limiter from configuration. The algorithm is selected by
// cfg.Algorithm.
func New(cfg config.RateLimiterConfig) (RateLimiter, error) {
	switch cfg.Algorithm {
	case "tokenBucket":
		return NewTokenBucket(cfg.TokenBucket.Rate, cfg.TokenBucket.Capacity), nil
	case "slidingCounter":
		window, err := time.ParseDuration(cfg.SlidingCounter.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid sliding counter window %q: %w", cfg.SlidingCounter.Window, err)
		}
		return NewSlidingWindowCounter(cfg.SlidingCounter.Limit, window, cfg.SlidingCounter.NumBuckets), nil
	default:
		return nil, fmt.Errorf("unknown rate limiter algorithm: %q", cfg.Algorithm)
	}
}
