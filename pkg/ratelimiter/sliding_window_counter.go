package ratelimiter

import (
	"sync"
	"time"
)

// SlidingWindowCounter approximates a sliding window by splitting it into
// fixed sub-buckets and expiring whole buckets as time advances. It is
// cheaper than keeping per-request timestamps while still smoothing the
// boundary spikes of a plain fixed window.
type SlidingWindowCounter struct {
	limit      int
	window     time.Duration
	bucketSpan time.Duration

	buckets map[int64]int
	mu      sync.Mutex
}

// NewSlidingWindowCounter creates a counter allowing at most limit requests
// per window, tracked in numBuckets sub-buckets.
func NewSlidingWindowCounter(limit int, window time.Duration, numBuckets int) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	return &SlidingWindowCounter{
		limit:      limit,
		window:     window,
		bucketSpan: window / time.Duration(numBuckets),
		buckets:    make(map[int64]int),
	}
}

// Allow reports whether the request fits under the window limit and counts
// it if so.
func (sw *SlidingWindowCounter) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	current := now.UnixNano() / int64(sw.bucketSpan)
	oldest := now.Add(-sw.window).UnixNano() / int64(sw.bucketSpan)

	total := 0
	for key, count := range sw.buckets {
		if key <= oldest {
			delete(sw.buckets, key)
			continue
		}
		total += count
	}

	if total >= sw.limit {
		return false
	}
	sw.buckets[current]++
	return true
}
