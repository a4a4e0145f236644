package util

import (
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// BloomFilter is a fixed-size bloom filter.
type BloomFilter struct {
	M         uint // bit array size
	K         uint // number of hash functions
	Bits      *bitset.BitSet
	ItemCount uint
	Capacity  uint
}

// NewBloomFilter creates a filter sized for capacity elements at the given
// target false positive rate (0.01 means 1%).
func NewBloomFilter(capacity uint, errorRate float64) *BloomFilter {
	m := calculateM(capacity, errorRate)
	k := calculateK(capacity, m)
	return &BloomFilter{
		M:        m,
		K:        k,
		Bits:     bitset.New(m),
		Capacity: capacity,
	}
}

// Add inserts an element.
func (bf *BloomFilter) Add(data []byte) {
	hashes := bf.hashKernels(data)
	for i := uint(0); i < bf.K; i++ {
		bf.Bits.Set(uint(hashes[i] % uint64(bf.M)))
	}
	bf.ItemCount++
}

// Test reports whether the element may have been added. False positives are
// possible, false negatives are not.
func (bf *BloomFilter) Test(data []byte) bool {
	hashes := bf.hashKernels(data)
	for i := uint(0); i < bf.K; i++ {
		if !bf.Bits.Test(uint(hashes[i] % uint64(bf.M))) {
			return false
		}
	}
	return true
}

func (bf *BloomFilter) isFull() bool {
	return bf.ItemCount >= bf.Capacity
}

// hashKernels derives K hash values from two FNV variants via double
// hashing.
func (bf *BloomFilter) hashKernels(data []byte) []uint64 {
	h1 := fnv.New64a()
	h1.Write(data)
	hash1 := h1.Sum64()

	h2 := fnv.New64()
	h2.Write(data)
	hash2 := h2.Sum64()

	hashes := make([]uint64, bf.K)
	for i := uint(0); i < bf.K; i++ {
		hashes[i] = hash1 + uint64(i)*hash2
	}
	return hashes
}

// m = - (n * log(p)) / (log(2)^2)
func calculateM(n uint, p float64) uint {
	return uint(math.Ceil(-(float64(n) * math.Log(p)) / (math.Pow(math.Log(2), 2))))
}

// k = (m / n) * log(2)
func calculateK(n uint, m uint) uint {
	k := uint(math.Ceil((float64(m) / float64(n)) * math.Log(2)))
	if k < 1 {
		return 1
	}
	return k
}

// SBFConfig configures a ScalableBloomFilter.
type SBFConfig struct {
	InitialCapacity      uint
	ErrorRate            float64
	GrowthFactor         float64
	ErrorTighteningRatio float64
}

// ScalableBloomFilter grows by stacking filters as earlier ones fill up,
// keeping the compound false positive rate near the configured target. It is
// safe for concurrent use.
type ScalableBloomFilter struct {
	config  SBFConfig
	filters []*BloomFilter
	lock    sync.RWMutex
}

// NewScalableBloomFilter creates a scalable bloom filter.
func NewScalableBloomFilter(config SBFConfig) (*ScalableBloomFilter, error) {
	if config.InitialCapacity == 0 || config.ErrorRate <= 0 || config.GrowthFactor < 1 || config.ErrorTighteningRatio <= 0 || config.ErrorTighteningRatio >= 1 {
		return nil, fmt.Errorf("invalid scalable bloom filter configuration")
	}

	// The first filter runs tighter than the overall target so the sum over
	// all stacked filters converges to ErrorRate.
	firstErrorRate := config.ErrorRate * (1 - config.ErrorTighteningRatio)
	firstFilter := NewBloomFilter(config.InitialCapacity, firstErrorRate)

	return &ScalableBloomFilter{
		config:  config,
		filters: []*BloomFilter{firstFilter},
	}, nil
}

// Add inserts an element, growing the filter stack when the newest filter is
// full.
func (sbf *ScalableBloomFilter) Add(data []byte) {
	sbf.lock.Lock()
	defer sbf.lock.Unlock()

	lastFilter := sbf.filters[len(sbf.filters)-1]
	if lastFilter.isFull() {
		newCapacity := uint(float64(lastFilter.Capacity) * sbf.config.GrowthFactor)

		// Estimate the current filter's actual false positive rate from its
		// fill level, then tighten for the next one.
		currentP := math.Pow(1-math.Exp(-float64(lastFilter.K*lastFilter.ItemCount)/float64(lastFilter.M)), float64(lastFilter.K))
		newErrorRate := currentP * sbf.config.ErrorTighteningRatio

		newFilter := NewBloomFilter(newCapacity, newErrorRate)
		sbf.filters = append(sbf.filters, newFilter)
		lastFilter = newFilter
	}

	lastFilter.Add(data)
}

// Test reports whether the element may have been added to any filter in the
// stack.
func (sbf *ScalableBloomFilter) Test(data []byte) bool {
	sbf.lock.RLock()
	defer sbf.lock.RUnlock()

	// Newest first: recent elements live in the latest filter.
	for i := len(sbf.filters) - 1; i >= 0; i-- {
		if sbf.filters[i].Test(data) {
			return true
		}
	}
	return false
}

// Len returns the number of stacked filters.
func (sbf *ScalableBloomFilter) Len() int {
	sbf.lock.RLock()
	defer sbf.lock.RUnlock()
	return len(sbf.filters)
}
