package util

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// CacheConfig controls the bounds of an LRUCache. At least one of Capacity
// and MaxWeight must be positive.
type CacheConfig[K comparable, V any] struct {
	// Capacity is the maximum number of entries. Zero means unlimited.
	Capacity int
	// MaxWeight is the maximum total weight of all entries. Zero means
	// unlimited.
	MaxWeight int
	// TTL is the lifetime of an entry. Zero means entries never expire.
	TTL time.Duration
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	weight     int
	expiration time.Time
}

// LRUCache is a generic, thread-safe LRU cache with optional weight and TTL
// based eviction.
type LRUCache[K comparable, V any] struct {
	config        CacheConfig[K, V]
	ll            *list.List
	cache         map[K]*list.Element
	currentWeight int
	lock          sync.RWMutex
}

// NewWithConfig creates an LRU cache with the given bounds.
func NewWithConfig[K comparable, V any](config CacheConfig[K, V]) (*LRUCache[K, V], error) {
	if config.Capacity <= 0 && config.MaxWeight <= 0 {
		return nil, fmt.Errorf("at least one of Capacity or MaxWeight must be set")
	}
	return &LRUCache[K, V]{
		config: config,
		ll:     list.New(),
		cache:  make(map[K]*list.Element),
	}, nil
}

// Get looks up a value and marks it most recently used. Expired entries are
// removed lazily on access.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	element, ok := c.cache[key]
	if !ok {
		var zeroV V
		return zeroV, false
	}

	ent := element.Value.(*entry[K, V])
	if c.config.TTL > 0 && time.Now().After(ent.expiration) {
		c.removeElement(element)
		var zeroV V
		return zeroV, false
	}

	c.ll.MoveToFront(element)
	return ent.value, true
}

// Put inserts or updates a key with the given weight. Pass 1 for weight when
// only capacity-based eviction is wanted.
func (c *LRUCache[K, V]) Put(key K, value V, weight int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if element, ok := c.cache[key]; ok {
		ent := element.Value.(*entry[K, V])
		c.currentWeight += (weight - ent.weight)
		ent.weight = weight
		ent.value = value
		if c.config.TTL > 0 {
			ent.expiration = time.Now().Add(c.config.TTL)
		}
		c.ll.MoveToFront(element)
	} else {
		newEntry := &entry[K, V]{
			key:    key,
			value:  value,
			weight: weight,
		}
		if c.config.TTL > 0 {
			newEntry.expiration = time.Now().Add(c.config.TTL)
		}
		element := c.ll.PushFront(newEntry)
		c.cache[key] = element
		c.currentWeight += weight
	}

	// A single large insert can require evicting several old entries.
	for c.isOverCapacity() {
		c.evict()
	}
}

// isOverCapacity assumes the lock is held.
func (c *LRUCache[K, V]) isOverCapacity() bool {
	if c.config.Capacity > 0 && c.ll.Len() > c.config.Capacity {
		return true
	}
	if c.config.MaxWeight > 0 && c.currentWeight > c.config.MaxWeight {
		return true
	}
	return false
}

// evict removes the least recently used entry. Assumes the lock is held.
func (c *LRUCache[K, V]) evict() {
	backElement := c.ll.Back()
	if backElement != nil {
		c.removeElement(backElement)
	}
}

// removeElement assumes the lock is held.
func (c *LRUCache[K, V]) removeElement(e *list.Element) {
	c.ll.Remove(e)
	ent := e.Value.(*entry[K, V])
	delete(c.cache, ent.key)
	c.currentWeight -= ent.weight
}

// Len returns the current number of entries.
func (c *LRUCache[K, V]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.ll.Len()
}

// Weight returns the current total weight of all entries.
func (c *LRUCache[K, V]) Weight() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.currentWeight
}
