package embedding

import (
	"context"
	"fmt"

	"mnemos/pkg/util"
)

// Cached wraps another Embedding with an LRU cache keyed by the input text.
// Recall queries repeat often within a session, so a small cache saves most
// of the provider round trips.
type Cached struct {
	inner Embedding
	cache *util.LRUCache[string, []float32]
}

// NewCached creates a caching wrapper holding up to size vectors.
func NewCached(inner Embedding, size int) (*Cached, error) {
	cache, err := util.NewWithConfig(util.CacheConfig[string, []float32]{Capacity: size})
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Put(text, vec, 1)
	return vec, nil
}

// EmbedBatch consults the cache per text and only sends the misses to the
// underlying provider.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec, ok := c.cache.Get(text); ok {
			results[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	fetched, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missTexts) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(fetched), len(missTexts))
	}
	for j, vec := range fetched {
		results[missIdx[j]] = vec
		c.cache.Put(missTexts[j], vec, 1)
	}
	return results, nil
}
