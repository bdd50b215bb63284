package embedding

import (
	"container/list"
	"context"
	"sync"
)

// Cache is an LRU cache of embeddings keyed by text.
type Cache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewCache creates a cache holding up to capacity embeddings.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for key if present.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the embedding for key, evicting the oldest entry at capacity.
func (c *Cache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}
	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.entries[key] = elem
	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// CachedEmbedder wraps an Embedder with an LRU cache. Repeated queries and
// re-ingested chunks skip the provider round trip.
type CachedEmbedder struct {
	inner Embedder
	cache *Cache
}

// NewCachedEmbedder wraps inner with a cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: NewCache(capacity)}
}

// Embed returns the cached embedding or delegates to the inner embedder.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache, in one call.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := e.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := e.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		e.cache.Set(missing[j], vec)
	}
	return out, nil
}

// Dimensions returns the inner embedder's dimension.
func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close closes the inner embedder.
func (e *CachedEmbedder) Close() error {
	return e.inner.Close()
}
