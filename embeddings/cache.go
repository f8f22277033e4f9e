package embeddings

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

const defaultCacheCapacity = 1024

// Cache memoizes embeddings in front of a delegate embedder. Chat sessions
// re-embed the same question and re-indexed corpora repeat chunk text; both
// reach the delegate only once.
type Cache struct {
	delegate Embedder
	capacity int

	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
}

type cacheEntry struct {
	key string
	vec []float32
}

// NewCache wraps delegate with an LRU of the given capacity.
func NewCache(delegate Embedder, capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	return &Cache{
		delegate: delegate,
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// EmbedQuery embeds a query, serving repeats from the cache.
func (c *Cache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.lookup(text); ok {
		return vec, nil
	}
	vec, err := c.delegate.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(text, vec)
	return vec, nil
}

// EmbedDocuments embeds the given texts, sending only cache misses to the
// delegate. Duplicate texts within one batch are embedded once.
func (c *Cache) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	out := make([][]float32, len(docs))
	var missing []string
	slots := make(map[string][]int)
	for i, text := range docs {
		if vec, ok := c.lookup(text); ok {
			out[i] = vec
			continue
		}
		if _, ok := slots[text]; !ok {
			missing = append(missing, text)
		}
		slots[text] = append(slots[text], i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := c.delegate.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embeddings: delegate returned %d vectors for %d inputs", len(vecs), len(missing))
	}
	for i, vec := range vecs {
		text := missing[i]
		c.store(text, vec)
		for _, slot := range slots[text] {
			out[slot] = vec
		}
	}
	return out, nil
}

func (c *Cache) lookup(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(elem)
	return cloneVec(elem.Value.(*cacheEntry).vec), true
}

func (c *Cache) store(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		elem.Value.(*cacheEntry).vec = cloneVec(vec)
		return
	}
	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, vec: cloneVec(vec)})
	for c.ll.Len() > c.capacity {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.ll.Remove(back)
		delete(c.items, back.Value.(*cacheEntry).key)
	}
}

func cloneVec(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
