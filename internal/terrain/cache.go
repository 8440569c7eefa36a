package terrain

import "container/heap"

// Cache is a bounded key/value map with least-recently-used eviction.
//
// Lookups deliberately do not refresh recency: the render path reads the
// cache every frame, but only keys selected for generation should count as
// recently used. Callers refresh recency explicitly through
// UpdateLastAccessed (or implicitly by inserting).
//
// Cache is not safe for concurrent use; callers guard it with their own
// reader/writer lock.
type Cache[K comparable, V any] struct {
	entries map[K]V
	recency recencyHeap[K]
	maxSize int
	tick    uint64
}

// NewCache creates a cache holding at most maxSize entries.
func NewCache[K comparable, V any](maxSize int) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]V),
		recency: newRecencyHeap[K](),
		maxSize: maxSize,
	}
}

// Get returns the value for key without touching its recency.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.entries[key]
	return v, ok
}

// Len returns the current entry count.
func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

// MaxSize returns the configured capacity.
func (c *Cache[K, V]) MaxSize() int {
	return c.maxSize
}

// Insert stores key with the current recency stamp, then evicts the single
// least-recently-used entry if the cache exceeds its capacity. At most one
// entry is evicted per call; the evicted value is returned so the caller
// can release resources it owns.
func (c *Cache[K, V]) Insert(key K, value V) (evicted V, ok bool) {
	c.tick++
	return c.InsertWithPriority(key, value, c.tick)
}

// InsertWithPriority stores key with an explicit recency stamp (larger is
// more recent) and applies the same single-eviction capacity rule.
func (c *Cache[K, V]) InsertWithPriority(key K, value V, priority uint64) (evicted V, ok bool) {
	if priority > c.tick {
		c.tick = priority
	}
	c.entries[key] = value
	c.recency.touch(key, priority)
	if len(c.entries) > c.maxSize {
		oldest := c.recency.popOldest()
		evicted, ok = c.entries[oldest], true
		delete(c.entries, oldest)
	}
	return evicted, ok
}

// UpdateLastAccessed refreshes key's recency if it is present.
func (c *Cache[K, V]) UpdateLastAccessed(key K) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	c.tick++
	c.recency.touch(key, c.tick)
}

// Clear drops every entry unconditionally.
func (c *Cache[K, V]) Clear() {
	c.entries = make(map[K]V)
	c.recency = newRecencyHeap[K]()
}

// Each calls fn for every entry, in no particular order.
func (c *Cache[K, V]) Each(fn func(key K, value V)) {
	for k, v := range c.entries {
		fn(k, v)
	}
}

// Keys returns the current key set, in no particular order.
func (c *Cache[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

type recencyEntry[K comparable] struct {
	key   K
	stamp uint64
}

// recencyHeap is an indexed min-heap over recency stamps: the root is
// always the least recently used key.
type recencyHeap[K comparable] struct {
	items []recencyEntry[K]
	index map[K]int
}

func newRecencyHeap[K comparable]() recencyHeap[K] {
	return recencyHeap[K]{index: make(map[K]int)}
}

// touch inserts key or updates its stamp, restoring heap order.
func (h *recencyHeap[K]) touch(key K, stamp uint64) {
	if i, ok := h.index[key]; ok {
		h.items[i].stamp = stamp
		heap.Fix(h, i)
		return
	}
	heap.Push(h, recencyEntry[K]{key: key, stamp: stamp})
}

// popOldest removes and returns the key with the smallest stamp.
func (h *recencyHeap[K]) popOldest() K {
	e := heap.Pop(h).(recencyEntry[K])
	return e.key
}

func (h *recencyHeap[K]) Len() int { return len(h.items) }

func (h *recencyHeap[K]) Less(i, j int) bool { return h.items[i].stamp < h.items[j].stamp }

func (h *recencyHeap[K]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.index[h.items[i].key] = i
	h.index[h.items[j].key] = j
}

func (h *recencyHeap[K]) Push(x any) {
	e := x.(recencyEntry[K])
	h.index[e.key] = len(h.items)
	h.items = append(h.items, e)
}

func (h *recencyHeap[K]) Pop() any {
	old := h.items
	n := len(old)
	e := old[n-1]
	h.items = old[:n-1]
	delete(h.index, e.key)
	return e
}
