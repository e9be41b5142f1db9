package descriptors

import (
	"fmt"

	"github.com/spaghettifunk/aurora/engine/core"
)

// CacheStats counts cache activity since construction.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

type cacheEntry[S comparable] struct {
	set    S
	slot   int
	layout Layout
}

// Cache builds descriptor sets on demand and reuses them across frames by
// binding content. An entry lives as long as its contents keep being requested;
// one full rotation of the frame ring without a touch and it is released back
// to the pool. The caching mechanism is loosely inspired by the system the
// Granite Engine uses
// (http://themaister.net/blog/2019/04/20/a-tour-of-granites-vulkan-backend-part-3/).
//
// The cache is driven by a single thread; NextFrame must be called exactly once
// per frame, after all of that frame's GetOrCreate calls.
type Cache[S comparable] struct {
	pool        Pool[S]
	historySize int
	currentSlot int
	// frameKeys[i] holds the keys whose entries were last touched while slot i
	// was current.
	frameKeys []map[uint64]struct{}
	entries   map[uint64]*cacheEntry[S]
	stats     CacheStats

	// When set, a cache hit whose entry was built under a different layout is
	// reported instead of returned. The key does not include the layout, so
	// without this check such a conflict silently hands out a set built for
	// the wrong layout.
	debugChecks bool

	destroyed bool
}

type CacheOption[S comparable] func(*Cache[S])

// WithDebugChecks enables the layout-conflict assertion on cache hits.
func WithDebugChecks[S comparable]() CacheOption[S] {
	return func(c *Cache[S]) {
		c.debugChecks = true
	}
}

// NewCache creates a descriptor-set cache over pool with a historySize-slot
// frame ring. historySize must equal the engine's frames-in-flight count.
func NewCache[S comparable](pool Pool[S], historySize int, options ...CacheOption[S]) (*Cache[S], error) {
	if historySize <= 0 {
		return nil, fmt.Errorf("descriptor cache history size must be positive, got %d", historySize)
	}

	frameKeys := make([]map[uint64]struct{}, historySize)
	for i := range frameKeys {
		frameKeys[i] = make(map[uint64]struct{})
	}

	c := &Cache[S]{
		pool:        pool,
		historySize: historySize,
		frameKeys:   frameKeys,
		entries:     make(map[uint64]*cacheEntry[S]),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// GetOrCreate returns the descriptor set for the given binding contents,
// building and writing a new one on first sight. The returned set stays valid
// as long as the same contents are requested at least once every historySize
// frames.
//
// The layout is not part of the cache key: callers must never present the same
// binding contents under two different layouts. With debug checks enabled that
// misuse returns core.ErrLayoutConflict instead of a set.
func (c *Cache[S]) GetOrCreate(layout Layout, bindings []Binding) (S, error) {
	var zero S
	key := HashBindings(bindings)

	if entry, ok := c.entries[key]; ok {
		if c.debugChecks && entry.layout != layout {
			err := fmt.Errorf("%w: key %x", core.ErrLayoutConflict, key)
			core.LogError(err.Error())
			return zero, err
		}
		c.refresh(key, entry)
		c.stats.Hits++
		return entry.set, nil
	}

	set, err := c.pool.Allocate(layout)
	if err != nil {
		return zero, fmt.Errorf("failed to allocate descriptor set: %w", err)
	}

	if err := c.pool.WriteBindings(set, bindings); err != nil {
		// The set never becomes visible; hand it straight back so a failed
		// write cannot leak a half-initialized entry.
		if rerr := c.pool.Release(set); rerr != nil {
			core.LogError("failed to release descriptor set after write failure: %s", rerr.Error())
		}
		return zero, fmt.Errorf("failed to write descriptor bindings: %w", err)
	}

	c.entries[key] = &cacheEntry[S]{
		set:    set,
		slot:   c.currentSlot,
		layout: layout,
	}
	c.frameKeys[c.currentSlot][key] = struct{}{}
	c.stats.Misses++

	return set, nil
}

// refresh moves an entry's key into the current slot so the upcoming rotations
// keep it alive.
func (c *Cache[S]) refresh(key uint64, entry *cacheEntry[S]) {
	if entry.slot == c.currentSlot {
		return
	}
	delete(c.frameKeys[entry.slot], key)
	c.frameKeys[c.currentSlot][key] = struct{}{}
	entry.slot = c.currentSlot
}

// NextFrame rotates the ring. Every entry still registered in the slot that
// becomes current was last touched exactly historySize frames ago; the GPU can
// no longer be reading it, so it is released to the pool.
func (c *Cache[S]) NextFrame() {
	c.currentSlot = (c.currentSlot + 1) % c.historySize

	stale := c.frameKeys[c.currentSlot]
	for key := range stale {
		entry, ok := c.entries[key]
		if !ok {
			continue
		}
		delete(c.entries, key)
		if err := c.pool.Release(entry.set); err != nil {
			core.LogError("failed to release evicted descriptor set: %s", err.Error())
		}
		c.stats.Evictions++
	}
	// Reuse the map for this frame's activity.
	clear(stale)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[S]) Stats() CacheStats {
	return c.stats
}

// Len returns the number of live cached sets.
func (c *Cache[S]) Len() int {
	return len(c.entries)
}

// Destroy releases the pool. Individual entries need no per-entry teardown
// beyond what pool destruction implies. Safe to call more than once.
func (c *Cache[S]) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true

	if err := c.pool.Destroy(); err != nil {
		core.LogError("failed to destroy descriptor pool: %s", err.Error())
	}

	for i := range c.frameKeys {
		c.frameKeys[i] = make(map[uint64]struct{})
	}
	c.entries = make(map[uint64]*cacheEntry[S])
}
