package descriptors_test

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/descriptors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLayout uint64

func (l fakeLayout) LayoutID() uint64 { return uint64(l) }

type fakeResource uint64

func (r fakeResource) ResourceID() uint64 { return uint64(r) }

// fakePool hands out sequential integer handles and counts every call.
type fakePool struct {
	capacity  int
	nextSet   int
	live      map[int]bool
	writes    int
	releases  int
	destroyed int
	failWrite bool
}

func newFakePool(capacity int) *fakePool {
	return &fakePool{capacity: capacity, live: make(map[int]bool)}
}

func (p *fakePool) Allocate(layout descriptors.Layout) (int, error) {
	if p.capacity > 0 && len(p.live) >= p.capacity {
		return 0, core.ErrPoolExhausted
	}
	p.nextSet++
	p.live[p.nextSet] = true
	return p.nextSet, nil
}

func (p *fakePool) WriteBindings(set int, bindings []descriptors.Binding) error {
	if p.failWrite {
		return errors.New("write failed")
	}
	p.writes++
	return nil
}

func (p *fakePool) Release(set int) error {
	delete(p.live, set)
	p.releases++
	return nil
}

func (p *fakePool) Destroy() error {
	p.destroyed++
	return nil
}

func uniformSet(buffer uint64) []descriptors.Binding {
	return []descriptors.Binding{
		descriptors.UniformBuffer(fakeResource(buffer), 0, 256),
	}
}

func TestGetOrCreateReturnsSameSetWithinFrame(t *testing.T) {
	pool := newFakePool(0)
	cache, err := descriptors.NewCache[int](pool, 3)
	require.NoError(t, err)

	layout := fakeLayout(1)
	bindings := uniformSet(42)

	first, err := cache.GetOrCreate(layout, bindings)
	require.NoError(t, err)

	second, err := cache.GetOrCreate(layout, bindings)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, pool.writes, "bindings must be written exactly once")

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestEntrySurvivesWhileTouchedEveryFrame(t *testing.T) {
	pool := newFakePool(0)
	cache, err := descriptors.NewCache[int](pool, 3)
	require.NoError(t, err)

	layout := fakeLayout(1)
	bindings := uniformSet(7)

	first, err := cache.GetOrCreate(layout, bindings)
	require.NoError(t, err)

	for frame := 0; frame < 10; frame++ {
		cache.NextFrame()
		set, err := cache.GetOrCreate(layout, bindings)
		require.NoError(t, err)
		assert.Equal(t, first, set, "handle must stay stable while touched every frame")
	}
	assert.Equal(t, 0, pool.releases)
	assert.Equal(t, 1, pool.writes)
}

func TestEntryEvictedAfterFullRotation(t *testing.T) {
	const historySize = 3

	pool := newFakePool(0)
	cache, err := descriptors.NewCache[int](pool, historySize)
	require.NoError(t, err)

	_, err = cache.GetOrCreate(fakeLayout(1), uniformSet(9))
	require.NoError(t, err)

	for i := 0; i < historySize-1; i++ {
		cache.NextFrame()
		assert.Equal(t, 0, pool.releases, "no eviction before the ring rotates back")
	}

	cache.NextFrame()
	assert.Equal(t, 1, pool.releases, "entry must be released after a full rotation")
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, uint64(1), cache.Stats().Evictions)
}

func TestRefreshedEntryEvictedThreeFramesAfterLastTouch(t *testing.T) {
	pool := newFakePool(0)
	cache, err := descriptors.NewCache[int](pool, 3)
	require.NoError(t, err)

	layout := fakeLayout(1)
	bindings := uniformSet(11)

	// Frame 0: build.
	first, err := cache.GetOrCreate(layout, bindings)
	require.NoError(t, err)
	cache.NextFrame()

	// Frame 1: refresh.
	set, err := cache.GetOrCreate(layout, bindings)
	require.NoError(t, err)
	require.Equal(t, first, set)
	cache.NextFrame()

	// Frames 2 and 3: untouched, still alive.
	cache.NextFrame()
	assert.Equal(t, 0, pool.releases)

	// Third rotation after the last touch lands back on the entry's slot.
	cache.NextFrame()
	assert.Equal(t, 1, pool.releases)
	assert.Equal(t, 0, cache.Len())

	// A fresh request rebuilds.
	rebuilt, err := cache.GetOrCreate(layout, bindings)
	require.NoError(t, err)
	assert.NotEqual(t, first, rebuilt)
	assert.Equal(t, 2, pool.writes)
}

func TestDistinctBindingSetsGetDistinctSets(t *testing.T) {
	pool := newFakePool(0)
	cache, err := descriptors.NewCache[int](pool, 3)
	require.NoError(t, err)

	layout := fakeLayout(1)

	a, err := cache.GetOrCreate(layout, uniformSet(1))
	require.NoError(t, err)
	b, err := cache.GetOrCreate(layout, uniformSet(2))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, cache.Len())
}

func TestPoolExhaustionIsPropagated(t *testing.T) {
	pool := newFakePool(1)
	cache, err := descriptors.NewCache[int](pool, 3)
	require.NoError(t, err)

	_, err = cache.GetOrCreate(fakeLayout(1), uniformSet(1))
	require.NoError(t, err)

	_, err = cache.GetOrCreate(fakeLayout(1), uniformSet(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPoolExhausted)

	// The cached set is still served after the failure.
	set, err := cache.GetOrCreate(fakeLayout(1), uniformSet(1))
	require.NoError(t, err)
	assert.Equal(t, 1, set)
}

func TestFailedWriteDoesNotLeakSet(t *testing.T) {
	pool := newFakePool(0)
	pool.failWrite = true
	cache, err := descriptors.NewCache[int](pool, 3)
	require.NoError(t, err)

	_, err = cache.GetOrCreate(fakeLayout(1), uniformSet(1))
	require.Error(t, err)
	assert.Equal(t, 1, pool.releases, "allocated set must be returned on write failure")
	assert.Equal(t, 0, cache.Len())
}

func TestLayoutConflictDetectedWithDebugChecks(t *testing.T) {
	pool := newFakePool(0)
	cache, err := descriptors.NewCache[int](pool, 3, descriptors.WithDebugChecks[int]())
	require.NoError(t, err)

	bindings := uniformSet(3)

	_, err = cache.GetOrCreate(fakeLayout(1), bindings)
	require.NoError(t, err)

	_, err = cache.GetOrCreate(fakeLayout(2), bindings)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrLayoutConflict)
}

func TestDestroyIsIdempotent(t *testing.T) {
	pool := newFakePool(0)
	cache, err := descriptors.NewCache[int](pool, 3)
	require.NoError(t, err)

	_, err = cache.GetOrCreate(fakeLayout(1), uniformSet(1))
	require.NoError(t, err)

	cache.Destroy()
	cache.Destroy()
	assert.Equal(t, 1, pool.destroyed)
}

func TestNewCacheRejectsNonPositiveHistory(t *testing.T) {
	_, err := descriptors.NewCache[int](newFakePool(0), 0)
	require.Error(t, err)
}
