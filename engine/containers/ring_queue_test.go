package containers_test

import (
	"testing"

	"github.com/spaghettifunk/aurora/engine/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFOOrder(t *testing.T) {
	q := containers.NewRingQueue[int](4)

	for i := 1; i <= 4; i++ {
		require.NoError(t, q.Enqueue(i))
	}
	assert.True(t, q.IsFull())
	assert.ErrorIs(t, q.Enqueue(5), containers.ErrQueueFull)

	for i := 1; i <= 4; i++ {
		v, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.True(t, q.IsEmpty())

	_, err := q.Dequeue()
	assert.ErrorIs(t, err, containers.ErrQueueEmpty)
}

func TestRingQueueWrapsAround(t *testing.T) {
	q := containers.NewRingQueue[string](2)

	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))

	v, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	require.NoError(t, q.Enqueue("c"))
	assert.Equal(t, 2, q.Len())

	peeked, err := q.Peek()
	require.NoError(t, err)
	assert.Equal(t, "b", peeked)
	assert.Equal(t, 2, q.Len())
}
