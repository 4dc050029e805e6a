package sim

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Add_DuplicateAndCapacity_ReturnQueueErrors(t *testing.T) {
	// GIVEN a queue with room for two ids
	q := NewQueue("ready", 2)
	require.NoError(t, q.Add(3))

	// WHEN an id is added twice
	err := q.Add(3)

	// THEN the second add fails and the queue is unchanged
	assert.Equal(t, KindQueue, KindOf(err))
	assert.Equal(t, []int{3}, q.IDs())

	// AND adding past the capacity fails too
	require.NoError(t, q.Add(4))
	assert.Equal(t, KindQueue, KindOf(q.Add(5)))
	assert.Equal(t, 2, q.Len())
}

func TestQueue_Unbounded_GrowsPastInitialSize(t *testing.T) {
	q := NewQueue("candidate", 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Add(i))
	}
	assert.Equal(t, 100, q.Len())
}

func TestQueue_Remove_KeepsOrderAndRejectsAbsent(t *testing.T) {
	// GIVEN a queue holding 1 2 3
	q := NewQueue("running", 0)
	for _, id := range []int{1, 2, 3} {
		require.NoError(t, q.Add(id))
	}

	// WHEN the middle id is removed
	require.NoError(t, q.Remove(2))

	// THEN the rest stays compact and ordered
	assert.Equal(t, []int{1, 3}, q.IDs())
	assert.Equal(t, 3, q.At(1))
	assert.Equal(t, NoTask, q.At(2))

	// AND removing an absent id is an error
	assert.Error(t, q.Remove(2))
}

func TestQueue_Sort_TiesKeepLowerIDFirst(t *testing.T) {
	// GIVEN ids added in descending order with two equal keys
	q := NewQueue("ready", 0)
	for _, id := range []int{9, 5, 7, 1} {
		require.NoError(t, q.Add(id))
	}
	keys := map[int]float64{9: 2, 5: 1, 7: 2, 1: 3}

	// WHEN sorted by key
	q.Sort(func(id int) float64 { return keys[id] })

	// THEN keys ascend and 7 precedes 9
	assert.Equal(t, []int{5, 7, 9, 1}, q.IDs())
	assert.Equal(t, 5, q.Front())
}

func TestQueue_Truncate_And_Clear(t *testing.T) {
	q := NewQueue("candidate", 0)
	for _, id := range []int{4, 5, 6} {
		require.NoError(t, q.Add(id))
	}
	q.Truncate(2)
	assert.Equal(t, []int{4, 5}, q.IDs())
	q.Truncate(10)
	assert.Equal(t, 2, q.Len())
	q.Clear()
	assert.Equal(t, NoTask, q.Front())
}

func TestQueue_Reorder_AppliesFunction(t *testing.T) {
	// GIVEN a queue with three ids
	q := NewQueue("ready", 0)
	for _, id := range []int{1, 2, 3} {
		require.NoError(t, q.Add(id))
	}

	// WHEN reordered descending
	q.Reorder(func(ids []int) {
		sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	})

	// THEN the order is reversed
	assert.Equal(t, []int{3, 2, 1}, q.IDs())
	assert.Equal(t, "ready[3 2 1]", q.String())
}

func TestQueue_Reorder_NilFunction_Panics(t *testing.T) {
	q := NewQueue("ready", 0)
	assert.Panics(t, func() { q.Reorder(nil) })
}

func TestQueue_IDs_ReturnsCopy(t *testing.T) {
	q := NewQueue("ready", 0)
	require.NoError(t, q.Add(1))
	ids := q.IDs()
	ids[0] = 42
	assert.Equal(t, 1, q.Front())
}
