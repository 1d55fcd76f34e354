package vulkan

import (
	"sync"
	"testing"

	"github.com/spaghettifunk/voxel/engine/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeletionQueueRetiresInOrder(t *testing.T) {
	q := NewDeletionQueue(4)
	var order []int

	require.NoError(t, q.Push(2, func() { order = append(order, 1) }))
	require.NoError(t, q.Push(3, func() { order = append(order, 2) }))
	require.NoError(t, q.Push(3, func() { order = append(order, 3) }))

	assert.Equal(t, 0, q.Flush(1))
	assert.Equal(t, 1, q.Flush(2))
	assert.Equal(t, []int{1}, order)
	assert.Equal(t, 2, q.Flush(10))
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Zero(t, q.Len())
}

func TestDeletionQueueFull(t *testing.T) {
	q := NewDeletionQueue(1)
	require.NoError(t, q.Push(1, func() {}))
	assert.ErrorIs(t, q.Push(1, func() {}), containers.ErrQueueFull)

	assert.Equal(t, 0, q.Flush(0))
	assert.Equal(t, 1, q.FlushAll(), "FlushAll ignores retire frames")
	assert.Zero(t, q.Len())
}

func TestLockPoolSerializesGroup(t *testing.T) {
	pool := NewVulkanLockPool()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.SafeCall(DescriptorManagement, func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)

	// Different groups and queues are independent locks, so nesting is legal.
	err := pool.SafeCall(PipelineManagement, func() error {
		return pool.SafeQueueCall(0, func() error {
			return pool.SafeCall(CommandPoolManagement, func() error { return nil })
		})
	})
	assert.NoError(t, err)
}
