package vulkan

import "github.com/spaghettifunk/voxel/engine/containers"

type deferredDeletion struct {
	retireFrame uint64
	destroy     func()
}

// DeletionQueue holds destroy callbacks until the frame that may still
// reference the resource has retired. Entries retire in push order.
type DeletionQueue struct {
	queue *containers.RingQueue[deferredDeletion]
}

func NewDeletionQueue(capacity int) *DeletionQueue {
	return &DeletionQueue{queue: containers.NewRingQueue[deferredDeletion](capacity)}
}

// Push schedules destroy to run once retireFrame has been reached. It returns
// containers.ErrQueueFull when the queue has no room.
func (q *DeletionQueue) Push(retireFrame uint64, destroy func()) error {
	return q.queue.Enqueue(deferredDeletion{retireFrame: retireFrame, destroy: destroy})
}

// Flush runs every callback whose retire frame is at or before currentFrame.
func (q *DeletionQueue) Flush(currentFrame uint64) int {
	n := 0
	for {
		next, err := q.queue.Peek()
		if err != nil || next.retireFrame > currentFrame {
			return n
		}
		_, _ = q.queue.Dequeue()
		next.destroy()
		n++
	}
}

// FlushAll runs every pending callback. The device must be idle.
func (q *DeletionQueue) FlushAll() int {
	n := 0
	for !q.queue.IsEmpty() {
		next, _ := q.queue.Dequeue()
		next.destroy()
		n++
	}
	return n
}

func (q *DeletionQueue) Len() int {
	return q.queue.Len()
}
