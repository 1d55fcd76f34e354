package core

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// IDAllocator hands out small integer ids and recycles released ones.
// Each scene owns its own allocator; there is no process-wide counter.
type IDAllocator struct {
	mu     sync.Mutex
	owners []interface{}
	free   []uint32
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Acquire returns the lowest released id, or a fresh one.
func (a *IDAllocator) Acquire(owner interface{}) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if owner == nil {
		owner = struct{}{}
	}
	if n := len(a.free); n > 0 {
		lowest := 0
		for i := 1; i < n; i++ {
			if a.free[i] < a.free[lowest] {
				lowest = i
			}
		}
		id := a.free[lowest]
		a.free[lowest] = a.free[n-1]
		a.free = a.free[:n-1]
		a.owners[id] = owner
		return id
	}

	a.owners = append(a.owners, owner)
	return uint32(len(a.owners) - 1)
}

func (a *IDAllocator) Release(id uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if int(id) >= len(a.owners) {
		return errors.AssertionFailedf("release of id %d out of range (max=%d)", id, len(a.owners))
	}
	if a.owners[id] == nil {
		return errors.AssertionFailedf("release of id %d which is not in use", id)
	}
	a.owners[id] = nil
	a.free = append(a.free, id)
	return nil
}

// Owner returns whatever was registered with id, or nil.
func (a *IDAllocator) Owner(id uint32) interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	if int(id) >= len(a.owners) {
		return nil
	}
	return a.owners[id]
}

// Live is the number of ids currently in use.
func (a *IDAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.owners) - len(a.free)
}
