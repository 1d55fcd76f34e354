package core

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAllocatorRecyclesLowestID(t *testing.T) {
	ids := NewIDAllocator()

	a := ids.Acquire("a")
	b := ids.Acquire("b")
	c := ids.Acquire("c")
	assert.Equal(t, []uint32{0, 1, 2}, []uint32{a, b, c})

	require.NoError(t, ids.Release(c))
	require.NoError(t, ids.Release(a))
	assert.Equal(t, 1, ids.Live())

	assert.Equal(t, uint32(0), ids.Acquire("d"))
	assert.Equal(t, uint32(2), ids.Acquire("e"))
	assert.Equal(t, uint32(3), ids.Acquire("f"))
	assert.Equal(t, "e", ids.Owner(2))
}

func TestIDAllocatorsAreIndependent(t *testing.T) {
	first := NewIDAllocator()
	second := NewIDAllocator()

	first.Acquire(nil)
	first.Acquire(nil)
	assert.Equal(t, uint32(0), second.Acquire(nil))
}

func TestIDAllocatorRejectsBadRelease(t *testing.T) {
	ids := NewIDAllocator()

	err := ids.Release(4)
	require.Error(t, err)
	assert.True(t, errors.IsAssertionFailure(err))

	id := ids.Acquire(nil)
	require.NoError(t, ids.Release(id))
	err = ids.Release(id)
	require.Error(t, err)
	assert.True(t, IsPreconditionViolation(err))
}
