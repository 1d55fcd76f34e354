package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, uint32(10), Clamp(uint32(3), 10, 20))
	assert.Equal(t, uint32(20), Clamp(uint32(30), 10, 20))
	assert.Equal(t, 1.5, Clamp(1.5, 1.0, 2.0))
}

func TestAlign(t *testing.T) {
	assert.Equal(t, uint64(256), AlignUp(uint64(200), 256))
	assert.Equal(t, uint64(256), AlignUp(uint64(256), 256))
	assert.Equal(t, uint64(7), AlignUp(uint64(7), 0))
	assert.Equal(t, uint64(192), AlignDown(uint64(200), 64))
}

func TestMipLevels(t *testing.T) {
	assert.Equal(t, uint32(1), MipLevels(1, 1))
	assert.Equal(t, uint32(10), MipLevels(512, 256))
	assert.Equal(t, uint32(10), MipLevels(300, 600))
	assert.Equal(t, uint32(11), MipLevels(1024, 1))
}
