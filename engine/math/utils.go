package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// AlignUp rounds v up to the next multiple of alignment. A zero alignment
// leaves v unchanged.
func AlignUp[T constraints.Unsigned](v, alignment T) T {
	if alignment == 0 {
		return v
	}
	return (v + alignment - 1) / alignment * alignment
}

// AlignDown rounds v down to a multiple of alignment.
func AlignDown[T constraints.Unsigned](v, alignment T) T {
	if alignment == 0 {
		return v
	}
	return v / alignment * alignment
}

// MipLevels is the length of a full mip chain for a width x height image.
func MipLevels(width, height uint32) uint32 {
	largest := width
	if height > largest {
		largest = height
	}
	levels := uint32(1)
	for largest > 1 {
		largest >>= 1
		levels++
	}
	return levels
}
