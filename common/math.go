package common

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// MaxMipLevels is the largest number of mip levels any pyramid texture is created with.
const MaxMipLevels = 10

// MipExtent returns the size of a single dimension at the given mip level, never less than 1.
//
// Parameters:
//   - size: the size of the dimension at mip 0
//   - mip: the mip level
//
// Returns:
//   - T: max(size >> mip, 1)
func MipExtent[T constraints.Integer](size T, mip int) T {
	return max(size>>mip, 1)
}

// NumMips1D counts how many times a dimension can be halved while it is larger than 1.
//
// Parameters:
//   - size: the size of the dimension
//
// Returns:
//   - int: the number of halvings
func NumMips1D[T constraints.Integer](size T) int {
	n := 0
	for size > 1 {
		size >>= 1
		n++
	}
	return n
}

// NumMips2D returns the larger of the per-axis halving counts of an extent.
//
// Parameters:
//   - size: the 2D extent
//
// Returns:
//   - int: the number of mip levels that can be generated below mip 0
func NumMips2D(size IntPoint) int {
	return max(NumMips1D(size.X), NumMips1D(size.Y))
}

// Clamp restricts v to the closed interval [lo, hi].
//
// Parameters:
//   - v: the value to clamp
//   - lo: lower bound
//   - hi: upper bound
//
// Returns:
//   - T: the clamped value
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// DivCeil divides a by b rounding up. b must be positive.
func DivCeil[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}
