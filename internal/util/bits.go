package util

import "math/bits"

// Slice is the radix's nibble width in bits. 4 strikes a good balance
// between trie depth and per-node fan-out (16 children); see
// SliceIndex/MSSBIndex below.
const Slice = 4

// Nib masks off a single nibble's worth of bits.
const Nib = (1 << Slice) - 1

// SliceIndex returns the child index selected by byte b at bit offset
// bit, i.e. which of the 16 nibble values b holds at that offset.
func SliceIndex(b byte, bit uint8) int {
	return int((b >> bit) & Nib)
}

// MSSBIndex returns the 0-based index of the most significant set bit
// of a nonzero input. The caller masks the result down to a slice
// boundary (0 or 4 within a byte) to find which nibble two diverging
// bytes first disagree on.
func MSSBIndex(x uint32) uint8 {
	return uint8(31 - bits.LeadingZeros32(x))
}
