/*
Package bitint holds the power-of-two helpers used to size FFT windows.

Every detector and spectrum in the tuner runs on a window whose length is a
power of two, so configuration and channel reconfiguration check sizes here
before any buffer is allocated.

	size := bitint.NextPowerOfTwo(1000) // 1024
	ok := bitint.IsPowerOfTwo(size)      // true
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Subtracting one
// first keeps exact powers of two unchanged (8 stays 8 instead of doubling).
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of two
// has one bit set, so clearing its lowest set bit with n&(n-1) gives zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the exponent of a power of two, or -1 if n is not one.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}

// PreviousPowerOfTwo returns the largest power of 2 <= n, or 0 for n < 1.
// It is used to clamp an FFT size to what a raw buffer can hold.
func PreviousPowerOfTwo(n int) int {
	if n < 1 {
		return 0
	}
	return 1 << (bits.Len(uint(n)) - 1)
}
