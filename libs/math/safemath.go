package math

import (
	"errors"
	"math"
)

// MaxInt64 is the largest value representable by an int64.
const MaxInt64 = math.MaxInt64

var ErrOverflowInt64 = errors.New("int64 overflow")
var ErrOverflowUint64 = errors.New("uint64 overflow")

// SafeAdd adds two int64 numbers. If there is an overflow, the function will
// return -1, true.
func SafeAdd(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return -1, true
	} else if b < 0 && a < math.MinInt64-b {
		return -1, true
	}
	return a + b, false
}

// SafeAddClip adds two int64 numbers, clipping the result to the int64 range.
func SafeAddClip(a, b int64) int64 {
	c, overflow := SafeAdd(a, b)
	if overflow {
		if b < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return c
}

// SafeMul multiplies two int64 numbers. It returns true if the result
// overflows.
func SafeMul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}

	absOfB := b
	if b < 0 {
		absOfB = -b
	}

	absOfA := a
	if a < 0 {
		absOfA = -a
	}

	if absOfA < 0 || absOfB < 0 {
		return -1, true
	}

	if absOfA > math.MaxInt64/absOfB {
		return -1, true
	}

	return a * b, false
}

// SafeAddUint64 adds two uint64 numbers and reports ErrOverflowUint64 when
// the sum wraps.
func SafeAddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflowUint64
	}
	return a + b, nil
}
