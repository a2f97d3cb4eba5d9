package safe

import (
	"errors"
	"math/bits"
)

// ErrOverflow is returned when a checked operation leaves the uint64 range.
var ErrOverflow = errors.New("uint64 overflow")

// Add returns a+b, or ErrOverflow if the sum does not fit.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, or ErrOverflow if b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}

// MustAdd is Add for paths where the caller already proved the bound. Panics on overflow.
func MustAdd(a, b uint64) uint64 {
	sum, err := Add(a, b)
	if err != nil {
		panic("SAFE_ADD_OVERFLOW")
	}
	return sum
}

// MustSub is Sub for paths where the caller already proved the bound. Panics on underflow.
func MustSub(a, b uint64) uint64 {
	diff, err := Sub(a, b)
	if err != nil {
		panic("SAFE_SUB_UNDERFLOW")
	}
	return diff
}
