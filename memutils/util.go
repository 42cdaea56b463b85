package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

// Number is the set of types alignment math can be performed on
type Number interface {
	~int | ~uint
}

// CheckPow2 returns an error wrapping PowerOfTwoError if the provided number
// is not a power of two. name identifies the offending value in the error.
func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the nearest multiple of alignment, which must be
// a power of two
func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

// AlignDown rounds value down to the nearest multiple of alignment, which
// must be a power of two
func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}
