package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// OutOfDeviceMemoryError is returned when the backing device cannot satisfy a block allocation.
// Failed allocations are not retried internally- they propagate to the caller.
var OutOfDeviceMemoryError error = errors.New("the device could not allocate backing memory for the request")
