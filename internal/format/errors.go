package format

import "errors"

// ErrMisaligned indicates a block size that is not a multiple of 8.
var ErrMisaligned = errors.New("format: misaligned size")
