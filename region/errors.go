package region

import "errors"

var (
	// ErrExhausted indicates the reservation cannot satisfy a grow request.
	ErrExhausted = errors.New("region: address space exhausted")

	// ErrBadGrow indicates a negative grow request.
	ErrBadGrow = errors.New("region: negative grow")

	// ErrTooLarge indicates a reservation beyond what 32-bit heap offsets address.
	ErrTooLarge = errors.New("region: reservation too large")

	// ErrClosed indicates use of a region after Close.
	ErrClosed = errors.New("region: closed")
)
