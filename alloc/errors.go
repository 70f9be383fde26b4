package alloc

import "errors"

var (
	// ErrNoSpace indicates that no free block fits and the heap could not grow.
	ErrNoSpace = errors.New("alloc: out of memory")

	// ErrTooLarge indicates a request whose adjusted size overflows a header word.
	ErrTooLarge = errors.New("alloc: request too large")

	// ErrBadSize indicates a negative request size.
	ErrBadSize = errors.New("alloc: negative size")

	// ErrBadPtr indicates a pointer outside the heap or not 8-byte aligned.
	ErrBadPtr = errors.New("alloc: bad pointer")

	// ErrInit indicates the heap could not be initialized or attached.
	ErrInit = errors.New("alloc: init failed")

	// ErrConfig indicates an invalid allocator configuration.
	ErrConfig = errors.New("alloc: invalid config")

	// ErrRegion indicates the growth primitive broke its contract (a grant
	// that does not start at the previous break).
	ErrRegion = errors.New("alloc: region grant not contiguous")

	// ErrCorrupt is matched by every *Violation returned from Check.
	ErrCorrupt = errors.New("alloc: heap corrupt")
)
