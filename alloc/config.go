package alloc

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/segalloc/internal/format"
)

// Config tunes an Allocator. The zero value of each field selects its default.
type Config struct {
	// ChunkSize is the minimum number of bytes requested from the region when
	// no free block fits. Must be a multiple of 8 and at least 16.
	ChunkSize int

	// CheckEveryOp runs Check after every mutating call and returns any
	// violation as the call's error. Alloc, Calloc and Realloc still return
	// the block they placed alongside the violation. Slow; meant for tests and debugging.
	CheckEveryOp bool

	// Logger receives debug records. Nil selects the process logger.
	Logger *slog.Logger
}

// DefaultConfig is used when New is given a nil config.
var DefaultConfig = Config{
	ChunkSize: format.DefaultChunkSize,
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	if c.ChunkSize < format.MinBlockSize {
		return fmt.Errorf("%w: chunk size %d below minimum block size %d",
			ErrConfig, c.ChunkSize, format.MinBlockSize)
	}
	if !format.IsAligned8(c.ChunkSize) {
		return fmt.Errorf("%w: chunk size %d not a multiple of %d",
			ErrConfig, c.ChunkSize, format.BlockAlignment)
	}
	if int64(c.ChunkSize) > int64(format.MaxBlockSize) {
		return fmt.Errorf("%w: chunk size %d too large", ErrConfig, c.ChunkSize)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultConfig.ChunkSize
	}
	return c
}
