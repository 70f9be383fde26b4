package format

// IsAligned8 reports whether n is a multiple of 8.
//
//	IsAligned8(16) = true
//	IsAligned8(12) = false
func IsAligned8(n int) bool {
	return n&BlockAlignmentMask == 0
}
