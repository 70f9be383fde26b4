package alloc

import "testing"

func TestSelectBucket(t *testing.T) {
	tests := []struct {
		size uint32
		want int
	}{
		{16, 4},
		{24, 4},
		{31, 4},
		{32, 5},
		{63, 5},
		{64, 6},
		{512, 9},
		{1023, 9},
		{2048, 11},
		{4095, 11},
		{4096, 12},
		{1 << 20, 12},
		{0xFFFFFFF8, 12},
	}
	for _, tt := range tests {
		if got := selectBucket(tt.size); got != tt.want {
			t.Errorf("selectBucket(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

// TestBucketBounds checks every bucket's advertised range maps back to it.
func TestBucketBounds(t *testing.T) {
	for b := 4; b <= lastBucket; b++ {
		if got := selectBucket(bucketMin(b)); got != b {
			t.Errorf("bucketMin(%d)=%d selects %d", b, bucketMin(b), got)
		}
		if hi := bucketMax(b); hi != 0 {
			if got := selectBucket(hi); got != b {
				t.Errorf("bucketMax(%d)=%d selects %d", b, hi, got)
			}
			if got := selectBucket(hi + 1); got != b+1 {
				t.Errorf("bucketMax(%d)+1 selects %d", b, got)
			}
		}
	}
	if bucketMax(lastBucket) != 0 {
		t.Errorf("last bucket should be unbounded")
	}
}
