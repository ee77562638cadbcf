package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistogram_Add(t *testing.T) {
	tests := []struct {
		name   string
		ms     float64
		bucket int
	}{
		{"zero", 0, 0},
		{"inside first", 249.9, 0},
		{"bucket edge", 250, 1},
		{"middle", 1234, 4},
		{"last bucket", 9999, 39},
		{"range end clamps", 10000, 39},
		{"overflow clamps", 60000, 39},
		{"negative clamps", -5, 39},
		{"nan clamps", math.NaN(), 39},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistogram(DownloadBucketMs, DownloadBuckets)
			h.Add(tt.ms)
			assert.Equal(t, 1, h.Counts[tt.bucket])
			assert.Equal(t, 1, h.Total())
		})
	}
}

func TestHistogram_Range(t *testing.T) {
	h := NewHistogram(TuneBucketMs, TuneBuckets)
	lo, hi := h.Range(3)
	assert.Equal(t, 1500, lo)
	assert.Equal(t, 2000, hi)
	assert.Equal(t, "19500..20000", h.RangeLabel(39))
}
