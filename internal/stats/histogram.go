package stats

import (
	"math"
	"strconv"
)

// Histogram counts durations in fixed-width buckets starting at 0.
// Values past the last bucket, negative or NaN, land in the last bucket.
type Histogram struct {
	BucketMs int   `json:"bucketMs"`
	Counts   []int `json:"counts"`
}

// NewHistogram creates a histogram of n buckets of bucketMs each.
func NewHistogram(bucketMs, n int) *Histogram {
	return &Histogram{BucketMs: bucketMs, Counts: make([]int, n)}
}

// Add counts one duration.
func (h *Histogram) Add(ms float64) {
	last := len(h.Counts) - 1
	i := last
	if ms >= 0 && !math.IsNaN(ms) {
		if b := ms / float64(h.BucketMs); b < float64(last) {
			i = int(b)
		}
	}
	h.Counts[i]++
}

// Total is the sum of all buckets.
func (h *Histogram) Total() int {
	n := 0
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// Range returns the bounds of bucket i in ms.
func (h *Histogram) Range(i int) (lo, hi int) {
	return i * h.BucketMs, (i + 1) * h.BucketMs
}

// RangeLabel renders bucket i as "lo..hi".
func (h *Histogram) RangeLabel(i int) string {
	lo, hi := h.Range(i)
	return strconv.Itoa(lo) + ".." + strconv.Itoa(hi)
}
