package testutil

import (
	"math"
	"time"

	"github.com/google/go-cmp/cmp"
)

var (
	alwaysEqual       = cmp.Comparer(func(_, _ interface{}) bool { return true })
	defaultCmpOptions = []cmp.Option{
		// NaNs compare equal
		cmp.FilterValues(func(x, y float64) bool {
			return math.IsNaN(x) && math.IsNaN(y)
		}, alwaysEqual),
		cmp.FilterValues(func(x, y float32) bool {
			return math.IsNaN(float64(x)) && math.IsNaN(float64(y))
		}, alwaysEqual),
	}
)

func Diff(a, b interface{}, opts ...cmp.Option) string {
	opts = append(opts, defaultCmpOptions...)
	return cmp.Diff(a, b, opts...)
}

// BusyWait spins on the calling goroutine for d, keeping it on CPU so both
// wall-clock and CPU-time sources make progress.
func BusyWait(d time.Duration) uint64 {
	var n uint64
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		n++
	}
	return n
}

// Eventually polls cond every few milliseconds until it returns true or the
// timeout expires. It reports whether cond became true.
func Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
