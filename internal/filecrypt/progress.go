package filecrypt

import "math"

// tracker turns byte counts into a non-decreasing fraction. Values below 1
// are reported per chunk; 1 is reserved for finish.
type tracker struct {
	fn    ProgressFunc
	total int64
	done  int64
	last  float64
}

func newTracker(total int64, fn ProgressFunc) *tracker {
	return &tracker{fn: fn, total: total}
}

func (t *tracker) advance(n int) {
	t.done += int64(n)
	if t.fn == nil {
		return
	}

	f := 0.0
	if t.total > 0 {
		f = float64(t.done) / float64(t.total)
	}
	f = math.Min(f, math.Nextafter(1, 0))
	f = math.Max(f, t.last)
	t.last = f
	t.fn(f)
}

func (t *tracker) finish() {
	if t.fn != nil {
		t.last = 1
		t.fn(1)
	}
}
