package aggregation

// RollingBuckets is the trailing window length: the current bucket plus up to
// five preceding buckets of the same symbol.
const RollingBuckets = 6

// rollingMean is a fixed-size sliding window over a time-ordered series.
// Missing samples occupy a slot but are excluded from the mean, the same way
// SQL AVG skips NULLs.
type rollingMean struct {
	vals  []float64
	valid []bool
	next  int
	n     int
	sum   float64
	count int
}

func newRollingMean(size int) *rollingMean {
	return &rollingMean{vals: make([]float64, size), valid: make([]bool, size)}
}

// Push adds a sample and returns the mean of the window including it.
func (r *rollingMean) Push(v float64, ok bool) float64 {
	if r.n == len(r.vals) && r.valid[r.next] {
		r.sum -= r.vals[r.next]
		r.count--
	}
	r.vals[r.next] = v
	r.valid[r.next] = ok
	if ok {
		r.sum += v
		r.count++
	}
	r.next = (r.next + 1) % len(r.vals)
	if r.n < len(r.vals) {
		r.n++
	}
	return r.Mean()
}

func (r *rollingMean) Mean() float64 {
	if r.count == 0 {
		return 0
	}
	return r.sum / float64(r.count)
}
