package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingMean_GrowsThenSlides(t *testing.T) {
	r := newRollingMean(3)
	assert.InDelta(t, 1.0, r.Push(1, true), 1e-9)
	assert.InDelta(t, 1.5, r.Push(2, true), 1e-9)
	assert.InDelta(t, 2.0, r.Push(3, true), 1e-9)
	// 1 drops out
	assert.InDelta(t, 3.0, r.Push(4, true), 1e-9)
	assert.InDelta(t, 4.0, r.Push(5, true), 1e-9)
}

func TestRollingMean_SkipsMissing(t *testing.T) {
	r := newRollingMean(2)
	assert.Equal(t, 0.0, r.Push(0, false))
	assert.InDelta(t, 4.0, r.Push(4, true), 1e-9)
	assert.InDelta(t, 5.0, r.Push(6, true), 1e-9)
	assert.InDelta(t, 6.0, r.Push(0, false), 1e-9)
	assert.Equal(t, 0.0, r.Push(0, false))
}
