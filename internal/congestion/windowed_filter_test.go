package congestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowedMaxFilterTracksBest(t *testing.T) {
	f := newWindowedMaxFilter(99)
	f.Update(10, 0)
	assert.Equal(t, int64(10), f.GetBest())

	f.Update(5, 1)
	assert.Equal(t, int64(10), f.GetBest(), "a smaller sample doesn't replace the best")

	f.Update(20, 2)
	assert.Equal(t, int64(20), f.GetBest(), "a new max replaces the whole window")
}

func TestWindowedMaxFilterExpiresOldBest(t *testing.T) {
	f := newWindowedMaxFilter(10)
	f.Update(100, 0)
	f.Update(10, 5)
	f.Update(10, 11)
	assert.NotEqual(t, int64(100), f.GetBest(), "the old best fell out of the window")
}

func TestWindowedMaxFilterReset(t *testing.T) {
	f := newWindowedMaxFilter(10)
	f.Update(100, 0)
	f.Reset(5, 1)
	assert.Equal(t, int64(5), f.GetBest())
}
