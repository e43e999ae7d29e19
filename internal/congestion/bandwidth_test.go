package congestion

import (
	"testing"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func TestBandwidthFromDelta(t *testing.T) {
	assert.Equal(t, 1000*BytesPerSecond, BandwidthFromDelta(1, time.Millisecond))
	assert.Equal(t, Bandwidth(0), BandwidthFromDelta(1, 0))
	assert.Equal(t, Bandwidth(0), BandwidthFromDelta(1, -time.Second))
}

func TestBandwidthTimesDuration(t *testing.T) {
	bw := BandwidthFromDelta(1000, time.Second)
	assert.Equal(t, protocol.ByteCount(1000), bw.TimesDuration(time.Second))
	assert.Equal(t, protocol.ByteCount(500), bw.TimesDuration(500*time.Millisecond))
}
