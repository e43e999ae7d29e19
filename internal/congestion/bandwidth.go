package congestion

import (
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
)

// Bandwidth is a rate in bytes per second.
type Bandwidth uint64

// BytesPerSecond converts a byte count directly into a Bandwidth, i.e. the
// rate delivering that many bytes in exactly one second.
const BytesPerSecond Bandwidth = 1

// BandwidthFromDelta returns the rate implied by delivering n bytes over
// elapsed wall-clock time.
func BandwidthFromDelta(n protocol.ByteCount, elapsed time.Duration) Bandwidth {
	if elapsed <= 0 {
		return 0
	}
	return Bandwidth(uint64(n) * uint64(time.Second) / uint64(elapsed))
}

// TimesDuration returns the byte count this bandwidth would deliver over d.
func (b Bandwidth) TimesDuration(d time.Duration) protocol.ByteCount {
	return protocol.ByteCount(uint64(b) * uint64(d) / uint64(time.Second))
}
