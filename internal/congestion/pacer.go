package congestion

import (
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
)

// maxBurstPackets bounds how many packets a single pacing tick may release
// even when the token bucket has accumulated a large budget, so pacing
// still smooths a burst after an idle period.
const maxBurstPackets = 10

// pacingTickInterval is the pacing tick bbr2 uses to size its send quantum:
// the bytes the pacing rate delivers in one tick.
const pacingTickInterval = time.Millisecond

// Pacer gates send timing to the rate the congestion controller (C7)
// reports, implementing a token-bucket: each refresh_pacing_rate call sets
// the target rate, and update_and_get_write_batch_size spends whatever
// budget has accumulated since the last call.
type Pacer struct {
	budget       protocol.ByteCount
	lastSentTime time.Time

	rate          Bandwidth
	maxDatagramSize protocol.ByteCount
}

// NewPacer builds a pacer for a connection using the given maximum UDP
// payload size to size its burst allowance.
func NewPacer(maxDatagramSize protocol.ByteCount) *Pacer {
	p := &Pacer{maxDatagramSize: maxDatagramSize}
	p.budget = p.maxBurstSize()
	return p
}

// RefreshPacingRate sets the target rate as windowBytes delivered over
// interval, matching the congestion controller's own (gain·bdp, min_rtt)
// computation rather than taking a pre-divided Bandwidth.
func (p *Pacer) RefreshPacingRate(windowBytes protocol.ByteCount, interval time.Duration) {
	if interval <= 0 {
		return
	}
	p.rate = BandwidthFromDelta(windowBytes, interval)
}

// OnPacketSent debits the token bucket by size bytes.
func (p *Pacer) OnPacketSent(now time.Time, size protocol.ByteCount) {
	budget := p.Budget(now)
	if size > budget {
		p.budget = 0
	} else {
		p.budget = budget - size
	}
	p.lastSentTime = now
}

// Budget returns the number of bytes the token bucket holds at now,
// without spending any of it.
func (p *Pacer) Budget(now time.Time) protocol.ByteCount {
	if p.lastSentTime.IsZero() {
		return p.maxBurstSize()
	}
	elapsed := now.Sub(p.lastSentTime)
	accrued := p.rate.TimesDuration(elapsed)
	return min(p.maxBurstSize(), p.budget+accrued)
}

// UpdateAndGetWriteBatchSize returns how many maxDatagramSize-sized
// packets may be sent right now without exceeding the target rate.
func (p *Pacer) UpdateAndGetWriteBatchSize(now time.Time) int {
	if p.maxDatagramSize == 0 {
		return 0
	}
	return int(p.Budget(now) / p.maxDatagramSize)
}

// TimeUntilSend returns when the next packet may be sent, the zero time if
// one may be sent immediately.
func (p *Pacer) TimeUntilSend() time.Time {
	if p.budget >= p.maxDatagramSize {
		return time.Time{}
	}
	if p.rate == 0 {
		return time.Time{}
	}
	deficit := p.maxDatagramSize - p.budget
	wait := time.Duration(uint64(deficit) * uint64(time.Second) / uint64(p.rate))
	return p.lastSentTime.Add(wait)
}

func (p *Pacer) maxBurstSize() protocol.ByteCount {
	return maxBurstPackets * p.maxDatagramSize
}
