package utils

import (
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
)

const (
	rttAlpha      float64 = 0.125
	oneMinusAlpha float64 = 1 - rttAlpha
	rttBeta       float64 = 0.25
	oneMinusBeta  float64 = 1 - rttBeta
)

// RTTStats tracks the round-trip time estimate for a connection using the
// standard QUIC smoothing formula (RFC 9002 Section 5). The zero value is
// ready to use, assuming DefaultInitialRTT until the first sample arrives.
type RTTStats struct {
	hasMeasurement bool

	minRTT        time.Duration
	latestRTT     time.Duration
	smoothedRTT   time.Duration
	meanDeviation time.Duration

	maxAckDelay time.Duration
}

// MinRTT returns the lowest RTT observed so far, or zero if no sample has
// arrived yet.
func (r *RTTStats) MinRTT() time.Duration { return r.minRTT }

// LatestRTT returns the most recent RTT sample, ack-delay corrected.
func (r *RTTStats) LatestRTT() time.Duration { return r.latestRTT }

// SmoothedRTT returns the exponentially weighted moving average RTT.
func (r *RTTStats) SmoothedRTT() time.Duration { return r.smoothedRTT }

// MeanDeviation returns the mean RTT variation, the basis for the PTO's
// safety margin.
func (r *RTTStats) MeanDeviation() time.Duration { return r.meanDeviation }

// MaxAckDelay returns the peer's advertised max_ack_delay.
func (r *RTTStats) MaxAckDelay() time.Duration { return r.maxAckDelay }

// SetMaxAckDelay records the peer's max_ack_delay transport parameter.
func (r *RTTStats) SetMaxAckDelay(mad time.Duration) { r.maxAckDelay = mad }

// SetInitialRTT seeds the smoothed RTT before any real sample exists, e.g.
// from a cached value in a resumed session. It has no effect once a
// measurement has been recorded.
func (r *RTTStats) SetInitialRTT(rtt time.Duration) {
	if r.hasMeasurement {
		return
	}
	r.latestRTT = rtt
	r.smoothedRTT = rtt
}

// UpdateRTT updates the RTT estimate from a newly acked packet's send delta
// and the ack_delay the peer reported for it.
func (r *RTTStats) UpdateRTT(sendDelta, ackDelay time.Duration, now time.Time) {
	if sendDelta <= 0 {
		return
	}
	if r.minRTT == 0 || sendDelta < r.minRTT {
		r.minRTT = sendDelta
	}

	sample := sendDelta
	if sample-r.minRTT >= ackDelay && ackDelay > 0 {
		sample -= ackDelay
	}
	r.latestRTT = sample

	if !r.hasMeasurement {
		r.hasMeasurement = true
		r.smoothedRTT = sample
		r.meanDeviation = sample / 2
		return
	}
	r.meanDeviation = time.Duration(oneMinusBeta*float64(r.meanDeviation) + rttBeta*float64(absDuration(r.smoothedRTT-sample)))
	r.smoothedRTT = time.Duration(oneMinusAlpha*float64(r.smoothedRTT) + rttAlpha*float64(sample))
}

// ExpireSmoothedMetrics raises the smoothed RTT and mean deviation to the
// latest sample if it's larger, used after an idle period where the old
// smoothed value may no longer be representative.
func (r *RTTStats) ExpireSmoothedMetrics() {
	r.meanDeviation = maxDuration(r.meanDeviation, absDuration(r.smoothedRTT-r.latestRTT))
	r.smoothedRTT = maxDuration(r.smoothedRTT, r.latestRTT)
}

// PTO computes the probe timeout duration: smoothed_rtt + 4*mean_deviation,
// floored at the timer granularity, plus the peer's max_ack_delay when
// includeMaxAckDelay is set (RFC 9002 Section 6.2.1).
func (r *RTTStats) PTO(includeMaxAckDelay bool) time.Duration {
	if r.smoothedRTT == 0 {
		return 2 * protocol.DefaultInitialRTT
	}
	pto := r.smoothedRTT + maxDuration(4*r.meanDeviation, protocol.TimerGranularity)
	if includeMaxAckDelay {
		pto += r.maxAckDelay
	}
	return pto
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
