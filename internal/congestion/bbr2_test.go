package congestion

import (
	"testing"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func newTestBBR2() *bbr2 {
	return NewBBR2(1200, 10, NewPacer(1200), nil)
}

func TestNewBBR2StartsInStartup(t *testing.T) {
	b := newTestBBR2()
	assert.Equal(t, StateStartup, b.state)
	assert.Equal(t, protocol.ByteCount(12000), b.cwndBytes)
	assert.Equal(t, startupPacingGain, b.pacingGain)
	assert.Equal(t, startupCwndGain, b.cwndGain)
}

func TestBBR2OnPacketSentTracksInflight(t *testing.T) {
	b := newTestBBR2()
	b.OnPacketSent(time.Now(), 0, 1200, false)
	assert.Equal(t, protocol.ByteCount(1200), b.inflightBytes)
	assert.Equal(t, protocol.ByteCount(1200), b.totalBytesSent)
}

func TestBBR2GetWritableBytes(t *testing.T) {
	b := newTestBBR2()
	assert.Equal(t, b.cwndBytes, b.GetWritableBytes(0))
	assert.Equal(t, protocol.ByteCount(0), b.GetWritableBytes(b.cwndBytes+1000))
}

func TestBBR2CwndNeverGoesBelowFloor(t *testing.T) {
	b := newTestBBR2()
	// force a state where every target/cap computation collapses toward zero
	b.cwndBytes = 0
	b.fullBwReached = true
	b.setCwnd(0)
	assert.GreaterOrEqual(t, b.cwndBytes, b.minCwnd(), "cwnd must never drop below min_cwnd_in_mss * mss")
}

func TestBBR2ProbeRTTCwndRespectsFloor(t *testing.T) {
	b := newTestBBR2()
	assert.GreaterOrEqual(t, b.probeRTTCwnd(), b.minCwnd())
}

// TestBBR2HandleInflightTooHighReducesInflightHi exercises the S7 scenario:
// a ProbeBW-Up flow at inflight_hi takes a 3% loss, and inflight_hi drops to
// max(inflight_at_largest_acked, target*beta) while the state falls back to
// ProbeBW-Down.
func TestBBR2HandleInflightTooHighReducesInflightHi(t *testing.T) {
	b := newTestBBR2()
	b.fullBwReached = true
	b.bandwidth = BandwidthFromDelta(120000, time.Second) // 120000 B/s
	b.minRtt = 100 * time.Millisecond
	b.state = StateProbeBwUp
	b.updateGains()

	inflightAtLargestAcked := protocol.ByteCount(100000)
	preReductionGain := b.cwndGain
	target := protocol.ByteCount(float64(b.targetInflightWithGain(preReductionGain)) * beta)

	b.handleInflightTooHigh(inflightAtLargestAcked)

	assert.NotNil(t, b.inflightHi)
	expected := inflightAtLargestAcked
	if target > expected {
		expected = target
	}
	assert.Equal(t, expected, *b.inflightHi)
	assert.Equal(t, StateProbeBwDown, b.state)
}

func TestBBR2IsInflightTooHighDetectsLossAboveThreshold(t *testing.T) {
	b := newTestBBR2()
	assert.True(t, b.isInflightTooHigh(1000, 21), "2.1% loss exceeds the 2% threshold")
	assert.False(t, b.isInflightTooHigh(1000, 20), "2.0% loss is at, not above, the threshold")
}

func TestBBR2StateString(t *testing.T) {
	assert.Equal(t, "Startup", StateStartup.String())
	assert.Equal(t, "ProbeBW-Up", StateProbeBwUp.String())
	assert.Equal(t, "ProbeRTT", StateProbeRTT.String())
}

func TestBBR2EnterDrainAfterStartup(t *testing.T) {
	b := newTestBBR2()
	b.fullBwReached = true
	b.checkStartupDone()
	assert.Equal(t, StateDrain, b.state)
}

func TestBBR2RenoCoexistenceDisabledByDefault(t *testing.T) {
	b := newTestBBR2()
	assert.False(t, b.isRenoCoexistenceProbeTime(), "opt-in feature, off unless enabled")
}
