package utils

import (
	"testing"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func TestRTTStatsDefaultsBeforeUpdate(t *testing.T) {
	var r RTTStats
	assert.Zero(t, r.MinRTT())
	assert.Zero(t, r.SmoothedRTT())
}

func TestRTTStatsSmoothedRTT(t *testing.T) {
	var r RTTStats
	r.UpdateRTT(300*time.Millisecond, 100*time.Millisecond, time.Time{})
	assert.Equal(t, 300*time.Millisecond, r.LatestRTT())
	assert.Equal(t, 300*time.Millisecond, r.SmoothedRTT())

	r.UpdateRTT(350*time.Millisecond, 50*time.Millisecond, time.Time{})
	assert.Equal(t, 300*time.Millisecond, r.LatestRTT())
	assert.Equal(t, 300*time.Millisecond, r.SmoothedRTT())

	r.UpdateRTT(200*time.Millisecond, 300*time.Millisecond, time.Time{})
	assert.Equal(t, 200*time.Millisecond, r.LatestRTT())
	assert.Equal(t, 287500*time.Microsecond, r.SmoothedRTT())
}

func TestRTTStatsMinRTT(t *testing.T) {
	var r RTTStats
	r.UpdateRTT(200*time.Millisecond, 0, time.Time{})
	assert.Equal(t, 200*time.Millisecond, r.MinRTT())
	r.UpdateRTT(10*time.Millisecond, 0, time.Time{}.Add(10*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, r.MinRTT())
	r.UpdateRTT(50*time.Millisecond, 0, time.Time{}.Add(20*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, r.MinRTT())
	r.UpdateRTT(7*time.Millisecond, 2*time.Millisecond, time.Time{}.Add(50*time.Millisecond))
	assert.Equal(t, 7*time.Millisecond, r.MinRTT())
}

func TestRTTStatsMaxAckDelay(t *testing.T) {
	var r RTTStats
	r.SetMaxAckDelay(42 * time.Minute)
	assert.Equal(t, 42*time.Minute, r.MaxAckDelay())
}

func TestRTTStatsPTO(t *testing.T) {
	var r RTTStats
	const (
		maxAckDelay = 42 * time.Minute
		rtt         = time.Second
	)
	r.SetMaxAckDelay(maxAckDelay)
	r.UpdateRTT(rtt, 0, time.Time{})
	assert.Equal(t, rtt, r.SmoothedRTT())
	assert.Equal(t, rtt/2, r.MeanDeviation())
	assert.Equal(t, rtt+4*(rtt/2), r.PTO(false))
	assert.Equal(t, rtt+4*(rtt/2)+maxAckDelay, r.PTO(true))
}

func TestRTTStatsPTOUsesGranularityForShortRTTs(t *testing.T) {
	var r RTTStats
	const rtt = time.Microsecond
	r.UpdateRTT(rtt, 0, time.Time{})
	assert.Equal(t, rtt+protocol.TimerGranularity, r.PTO(true))
}

func TestRTTStatsIgnoresBadSendDeltas(t *testing.T) {
	var r RTTStats
	const initialRTT = 10 * time.Millisecond
	r.UpdateRTT(initialRTT, 0, time.Time{})
	assert.Equal(t, initialRTT, r.MinRTT())
	assert.Equal(t, initialRTT, r.SmoothedRTT())

	for _, bad := range []time.Duration{0, -1000 * time.Microsecond} {
		r.UpdateRTT(bad, 0, time.Time{})
		assert.Equal(t, initialRTT, r.MinRTT())
		assert.Equal(t, initialRTT, r.SmoothedRTT())
	}
}

func TestRTTStatsRestoresInitialRTT(t *testing.T) {
	var r RTTStats
	r.SetInitialRTT(10 * time.Second)
	assert.Equal(t, 10*time.Second, r.LatestRTT())
	assert.Equal(t, 10*time.Second, r.SmoothedRTT())
	assert.Zero(t, r.MeanDeviation())

	r.UpdateRTT(200*time.Millisecond, 0, time.Time{})
	assert.Equal(t, 200*time.Millisecond, r.LatestRTT())
	assert.Equal(t, 200*time.Millisecond, r.SmoothedRTT())
	assert.Equal(t, 100*time.Millisecond, r.MeanDeviation())
}

func TestRTTStatsDoesNotRestoreIfMeasurementExists(t *testing.T) {
	var r RTTStats
	const rtt = 10 * time.Millisecond
	r.UpdateRTT(rtt, 0, time.Now())
	assert.Equal(t, rtt, r.LatestRTT())
	assert.Equal(t, rtt, r.SmoothedRTT())

	r.SetInitialRTT(time.Minute)
	assert.Equal(t, rtt, r.LatestRTT())
	assert.Equal(t, rtt, r.SmoothedRTT())
}

func TestRTTStatsExpireSmoothedMetrics(t *testing.T) {
	var r RTTStats
	initialRTT := 10 * time.Millisecond
	r.UpdateRTT(initialRTT, 0, time.Time{})
	assert.Equal(t, initialRTT, r.SmoothedRTT())
	assert.Equal(t, initialRTT/2, r.MeanDeviation())

	doubledRTT := initialRTT * 2
	r.UpdateRTT(doubledRTT, 0, time.Time{})
	assert.Less(t, r.SmoothedRTT(), doubledRTT)

	r.ExpireSmoothedMetrics()
	assert.Equal(t, doubledRTT, r.SmoothedRTT())
}
