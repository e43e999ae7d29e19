package ackhandler

import (
	"testing"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/utils"
	"github.com/quicframe/quicframe/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReceivedPacketTracker() *receivedPacketTracker {
	var rttStats utils.RTTStats
	return newReceivedPacketTracker(&rttStats, nil, protocol.Version1)
}

func receiveAndAck10(t *testing.T, tr *receivedPacketTracker) {
	t.Helper()
	for i := protocol.PacketNumber(0); i < 10; i++ {
		require.NoError(t, tr.ReceivedPacket(i, protocol.ECNNon, time.Now(), true))
	}
	ack := tr.GetAckFrame(true)
	require.NotNil(t, ack)
	require.Equal(t, protocol.PacketNumber(9), ack.LargestAcked())
}

func TestReceivedPacketTrackerQueuesFirstPacket(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	require.NoError(t, tr.ReceivedPacket(0, protocol.ECNNon, time.Now(), true))
	assert.True(t, tr.ackQueued)
	assert.True(t, tr.GetAlarmTimeout().IsZero())
}

func TestReceivedPacketTrackerGetAckFrame(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	receiveAndAck10(t, tr)
	assert.False(t, tr.ackQueued)
}

func TestReceivedPacketTrackerWaitsForThreshold(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	receiveAndAck10(t, tr)

	require.NoError(t, tr.ReceivedPacket(10, protocol.ECNNon, time.Now(), true))
	assert.False(t, tr.ackQueued)
	assert.False(t, tr.GetAlarmTimeout().IsZero())

	require.NoError(t, tr.ReceivedPacket(11, protocol.ECNNon, time.Now(), true))
	assert.True(t, tr.ackQueued)
}

func TestReceivedPacketTrackerOnlySetsTimerForAckEliciting(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	receiveAndAck10(t, tr)

	require.NoError(t, tr.ReceivedPacket(11, protocol.ECNNon, time.Time{}, false))
	assert.False(t, tr.ackQueued)
	assert.True(t, tr.ackAlarm.IsZero())

	require.NoError(t, tr.ReceivedPacket(12, protocol.ECNNon, time.Now(), true))
	assert.False(t, tr.ackQueued)
	assert.False(t, tr.GetAlarmTimeout().IsZero())
}

func TestReceivedPacketTrackerQueuesAckForReportedMissingGap(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	receiveAndAck10(t, tr)

	require.NoError(t, tr.ReceivedPacket(11, protocol.ECNNon, time.Now(), true))
	require.NoError(t, tr.ReceivedPacket(13, protocol.ECNNon, time.Now(), true))
	ack := tr.GetAckFrame(true)
	require.NotNil(t, ack)
	assert.True(t, ack.HasMissingRanges())

	require.NoError(t, tr.ReceivedPacket(12, protocol.ECNNon, time.Now(), true))
	assert.True(t, tr.ackQueued)
}

func TestReceivedPacketTrackerIgnoreBelowResetsFrontier(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	receiveAndAck10(t, tr)

	tr.IgnoreBelow(11)
	require.NoError(t, tr.ReceivedPacket(11, protocol.ECNNon, time.Now(), true))
	assert.Nil(t, tr.GetAckFrame(true))
}

func TestReceivedPacketTrackerDropsPacketsBelowIgnoreFloor(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	tr.IgnoreBelow(5)
	require.NoError(t, tr.ReceivedPacket(3, protocol.ECNNon, time.Now(), true))
	assert.False(t, tr.ackQueued)
	assert.True(t, tr.IsPotentiallyDuplicate(3))
}

func TestReceivedPacketTrackerGeneratesAckWithECN(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	require.NoError(t, tr.ReceivedPacket(0, protocol.ECT0, time.Now(), true))
	require.NoError(t, tr.ReceivedPacket(1, protocol.ECT1, time.Now(), true))
	require.NoError(t, tr.ReceivedPacket(2, protocol.ECNCE, time.Now(), true))

	ack := tr.GetAckFrame(true)
	require.NotNil(t, ack)
	assert.True(t, ack.ECNPresent)
	assert.Equal(t, uint64(1), ack.ECT0)
	assert.Equal(t, uint64(1), ack.ECT1)
	assert.Equal(t, uint64(1), ack.ECNCE)
}

func TestReceivedPacketTrackerDropPacketsClearsHistory(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	require.NoError(t, tr.ReceivedPacket(5, protocol.ECNNon, time.Now(), true))
	assert.True(t, tr.IsPotentiallyDuplicate(5))
	tr.DropPackets()
	assert.False(t, tr.IsPotentiallyDuplicate(5))
}

func TestReceivedPacketTrackerDelayTimeIsNeverNegative(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	require.NoError(t, tr.ReceivedPacket(0, protocol.ECNNon, time.Now().Add(time.Hour), true))
	ack := tr.GetAckFrame(true)
	require.NotNil(t, ack)
	assert.GreaterOrEqual(t, ack.DelayTime, time.Duration(0))
}

func TestReceivedPacketTrackerOpportunisticAck(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	require.NoError(t, tr.ReceivedPacket(0, protocol.ECNNon, time.Now(), true))
	tr.GetAckFrame(true)

	require.NoError(t, tr.ReceivedPacket(1, protocol.ECNNon, time.Now(), true))
	tr.ackQueued = false

	ack := tr.GetAckFrame(false)
	assert.NotNil(t, ack)

	assert.Nil(t, tr.GetAckFrame(false))
}

func TestReceivedPacketTrackerAlarmExpiredForcesAck(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	require.NoError(t, tr.ReceivedPacket(0, protocol.ECNNon, time.Now(), true))
	tr.GetAckFrame(true)

	require.NoError(t, tr.ReceivedPacket(1, protocol.ECNNon, time.Now(), true))
	tr.ackQueued = false
	tr.ackAlarm = time.Now().Add(-time.Minute)

	ack := tr.GetAckFrame(true)
	require.NotNil(t, ack)
	assert.False(t, tr.ackQueued)
	assert.True(t, tr.ackAlarm.IsZero())
}

func TestReceivedPacketTrackerAcceptsPacketNumberZero(t *testing.T) {
	tr := newTestReceivedPacketTracker()
	require.NoError(t, tr.ReceivedPacket(0, protocol.ECNNon, time.Now(), true))
	assert.Equal(t, []wire.AckRange{{Smallest: 0, Largest: 0}}, tr.packetHistory.AppendAckRanges(nil))
}
