package ackhandler

import (
	"testing"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
	"github.com/stretchr/testify/assert"
)

func TestReceivedPacketHistorySingleRange(t *testing.T) {
	h := newReceivedPacketHistory()
	assert.True(t, h.ReceivedPacket(4))
	assert.True(t, h.ReceivedPacket(5))
	assert.True(t, h.ReceivedPacket(6))
	assert.Equal(t, []wire.AckRange{{Smallest: 4, Largest: 6}}, h.AppendAckRanges(nil))
}

func TestReceivedPacketHistoryRejectsDuplicates(t *testing.T) {
	h := newReceivedPacketHistory()
	assert.True(t, h.ReceivedPacket(5))
	assert.False(t, h.ReceivedPacket(5))
	assert.Equal(t, []wire.AckRange{{Smallest: 5, Largest: 5}}, h.AppendAckRanges(nil))
}

func TestReceivedPacketHistoryCreatesMultipleRanges(t *testing.T) {
	h := newReceivedPacketHistory()
	assert.True(t, h.ReceivedPacket(1))
	assert.True(t, h.ReceivedPacket(4))
	assert.True(t, h.ReceivedPacket(5))
	assert.True(t, h.ReceivedPacket(10))
	assert.Equal(t, []wire.AckRange{
		{Smallest: 10, Largest: 10},
		{Smallest: 4, Largest: 5},
		{Smallest: 1, Largest: 1},
	}, h.AppendAckRanges(nil))
}

func TestReceivedPacketHistoryMergesRangesForward(t *testing.T) {
	h := newReceivedPacketHistory()
	h.ReceivedPacket(1)
	h.ReceivedPacket(10)
	assert.True(t, h.ReceivedPacket(9))
	assert.Equal(t, []wire.AckRange{
		{Smallest: 9, Largest: 10},
		{Smallest: 1, Largest: 1},
	}, h.AppendAckRanges(nil))
}

func TestReceivedPacketHistoryMergesRangesBackward(t *testing.T) {
	h := newReceivedPacketHistory()
	h.ReceivedPacket(1)
	h.ReceivedPacket(4)
	h.ReceivedPacket(10)
	assert.True(t, h.ReceivedPacket(5))
	assert.Equal(t, []wire.AckRange{
		{Smallest: 10, Largest: 10},
		{Smallest: 4, Largest: 5},
		{Smallest: 1, Largest: 1},
	}, h.AppendAckRanges(nil))
}

func TestReceivedPacketHistoryClosesGapEntirely(t *testing.T) {
	h := newReceivedPacketHistory()
	h.ReceivedPacket(1)
	h.ReceivedPacket(4)
	h.ReceivedPacket(6)
	assert.True(t, h.ReceivedPacket(5))
	assert.Equal(t, []wire.AckRange{
		{Smallest: 4, Largest: 6},
		{Smallest: 1, Largest: 1},
	}, h.AppendAckRanges(nil))
}

func TestReceivedPacketHistoryDeleteBelowShrinksRanges(t *testing.T) {
	h := newReceivedPacketHistory()
	h.ReceivedPacket(1)
	h.ReceivedPacket(4)
	h.ReceivedPacket(5)
	h.ReceivedPacket(10)

	h.DeleteBelow(5)
	assert.Equal(t, []wire.AckRange{
		{Smallest: 10, Largest: 10},
		{Smallest: 5, Largest: 5},
	}, h.AppendAckRanges(nil))
}

func TestReceivedPacketHistoryDeleteBelowRemovesRanges(t *testing.T) {
	h := newReceivedPacketHistory()
	h.ReceivedPacket(1)
	h.ReceivedPacket(4)
	h.ReceivedPacket(10)

	h.DeleteBelow(9)
	assert.Equal(t, []wire.AckRange{{Smallest: 10, Largest: 10}}, h.AppendAckRanges(nil))
}

func TestReceivedPacketHistoryRejectsPacketsBelowDeletedRanges(t *testing.T) {
	h := newReceivedPacketHistory()
	h.ReceivedPacket(10)
	h.DeleteBelow(5)
	assert.False(t, h.ReceivedPacket(2))
	assert.Equal(t, []wire.AckRange{{Smallest: 10, Largest: 10}}, h.AppendAckRanges(nil))
}

func TestReceivedPacketHistoryIsPotentiallyDuplicate(t *testing.T) {
	h := newReceivedPacketHistory()
	h.ReceivedPacket(3)
	h.ReceivedPacket(4)
	h.ReceivedPacket(10)

	assert.True(t, h.IsPotentiallyDuplicate(3))
	assert.True(t, h.IsPotentiallyDuplicate(4))
	assert.True(t, h.IsPotentiallyDuplicate(10))
	assert.False(t, h.IsPotentiallyDuplicate(5))
	assert.False(t, h.IsPotentiallyDuplicate(9))
	assert.False(t, h.IsPotentiallyDuplicate(11))

	h.DeleteBelow(5)
	assert.True(t, h.IsPotentiallyDuplicate(4))
	assert.True(t, h.IsPotentiallyDuplicate(2))
}

func TestReceivedPacketHistoryGetHighestAckRange(t *testing.T) {
	h := newReceivedPacketHistory()
	assert.Equal(t, wire.AckRange{}, h.GetHighestAckRange())
	h.ReceivedPacket(2)
	h.ReceivedPacket(3)
	assert.Equal(t, wire.AckRange{Smallest: 2, Largest: 3}, h.GetHighestAckRange())
	h.ReceivedPacket(5)
	assert.Equal(t, wire.AckRange{Smallest: 5, Largest: 5}, h.GetHighestAckRange())
}

func TestReceivedPacketHistoryLimitsNumberOfRanges(t *testing.T) {
	h := newReceivedPacketHistory()
	for i := 0; i < protocol.MaxNumAckRanges; i++ {
		h.ReceivedPacket(protocol.PacketNumber(2 * i))
	}
	assert.Equal(t, protocol.MaxNumAckRanges, h.ranges.Len())

	// one more disjoint range evicts the oldest
	assert.True(t, h.ReceivedPacket(protocol.PacketNumber(2 * protocol.MaxNumAckRanges)))
	assert.Equal(t, protocol.MaxNumAckRanges, h.ranges.Len())
	assert.False(t, h.ReceivedPacket(0))
}
