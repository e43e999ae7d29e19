package ackhandler

import (
	"testing"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentPacketHistoryTracksOutstanding(t *testing.T) {
	h := newSentPacketHistory()
	h.SentAckElicitingPacket(&Packet{PacketNumber: 0})
	h.SentAckElicitingPacket(&Packet{PacketNumber: 1})
	h.SentNonAckElicitingPacket(2)
	h.SentAckElicitingPacket(&Packet{PacketNumber: 3})

	assert.True(t, h.HasOutstandingPackets())
	assert.Equal(t, protocol.PacketNumber(0), h.LowestPacketNumber())
	assert.Equal(t, protocol.PacketNumber(0), h.FirstOutstanding().PacketNumber)
	assert.Equal(t, 4, h.Len())
}

func TestSentPacketHistorySkipsGapsContiguously(t *testing.T) {
	h := newSentPacketHistory()
	h.SentAckElicitingPacket(&Packet{PacketNumber: 0})
	h.skippedPacket(1)
	h.SentAckElicitingPacket(&Packet{PacketNumber: 2})

	idx, ok := h.getIndex(2)
	require.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestSentPacketHistoryRemove(t *testing.T) {
	h := newSentPacketHistory()
	h.SentAckElicitingPacket(&Packet{PacketNumber: 0})
	h.SentAckElicitingPacket(&Packet{PacketNumber: 1})

	require.NoError(t, h.Remove(0))
	assert.True(t, h.HasOutstandingPackets())
	assert.Equal(t, protocol.PacketNumber(1), h.FirstOutstanding().PacketNumber)
	assert.Equal(t, protocol.PacketNumber(1), h.LowestPacketNumber())

	err := h.Remove(99)
	assert.Error(t, err)
}

func TestSentPacketHistoryDeclareLost(t *testing.T) {
	h := newSentPacketHistory()
	h.SentAckElicitingPacket(&Packet{PacketNumber: 0})
	require.Equal(t, 1, h.numOutstanding)

	p := h.DeclareLost(0)
	require.NotNil(t, p)
	assert.Equal(t, protocol.PacketNumber(0), p.PacketNumber)
	assert.False(t, h.HasOutstandingPackets())
}

func TestSentPacketHistoryIterateInOrder(t *testing.T) {
	h := newSentPacketHistory()
	h.SentAckElicitingPacket(&Packet{PacketNumber: 0})
	h.SentAckElicitingPacket(&Packet{PacketNumber: 1})
	h.SentAckElicitingPacket(&Packet{PacketNumber: 2})

	var seen []protocol.PacketNumber
	require.NoError(t, h.Iterate(func(p *Packet) (bool, error) {
		if p != nil {
			seen = append(seen, p.PacketNumber)
		}
		return true, nil
	}))
	assert.Equal(t, []protocol.PacketNumber{0, 1, 2}, seen)
}
