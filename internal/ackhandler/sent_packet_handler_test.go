package ackhandler

import (
	"testing"
	"time"

	"github.com/quicframe/quicframe/internal/congestion"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/utils"
	"github.com/quicframe/quicframe/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSentPacketHandler(pers protocol.Perspective) *sentPacketHandler {
	var rttStats utils.RTTStats
	pacer := congestion.NewPacer(1200)
	sender := congestion.NewBBR2(1200, 10, pacer, nil)
	return NewSentPacketHandler(0, 1200, &rttStats, sender, pacer, pers, nil)
}

func TestSentPacketHandlerTracksBytesInFlight(t *testing.T) {
	h := newTestSentPacketHandler(protocol.PerspectiveClient)
	now := time.Now()
	h.SentPacket(now, 0, protocol.InvalidPacketNumber, nil, []Frame{{Frame: &wire.PingFrame{}}}, protocol.Encryption1RTT, 1200, false, false)
	assert.Equal(t, protocol.ByteCount(1200), h.bytesInFlight)
	assert.True(t, h.appDataPackets.history.HasOutstandingPackets())
}

func TestSentPacketHandlerReceivedAckRemovesOutstanding(t *testing.T) {
	h := newTestSentPacketHandler(protocol.PerspectiveClient)
	now := time.Now()
	h.SentPacket(now, 0, protocol.InvalidPacketNumber, nil, []Frame{{Frame: &wire.PingFrame{}}}, protocol.Encryption1RTT, 1200, false, false)

	ack := &wire.AckFrame{AckRanges: []wire.AckRange{{Smallest: 0, Largest: 0}}}
	acked1RTT, err := h.ReceivedAck(ack, protocol.Encryption1RTT, now.Add(10*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, acked1RTT)
	assert.Zero(t, h.bytesInFlight)
	assert.False(t, h.appDataPackets.history.HasOutstandingPackets())
}

func TestSentPacketHandlerRejectsAckForUnsentPacket(t *testing.T) {
	h := newTestSentPacketHandler(protocol.PerspectiveClient)
	ack := &wire.AckFrame{AckRanges: []wire.AckRange{{Smallest: 5, Largest: 5}}}
	_, err := h.ReceivedAck(ack, protocol.Encryption1RTT, time.Now())
	assert.Error(t, err)
}

func TestSentPacketHandlerAmplificationWindow(t *testing.T) {
	h := newTestSentPacketHandler(protocol.PerspectiveServer)
	assert.Equal(t, protocol.ByteCount(0), h.AmplificationWindow())
	h.ReceivedBytes(1000)
	assert.Equal(t, protocol.ByteCount(3000), h.AmplificationWindow())
}

func TestSentPacketHandlerPeekAndPopFirstPacketNumber(t *testing.T) {
	h := newTestSentPacketHandler(protocol.PerspectiveClient)
	pn, _ := h.PeekPacketNumber(protocol.Encryption1RTT)
	assert.Equal(t, protocol.PacketNumber(0), pn)
	popped := h.PopPacketNumber(protocol.Encryption1RTT)
	assert.Equal(t, protocol.PacketNumber(0), popped)
}

func TestSentPacketHandlerQueueProbePacketRetransmitsFrames(t *testing.T) {
	h := newTestSentPacketHandler(protocol.PerspectiveClient)
	var lost bool
	h.SentPacket(time.Now(), 0, protocol.InvalidPacketNumber, nil, []Frame{{
		Frame:  &wire.PingFrame{},
		OnLost: func(wire.Frame) { lost = true },
	}}, protocol.Encryption1RTT, 1200, false, false)

	ok := h.QueueProbePacket(protocol.Encryption1RTT)
	assert.True(t, ok)
	assert.True(t, lost)
}

func TestSentPacketHandlerSendModeNoneWhenAmplificationLimited(t *testing.T) {
	h := newTestSentPacketHandler(protocol.PerspectiveServer)
	assert.Equal(t, SendNone, h.SendMode(time.Now()))
}
