package ackhandler

import (
	"log/slog"

	"github.com/quicframe/quicframe/internal/congestion"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/utils"
)

// NewReceivedPacketHandler builds the ack-generation state for one packet
// number space. A connection holds one per encryption level that still has
// live keys.
func NewReceivedPacketHandler(rttStats *utils.RTTStats, logger *slog.Logger, version protocol.Version) ReceivedPacketHandler {
	return newReceivedPacketTracker(rttStats, logger, version)
}

// NewAckHandler builds the send- and receive-side ack/loss-recovery state
// for a new connection's 1-RTT packet number space. Initial and Handshake
// spaces get their own SentPacketHandler packet-number-space bookkeeping
// internally, and their own ReceivedPacketHandler via NewReceivedPacketHandler.
func NewAckHandler(
	initialPacketNumber protocol.PacketNumber,
	initialMaxDatagramSize protocol.ByteCount,
	rttStats *utils.RTTStats,
	sendAlgorithm congestion.SendAlgorithm,
	pacer *congestion.Pacer,
	pers protocol.Perspective,
	logger *slog.Logger,
	version protocol.Version,
) (SentPacketHandler, ReceivedPacketHandler) {
	sph := NewSentPacketHandler(initialPacketNumber, initialMaxDatagramSize, rttStats, sendAlgorithm, pacer, pers, logger)
	rph := newReceivedPacketTracker(rttStats, logger, version)
	return sph, rph
}
