package ackhandler

import (
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
)

// Packet is an outstanding packet: sent, and tracked until it's acked or
// declared lost.
type Packet struct {
	PacketNumber    protocol.PacketNumber
	Frames          []Frame
	StreamFrames    []Frame
	LargestAcked    protocol.PacketNumber
	Length          protocol.ByteCount
	EncryptionLevel protocol.EncryptionLevel
	SendTime        time.Time

	// IsPathMTUProbePacket marks a packet sent to probe the maximum
	// datagram size; it carries no retransmittable frames of its own.
	IsPathMTUProbePacket bool

	// IsPathProbePacket marks a PATH_CHALLENGE probe sent on path
	// validation; losing it doesn't count toward congestion.
	IsPathProbePacket bool

	includedInBytesInFlight bool

	// inflightAtSend and totalBytesSentAtSend snapshot the connection's
	// cumulative counters at the moment this packet was sent, so the
	// congestion controller can take a bandwidth sample once it's acked.
	inflightAtSend        protocol.ByteCount
	totalBytesSentAtSend  protocol.ByteCount
	isAppLimitedWhenSent  bool
}

// outstanding reports whether this packet still counts toward
// bytes-in-flight and the loss-detection bookkeeping: not yet acked, not
// yet declared lost.
func (p *Packet) outstanding() bool {
	return p != nil && p.includedInBytesInFlight
}

func (p *Packet) isAckEliciting() bool {
	return HasAckElicitingFrames(p.Frames) || HasAckElicitingFrames(p.StreamFrames)
}
