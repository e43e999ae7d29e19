package ackhandler

import (
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// SendMode tells the packet packer what it's allowed to send next.
type SendMode uint8

const (
	// SendNone means nothing needs sending right now.
	SendNone SendMode = iota
	// SendAny means the connection may send any packet it has pending.
	SendAny
	// SendAck means only an ACK may be sent, congestion/pacing permitting.
	SendAck
	// SendPTOInitial, SendPTOHandshake, SendPTOAppData mean a probe packet
	// must be sent in that packet number space to arm the peer into
	// acking, per RFC 9002's probe timeout.
	SendPTOInitial
	SendPTOHandshake
	SendPTOAppData
)

// Stats summarizes what the sent-packet handler has observed, surfaced for
// diagnostics (logging, qlog-style event sinks).
type Stats struct {
	MinRTT      time.Duration
	SmoothedRTT time.Duration
	LatestRTT   time.Duration
}

// SentPacketHandler tracks every outstanding packet across the three packet
// number spaces, drives loss detection and the probe timeout, and feeds
// acks/losses into the congestion controller.
type SentPacketHandler interface {
	// SentPacket registers a newly sent packet as outstanding.
	SentPacket(now time.Time, pn, largestAcked protocol.PacketNumber, streamFrames, otherFrames []Frame, level protocol.EncryptionLevel, size protocol.ByteCount, isPathMTUProbePacket, isPathProbePacket bool)
	// ReceivedAck processes an incoming ACK frame, returning whether a
	// 1-RTT packet was newly acked and an error if the frame references a
	// packet number never sent (a protocol violation).
	ReceivedAck(ack *wire.AckFrame, level protocol.EncryptionLevel, rcvTime time.Time) (acked1RTT bool, err error)
	// ReceivedBytes records bytes received from the peer, used to bound
	// how much an unvalidated path may send (the 3x amplification limit).
	ReceivedBytes(n protocol.ByteCount)
	// DropPackets discards every outstanding packet and history in the
	// given space, e.g. once the Initial or Handshake keys are retired.
	DropPackets(level protocol.EncryptionLevel)
	// ResetForRetry clears 0-RTT/Initial state when the server sends a
	// Retry, since the client must restart the handshake with a new
	// Initial packet number space.
	ResetForRetry(now time.Time)
	// SetHandshakeConfirmed arms the 1-RTT PTO instead of the Handshake
	// one, per RFC 9001 Section 4.9.2.
	SetHandshakeConfirmed()

	// SendMode reports what may be sent right now given pacing,
	// congestion, and any armed PTO.
	SendMode(now time.Time) SendMode
	// TimeUntilSend returns when pacing next allows a packet to be sent.
	TimeUntilSend() time.Time
	// HasPacingBudget reports whether the pacer currently allows sending
	// a full-size packet.
	HasPacingBudget(now time.Time) bool
	// QueueProbePacket forces a probe packet into the given space,
	// returning false if there's nothing outstanding to retransmit.
	QueueProbePacket(level protocol.EncryptionLevel) bool

	// PeekPacketNumber and PopPacketNumber hand out the next packet
	// number to use in a space; Peek doesn't consume it, Pop does.
	PeekPacketNumber(level protocol.EncryptionLevel) (protocol.PacketNumber, protocol.PacketNumberLen)
	PopPacketNumber(level protocol.EncryptionLevel) protocol.PacketNumber

	// GetLossDetectionTimeout and OnLossDetectionTimeout drive the
	// loss-detection/PTO timer: the connection arms a timer for the
	// returned deadline, and calls OnLossDetectionTimeout when it fires.
	GetLossDetectionTimeout() time.Time
	OnLossDetectionTimeout(now time.Time) error

	GetStats() Stats
}

// ReceivedPacketHandler tracks which packet numbers have been received in
// one packet number space, to build outgoing ACK frames and to detect
// duplicates.
type ReceivedPacketHandler interface {
	// IsPotentiallyDuplicate reports whether pn might already have been
	// received; a definite answer isn't always possible once history has
	// been pruned, so this errs toward "maybe" rather than "no".
	IsPotentiallyDuplicate(pn protocol.PacketNumber) bool
	// ReceivedPacket records a newly received packet and whether it was
	// ack-eliciting.
	ReceivedPacket(pn protocol.PacketNumber, ecn protocol.ECN, rcvTime time.Time, isAckEliciting bool) error
	// DropPackets discards this space's receive history, e.g. once its
	// keys are retired.
	DropPackets()
	// GetAlarmTimeout returns when a delayed ACK must be sent by.
	GetAlarmTimeout() time.Time
	// GetAckFrame builds the ACK frame to send now, or nil if nothing is
	// owed. onlyIfQueued restricts the result to only the case an ACK was
	// actually scheduled (vs. opportunistically piggy-backing one).
	GetAckFrame(onlyIfQueued bool) *wire.AckFrame
}
