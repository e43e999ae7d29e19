package wire

import "github.com/quicframe/quicframe/internal/protocol"

// FrameType is the first varint-encoded byte(s) of an encoded frame, per
// RFC 9000 Section 19.
type FrameType uint64

const (
	PaddingFrameType     FrameType = 0x0
	PingFrameType        FrameType = 0x1
	AckFrameType         FrameType = 0x2
	AckECNFrameType      FrameType = 0x3
	ResetStreamFrameType FrameType = 0x4
	StopSendingFrameType FrameType = 0x5
	CryptoFrameType      FrameType = 0x6
	NewTokenFrameType    FrameType = 0x7

	// Stream frame types occupy 0x08-0x0f; the low 3 bits carry OFF/LEN/FIN.
	streamFrameTypeBase FrameType = 0x08

	MaxDataFrameType            FrameType = 0x10
	MaxStreamDataFrameType      FrameType = 0x11
	BidiMaxStreamsFrameType     FrameType = 0x12
	UniMaxStreamsFrameType      FrameType = 0x13
	DataBlockedFrameType        FrameType = 0x14
	StreamDataBlockedFrameType  FrameType = 0x15
	BidiStreamsBlockedFrameType FrameType = 0x16
	UniStreamsBlockedFrameType  FrameType = 0x17
	NewConnectionIDFrameType    FrameType = 0x18
	RetireConnectionIDFrameType FrameType = 0x19
	PathChallengeFrameType      FrameType = 0x1a
	PathResponseFrameType       FrameType = 0x1b
	ConnectionCloseFrameType    FrameType = 0x1c
	ApplicationCloseFrameType   FrameType = 0x1d
	HandshakeDoneFrameType      FrameType = 0x1e

	// ResetStreamAtFrameType is the reliable-reset extension frame,
	// draft-ietf-quic-reliable-stream-reset.
	ResetStreamAtFrameType FrameType = 0x24

	DatagramNoLengthFrameType   FrameType = 0x30
	DatagramWithLengthFrameType FrameType = 0x31

	AckFrequencyFrameType FrameType = 0xaf
	ImmediateAckFrameType FrameType = 0x1f
)

// IsStreamFrameType reports whether t is one of the eight STREAM frame
// type bytes (0x08-0x0f).
func (t FrameType) IsStreamFrameType() bool {
	return t >= streamFrameTypeBase && t <= streamFrameTypeBase+0x7
}

// IsAckEliciting reports whether a packet carrying only this frame type
// would be ack-eliciting (RFC 9000 Section 2: any frame other than ACK,
// PADDING, or CONNECTION_CLOSE).
func (t FrameType) IsAckEliciting() bool {
	switch t {
	case AckFrameType, AckECNFrameType, PaddingFrameType, ConnectionCloseFrameType, ApplicationCloseFrameType:
		return false
	default:
		return true
	}
}

// isAllowedAtEncLevel implements the per-level frame restrictions from
// RFC 9000 Section 12.4.
func (t FrameType) isAllowedAtEncLevel(level protocol.EncryptionLevel) bool {
	switch level {
	case protocol.EncryptionInitial, protocol.EncryptionHandshake:
		switch t {
		case CryptoFrameType, AckFrameType, AckECNFrameType, ConnectionCloseFrameType, PingFrameType, PaddingFrameType:
			return true
		default:
			return false
		}
	case protocol.Encryption0RTT:
		switch t {
		case AckFrameType, AckECNFrameType, CryptoFrameType, NewTokenFrameType,
			PathResponseFrameType, RetireConnectionIDFrameType, HandshakeDoneFrameType:
			return false
		default:
			return true
		}
	case protocol.Encryption1RTT:
		return true
	default:
		panic("wire: unknown encryption level")
	}
}
