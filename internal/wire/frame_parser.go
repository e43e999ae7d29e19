package wire

import (
	"bytes"
	"fmt"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/quicvarint"
)

// Parser decodes frames from a packet's decrypted payload, one at a time.
// It is not safe for concurrent use; each connection owns its own, the same
// way it owns its own packet number spaces.
type Parser struct {
	ackDelayExponent uint8
}

// NewParser returns a Parser that applies ackDelayExponent when decoding
// ACK frames, per this endpoint's negotiated transport parameter.
func NewParser(ackDelayExponent uint8) *Parser {
	return &Parser{ackDelayExponent: ackDelayExponent}
}

// ParseNext decodes one frame from data at the given encryption level,
// returning the frame, its encoded length, and any error. A PADDING frame
// sequence is collapsed into a single PaddingFrame.
func (p *Parser) ParseNext(data []byte, level protocol.EncryptionLevel, v protocol.Version) (Frame, int, error) {
	r := bytes.NewReader(data)
	typeNum, err := quicvarint.Read(r)
	if err != nil {
		return nil, 0, err
	}
	frameType, ok := NewFrameType(typeNum)
	if !ok {
		return nil, 0, &FrameFormatError{msg: fmt.Sprintf("unknown frame type: %#x", typeNum)}
	}
	if !frameType.isAllowedAtEncLevel(level) {
		return nil, 0, &FrameFormatError{msg: fmt.Sprintf("frame type %#x not allowed at encryption level %s", frameType, level)}
	}

	var frame Frame
	switch {
	case frameType.IsStreamFrameType():
		frame, err = parseStreamFrame(frameType, r, v)
	case frameType == PaddingFrameType:
		n := 1
		for r.Len() > 0 {
			b, _ := r.ReadByte()
			if b != byte(PaddingFrameType) {
				r.UnreadByte()
				break
			}
			n++
		}
		frame = &PaddingFrame{Len: protocol.ByteCount(n)}
	case frameType == PingFrameType:
		frame = &PingFrame{}
	case frameType == AckFrameType || frameType == AckECNFrameType:
		var ack *AckFrame
		ack, err = parseAckFrame(frameType, r, p.ackDelayExponent, v)
		if err == nil {
			frame = &AckFrameAdapter{AckFrame: ack}
		}
	case frameType == ResetStreamFrameType || frameType == ResetStreamAtFrameType:
		frame, err = parseResetStreamFrame(frameType, r, v)
	case frameType == StopSendingFrameType:
		frame, err = parseStopSendingFrame(r, v)
	case frameType == CryptoFrameType:
		frame, err = parseCryptoFrame(r, v)
	case frameType == NewTokenFrameType:
		frame, err = parseNewTokenFrame(r, v)
	case frameType == MaxDataFrameType:
		frame, err = parseMaxDataFrame(r, v)
	case frameType == MaxStreamDataFrameType:
		frame, err = parseMaxStreamDataFrame(r, v)
	case frameType == BidiMaxStreamsFrameType || frameType == UniMaxStreamsFrameType:
		frame, err = parseMaxStreamsFrame(frameType, r, v)
	case frameType == DataBlockedFrameType:
		frame, err = parseDataBlockedFrame(r, v)
	case frameType == StreamDataBlockedFrameType:
		frame, err = parseStreamDataBlockedFrame(r, v)
	case frameType == BidiStreamsBlockedFrameType || frameType == UniStreamsBlockedFrameType:
		frame, err = parseStreamsBlockedFrame(frameType, r, v)
	case frameType == NewConnectionIDFrameType:
		frame, err = parseNewConnectionIDFrame(r, v)
	case frameType == RetireConnectionIDFrameType:
		frame, err = parseRetireConnectionIDFrame(r, v)
	case frameType == PathChallengeFrameType:
		frame, err = parsePathChallengeFrame(r, v)
	case frameType == PathResponseFrameType:
		frame, err = parsePathResponseFrame(r, v)
	case frameType == ConnectionCloseFrameType || frameType == ApplicationCloseFrameType:
		frame, err = parseConnectionCloseFrame(frameType, r, v)
	case frameType == HandshakeDoneFrameType:
		frame = &HandshakeDoneFrame{}
	case frameType == DatagramNoLengthFrameType || frameType == DatagramWithLengthFrameType:
		frame, err = parseDatagramFrame(frameType, r, v)
	case frameType == AckFrequencyFrameType:
		frame, err = parseAckFrequencyFrame(r, v)
	case frameType == ImmediateAckFrameType:
		frame = &ImmediateAckFrame{}
	default:
		return nil, 0, &FrameFormatError{msg: fmt.Sprintf("unhandled frame type: %#x", frameType)}
	}
	if err != nil {
		return nil, 0, err
	}
	consumed := len(data) - r.Len()
	return frame, consumed, nil
}

// NewFrameType validates typ against the set of frame types this endpoint
// understands, collapsing the eight STREAM type bytes into FrameType
// values directly (they're already contiguous, 0x08-0x0f).
func NewFrameType(typ uint64) (FrameType, bool) {
	if typ&0xf8 == uint64(streamFrameTypeBase) {
		return FrameType(typ), true
	}
	switch FrameType(typ) {
	case PaddingFrameType, PingFrameType, AckFrameType, AckECNFrameType, ResetStreamFrameType,
		StopSendingFrameType, CryptoFrameType, NewTokenFrameType, MaxDataFrameType, MaxStreamDataFrameType,
		BidiMaxStreamsFrameType, UniMaxStreamsFrameType, DataBlockedFrameType, StreamDataBlockedFrameType,
		BidiStreamsBlockedFrameType, UniStreamsBlockedFrameType, NewConnectionIDFrameType,
		RetireConnectionIDFrameType, PathChallengeFrameType, PathResponseFrameType, ConnectionCloseFrameType,
		ApplicationCloseFrameType, HandshakeDoneFrameType, ResetStreamAtFrameType, DatagramNoLengthFrameType,
		DatagramWithLengthFrameType, AckFrequencyFrameType, ImmediateAckFrameType:
		return FrameType(typ), true
	default:
		return 0, false
	}
}
