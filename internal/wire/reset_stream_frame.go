package wire

import (
	"bytes"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/quicvarint"
)

// ResetStreamFrame is a RESET_STREAM frame, or, when ReliableSize is set,
// the RESET_STREAM_AT extension frame (draft-ietf-quic-reliable-stream-reset):
// a commitment to deliver at least ReliableSize bytes before abandoning
// the stream.
type ResetStreamFrame struct {
	StreamID     protocol.StreamID
	ErrorCode    uint64
	FinalSize    protocol.ByteCount
	ReliableSize protocol.ByteCount // 0 if this is a plain RESET_STREAM
	Reliable     bool
}

func parseResetStreamFrame(frameType FrameType, r *bytes.Reader, _ protocol.Version) (*ResetStreamFrame, error) {
	sid, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	errCode, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	finalSize, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	f := &ResetStreamFrame{
		StreamID:  protocol.StreamID(sid),
		ErrorCode: errCode,
		FinalSize: protocol.ByteCount(finalSize),
	}
	if frameType == ResetStreamAtFrameType {
		reliableSize, err := quicvarint.Read(r)
		if err != nil {
			return nil, err
		}
		f.Reliable = true
		f.ReliableSize = protocol.ByteCount(reliableSize)
		if f.ReliableSize > f.FinalSize {
			return nil, newFrameFormatError("RESET_STREAM_AT: reliable size exceeds final size")
		}
	}
	return f, nil
}

// Append serializes the frame.
func (f *ResetStreamFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	if f.Reliable && f.ReliableSize > f.FinalSize {
		return nil, newFrameFormatError("RESET_STREAM_AT: reliable size exceeds final size")
	}
	if f.Reliable {
		b = append(b, byte(ResetStreamAtFrameType))
	} else {
		b = append(b, byte(ResetStreamFrameType))
	}
	b = quicvarint.Append(b, uint64(f.StreamID))
	b = quicvarint.Append(b, f.ErrorCode)
	b = quicvarint.Append(b, uint64(f.FinalSize))
	if f.Reliable {
		b = quicvarint.Append(b, uint64(f.ReliableSize))
	}
	return b, nil
}

// Length returns the number of bytes Append would write.
func (f *ResetStreamFrame) Length(_ protocol.Version) protocol.ByteCount {
	length := 1 + quicvarint.Len(uint64(f.StreamID)) + quicvarint.Len(f.ErrorCode) + quicvarint.Len(uint64(f.FinalSize))
	if f.Reliable {
		length += quicvarint.Len(uint64(f.ReliableSize))
	}
	return protocol.ByteCount(length)
}

// StopSendingFrame is a STOP_SENDING frame.
type StopSendingFrame struct {
	StreamID  protocol.StreamID
	ErrorCode uint64
}

func parseStopSendingFrame(r *bytes.Reader, _ protocol.Version) (*StopSendingFrame, error) {
	sid, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	errCode, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	return &StopSendingFrame{StreamID: protocol.StreamID(sid), ErrorCode: errCode}, nil
}

func (f *StopSendingFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = append(b, byte(StopSendingFrameType))
	b = quicvarint.Append(b, uint64(f.StreamID))
	b = quicvarint.Append(b, f.ErrorCode)
	return b, nil
}

func (f *StopSendingFrame) Length(_ protocol.Version) protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.StreamID))+quicvarint.Len(f.ErrorCode))
}
