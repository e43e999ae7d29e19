package wire

import (
	"bytes"
	"io"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/quicvarint"
)

// StreamFrame is a STREAM frame. The presence of offset and length fields
// on the wire, and the FIN bit, are encoded in the low 3 bits of the type
// byte (RFC 9000 Section 19.8); DataLenPresent controls whether Append
// writes an explicit length (false means "rest of packet", used when this
// is the last frame).
type StreamFrame struct {
	StreamID       protocol.StreamID
	Offset         protocol.ByteCount
	Data           []byte
	Fin            bool
	DataLenPresent bool

	fromPool bool
}

func parseStreamFrame(frameType FrameType, r *bytes.Reader, _ protocol.Version) (*StreamFrame, error) {
	hasOffset := frameType&0b100 > 0
	hasLen := frameType&0b010 > 0
	fin := frameType&0b001 > 0

	sid, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	f := GetStreamFrame()
	f.StreamID = protocol.StreamID(sid)
	f.Fin = fin
	f.DataLenPresent = hasLen

	if hasOffset {
		offset, err := quicvarint.Read(r)
		if err != nil {
			return nil, err
		}
		f.Offset = protocol.ByteCount(offset)
	}

	var dataLen uint64
	if hasLen {
		dataLen, err = quicvarint.Read(r)
		if err != nil {
			return nil, err
		}
		if dataLen > uint64(r.Len()) {
			return nil, io.EOF
		}
	} else {
		dataLen = uint64(r.Len())
	}
	f.Data = make([]byte, dataLen)
	if _, err := io.ReadFull(r, f.Data); err != nil {
		return nil, err
	}
	if !fin && dataLen == 0 {
		return nil, newFrameFormatError("STREAM frame without data and without FIN")
	}
	return f, nil
}

// Append serializes the frame.
func (f *StreamFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	typeByte := byte(streamFrameTypeBase)
	if f.Fin {
		typeByte |= 0b001
	}
	if f.DataLenPresent {
		typeByte |= 0b010
	}
	if f.Offset != 0 {
		typeByte |= 0b100
	}
	b = append(b, typeByte)
	b = quicvarint.Append(b, uint64(f.StreamID))
	if f.Offset != 0 {
		b = quicvarint.Append(b, uint64(f.Offset))
	}
	if f.DataLenPresent {
		b = quicvarint.Append(b, uint64(len(f.Data)))
	}
	return append(b, f.Data...), nil
}

// Length returns the number of bytes Append would write.
func (f *StreamFrame) Length(_ protocol.Version) protocol.ByteCount {
	length := 1 + quicvarint.Len(uint64(f.StreamID))
	if f.Offset != 0 {
		length += quicvarint.Len(uint64(f.Offset))
	}
	if f.DataLenPresent {
		length += quicvarint.Len(uint64(len(f.Data)))
	}
	return protocol.ByteCount(length) + protocol.ByteCount(len(f.Data))
}

// MaxDataLen returns how many bytes of stream data would fit into a frame
// no larger than maxSize, given the frame's other (already-set) fields.
// Returns 0 if not even an empty frame fits.
func (f *StreamFrame) MaxDataLen(maxSize protocol.ByteCount, _ protocol.Version) protocol.ByteCount {
	headerLen := 1 + protocol.ByteCount(quicvarint.Len(uint64(f.StreamID)))
	if f.Offset != 0 {
		headerLen += protocol.ByteCount(quicvarint.Len(uint64(f.Offset)))
	}
	if !f.DataLenPresent {
		if maxSize < headerLen {
			return 0
		}
		return maxSize - headerLen
	}
	// The length field's own size depends on the value it encodes, which
	// depends on the remaining space — same fixed-point iteration the
	// teacher's packet builder uses for this exact problem.
	maxLen := maxSize - headerLen
	if maxLen < 0 {
		return 0
	}
	lenOfLenField := protocol.ByteCount(quicvarint.Len(uint64(maxLen)))
	if maxLen-lenOfLenField < 0 {
		return 0
	}
	if protocol.ByteCount(quicvarint.Len(uint64(maxLen-lenOfLenField))) != lenOfLenField {
		maxLen -= lenOfLenField - protocol.ByteCount(quicvarint.Len(uint64(maxLen-lenOfLenField)))
	} else {
		maxLen -= lenOfLenField
	}
	return maxLen
}

// MaybeSplitOffFrame returns a new StreamFrame, no larger than maxSize,
// carrying as much of the start of f's data as fits, leaving the remainder
// in f, if f doesn't already fit. The bool reports whether f needed
// splitting; the returned frame is nil if not even one byte of data fits.
func (f *StreamFrame) MaybeSplitOffFrame(maxSize protocol.ByteCount, v protocol.Version) (*StreamFrame, bool) {
	if f.Length(v) <= maxSize {
		return nil, false
	}
	n := f.MaxDataLen(maxSize, v)
	if n <= 0 {
		return nil, true
	}
	head := GetStreamFrame()
	head.StreamID = f.StreamID
	head.Offset = f.Offset
	head.DataLenPresent = f.DataLenPresent
	head.Data = f.Data[:n]
	head.Fin = false

	f.Offset += n
	f.Data = f.Data[n:]
	return head, true
}
