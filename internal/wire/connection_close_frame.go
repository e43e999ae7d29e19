package wire

import (
	"bytes"
	"io"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/quicvarint"
)

// ConnectionCloseFrame is a CONNECTION_CLOSE frame, transport or
// application variant depending on IsApplicationError.
type ConnectionCloseFrame struct {
	IsApplicationError bool
	ErrorCode          uint64
	FrameType          uint64 // only meaningful for the transport variant
	ReasonPhrase       string
}

func parseConnectionCloseFrame(frameType FrameType, r *bytes.Reader, _ protocol.Version) (*ConnectionCloseFrame, error) {
	f := &ConnectionCloseFrame{IsApplicationError: frameType == ApplicationCloseFrameType}
	errCode, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	f.ErrorCode = errCode
	if !f.IsApplicationError {
		ft, err := quicvarint.Read(r)
		if err != nil {
			return nil, err
		}
		f.FrameType = ft
	}
	reasonLen, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	if reasonLen > uint64(r.Len()) {
		return nil, io.EOF
	}
	reason := make([]byte, reasonLen)
	if _, err := io.ReadFull(r, reason); err != nil {
		return nil, err
	}
	f.ReasonPhrase = string(reason)
	return f, nil
}

// Append serializes the frame.
func (f *ConnectionCloseFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	if f.IsApplicationError {
		b = append(b, byte(ApplicationCloseFrameType))
	} else {
		b = append(b, byte(ConnectionCloseFrameType))
	}
	b = quicvarint.Append(b, f.ErrorCode)
	if !f.IsApplicationError {
		b = quicvarint.Append(b, f.FrameType)
	}
	b = quicvarint.Append(b, uint64(len(f.ReasonPhrase)))
	return append(b, []byte(f.ReasonPhrase)...), nil
}

// Length returns the number of bytes Append would write.
func (f *ConnectionCloseFrame) Length(_ protocol.Version) protocol.ByteCount {
	length := 1 + quicvarint.Len(f.ErrorCode) + quicvarint.Len(uint64(len(f.ReasonPhrase))) + len(f.ReasonPhrase)
	if !f.IsApplicationError {
		length += quicvarint.Len(f.FrameType)
	}
	return protocol.ByteCount(length)
}
