package wire

import (
	"bytes"
	"io"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/quicvarint"
)

// CryptoFrame carries a range of the TLS handshake byte stream, one per
// encryption level's crypto stream.
type CryptoFrame struct {
	Offset protocol.ByteCount
	Data   []byte
}

func parseCryptoFrame(r *bytes.Reader, _ protocol.Version) (*CryptoFrame, error) {
	offset, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	dataLen, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	if dataLen > uint64(r.Len()) {
		return nil, io.EOF
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return &CryptoFrame{Offset: protocol.ByteCount(offset), Data: data}, nil
}

// Append serializes the frame.
func (f *CryptoFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = append(b, byte(CryptoFrameType))
	b = quicvarint.Append(b, uint64(f.Offset))
	b = quicvarint.Append(b, uint64(len(f.Data)))
	return append(b, f.Data...), nil
}

// Length returns the number of bytes Append would write.
func (f *CryptoFrame) Length(_ protocol.Version) protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.Offset))+quicvarint.Len(uint64(len(f.Data)))) + protocol.ByteCount(len(f.Data))
}

// MaxDataLen returns how much data would fit into a frame of size maxSize.
func (f *CryptoFrame) MaxDataLen(maxSize protocol.ByteCount) protocol.ByteCount {
	headerLen := 1 + protocol.ByteCount(quicvarint.Len(uint64(f.Offset)))
	maxLen := maxSize - headerLen
	if maxLen <= 0 {
		return 0
	}
	lenOfLenField := protocol.ByteCount(quicvarint.Len(uint64(maxLen)))
	maxLen -= lenOfLenField
	if maxLen < 0 {
		return 0
	}
	return maxLen
}

// MaybeSplitOffFrame returns a new CryptoFrame, no larger than maxSize,
// carrying as much of the start of f's data as fits, leaving the remainder
// in f, if f doesn't already fit. The bool reports whether f needed
// splitting; the returned frame is nil if not even one byte of data fits.
func (f *CryptoFrame) MaybeSplitOffFrame(maxSize protocol.ByteCount) (*CryptoFrame, bool) {
	if f.Length(0) <= maxSize {
		return nil, false
	}
	n := f.MaxDataLen(maxSize)
	if n <= 0 {
		return nil, true
	}
	head := &CryptoFrame{Offset: f.Offset, Data: f.Data[:n]}
	f.Offset += n
	f.Data = f.Data[n:]
	return head, true
}
