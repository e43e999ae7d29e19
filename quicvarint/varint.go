package quicvarint

import (
	"fmt"
	"io"
)

// taken from the QUIC draft, Appendix A
const (
	maxVarInt1 = 63
	maxVarInt2 = 16383
	maxVarInt4 = 1073741823
	maxVarInt8 = 4611686018427387903
)

const (
	// Min is the minimum value allowed for a variable-length integer.
	Min = 0
	// Max is the maximum allowed value for a variable-length integer.
	Max = maxVarInt8
)

// Read reads a number in the QUIC varint format from r.
func Read(r io.ByteReader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	length := 1 << ((b & 0xc0) >> 6)
	b = b & (0xff - 0xc0)
	val := uint64(b)
	for i := 1; i < length; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		val = val<<8 + uint64(b)
	}
	return val, nil
}

// Parse reads a number in the QUIC varint format from b, returning the
// number of bytes consumed. Unlike Read, it does not need an io.ByteReader.
func Parse(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, io.EOF
	}
	length := 1 << ((b[0] & 0xc0) >> 6)
	if len(b) < length {
		return 0, 0, io.ErrUnexpectedEOF
	}
	val := uint64(b[0] & (0xff - 0xc0))
	for i := 1; i < length; i++ {
		val = val<<8 + uint64(b[i])
	}
	return val, length, nil
}

// Len determines the number of bytes that will be needed to write the
// number val.
func Len(val uint64) int {
	if val <= maxVarInt1 {
		return 1
	}
	if val <= maxVarInt2 {
		return 2
	}
	if val <= maxVarInt4 {
		return 4
	}
	if val <= maxVarInt8 {
		return 8
	}
	// Don't need to check this, but it's useful to catch a bug in our code
	// that exceeds this value.
	panic(fmt.Errorf("value doesn't fit into 62 bits: %d", val))
}

// Append appends val in the QUIC varint format, using the minimum number
// of bytes.
func Append(b []byte, val uint64) []byte {
	return AppendWithLen(b, val, Len(val))
}

// AppendWithLen appends val in the QUIC varint format, using exactly length
// bytes. length can be 1, 2, 4 or 8, and must be at least the minimal
// encoding length for val (use this to force a non-minimal encoding, e.g.
// to allow later in-place patching of the value).
func AppendWithLen(b []byte, val uint64, length int) []byte {
	if length != 1 && length != 2 && length != 4 && length != 8 {
		panic("invalid varint length")
	}
	minLen := Len(val)
	if minLen > length {
		panic(fmt.Sprintf("cannot encode value %d in %d bytes", val, length))
	}
	v := val
	switch length {
	case 2:
		v |= 0x4000
	case 4:
		v |= 0x80000000
	case 8:
		v |= 0xc000000000000000
	}
	for i := length - 1; i >= 0; i-- {
		b = append(b, uint8(v>>(8*i)))
	}
	return b
}
