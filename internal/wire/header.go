package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/quicvarint"
)

// ErrInvalidReservedBits is returned when one of the header's reserved bits
// (required to be zero before header protection is removed) is set.
var ErrInvalidReservedBits = errors.New("invalid reserved bits")

// ErrUnsupportedVersion is returned when a long header packet names a
// version this endpoint doesn't implement.
var ErrUnsupportedVersion = errors.New("unsupported version")

// PacketType distinguishes the four long-header packet types.
type PacketType uint8

const (
	PacketTypeInitial PacketType = iota
	PacketType0RTT
	PacketTypeHandshake
	PacketTypeRetry
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeInitial:
		return "Initial"
	case PacketType0RTT:
		return "0-RTT"
	case PacketTypeHandshake:
		return "Handshake"
	case PacketTypeRetry:
		return "Retry"
	default:
		return "unknown packet type"
	}
}

// IsLongHeaderPacket reports whether the first byte of a datagram indicates
// a long header packet (the two highest bits will be 1 for long headers on
// a QUIC packet, or part of a version negotiation packet).
func IsLongHeaderPacket(firstByte byte) bool {
	return firstByte&0x80 > 0
}

// IsVersionNegotiationPacket reports whether b begins a Version
// Negotiation packet (long header form, version field all zero).
func IsVersionNegotiationPacket(b []byte) bool {
	if len(b) < 5 {
		return false
	}
	return IsLongHeaderPacket(b[0]) && b[1] == 0 && b[2] == 0 && b[3] == 0 && b[4] == 0
}

// ParseConnectionID extracts the destination connection ID from a raw
// datagram without otherwise parsing the header. shortHeaderConnIDLen is
// this endpoint's own connection ID length, needed because short headers
// don't carry a length prefix.
func ParseConnectionID(data []byte, shortHeaderConnIDLen int) (protocol.ConnectionID, error) {
	if len(data) == 0 {
		return nil, io.EOF
	}
	if !IsLongHeaderPacket(data[0]) {
		if len(data) < 1+shortHeaderConnIDLen {
			return nil, io.EOF
		}
		return protocol.ConnectionID(data[1 : 1+shortHeaderConnIDLen]), nil
	}
	if len(data) < 6 {
		return nil, io.EOF
	}
	destLen := int(data[5])
	if len(data) < 6+destLen {
		return nil, io.EOF
	}
	return protocol.ConnectionID(data[6 : 6+destLen]), nil
}

// Header is the version-independent, not-yet-packet-number-protected part
// of a long header packet.
type Header struct {
	typeByte byte
	Type     PacketType

	Version          protocol.Version
	DestConnectionID protocol.ConnectionID
	SrcConnectionID  protocol.ConnectionID

	Token  []byte
	Length protocol.ByteCount

	parsedLen protocol.ByteCount
}

// ParsedLen reports how many bytes parseLongHeader consumed.
func (h *Header) ParsedLen() protocol.ByteCount { return h.parsedLen }

// ParseLongHeaderPacket splits data at the packet length recorded in the
// long header, returning the header, the bytes of this one packet
// (including header), and any bytes of a subsequent coalesced packet.
func ParseLongHeaderPacket(data []byte) (hdr *Header, packet []byte, rest []byte, err error) {
	hdr, err = parseLongHeader(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, ErrUnsupportedVersion) {
			return hdr, nil, nil, ErrUnsupportedVersion
		}
		return nil, nil, nil, err
	}
	if hdr.Version == 0 || hdr.Type == PacketTypeRetry {
		return hdr, data, nil, nil
	}
	end := int(hdr.parsedLen + hdr.Length)
	if end > len(data) {
		return nil, nil, nil, fmt.Errorf("wire: packet length (%d bytes) is smaller than the expected length (%d bytes)", len(data)-int(hdr.parsedLen), hdr.Length)
	}
	return hdr, data[:end], data[end:], nil
}

func parseLongHeader(r *bytes.Reader) (*Header, error) {
	start := r.Len()
	typeByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	h := &Header{typeByte: typeByte}
	if err := h.parse(r); err != nil {
		return h, err
	}
	h.parsedLen = protocol.ByteCount(start - r.Len())
	return h, nil
}

func (h *Header) parse(r *bytes.Reader) error {
	var v uint32
	for i := 0; i < 4; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		v = v<<8 | uint32(b)
	}
	h.Version = protocol.Version(v)
	if h.Version != 0 && h.typeByte&0x40 == 0 {
		return errors.New("wire: not a QUIC packet")
	}
	destLen, err := r.ReadByte()
	if err != nil {
		return err
	}
	destID := make([]byte, destLen)
	if _, err := io.ReadFull(r, destID); err != nil {
		return err
	}
	h.DestConnectionID = protocol.ConnectionID(destID)

	srcLen, err := r.ReadByte()
	if err != nil {
		return err
	}
	srcID := make([]byte, srcLen)
	if _, err := io.ReadFull(r, srcID); err != nil {
		return err
	}
	h.SrcConnectionID = protocol.ConnectionID(srcID)

	if h.Version == 0 {
		return nil // version negotiation packet, nothing more to parse
	}
	if !protocol.IsSupportedVersion(protocol.SupportedVersions, h.Version) {
		return ErrUnsupportedVersion
	}

	switch (h.typeByte & 0x30) >> 4 {
	case 0x0:
		h.Type = PacketTypeInitial
	case 0x1:
		h.Type = PacketType0RTT
	case 0x2:
		h.Type = PacketTypeHandshake
	case 0x3:
		h.Type = PacketTypeRetry
	}

	if h.Type == PacketTypeRetry {
		tokenLen := r.Len() - 16
		if tokenLen <= 0 {
			return io.EOF
		}
		h.Token = make([]byte, tokenLen)
		if _, err := io.ReadFull(r, h.Token); err != nil {
			return err
		}
		_, err := r.Seek(16, io.SeekCurrent)
		return err
	}

	if h.Type == PacketTypeInitial {
		tokenLen, err := quicvarint.Read(r)
		if err != nil {
			return err
		}
		if tokenLen > uint64(r.Len()) {
			return io.EOF
		}
		h.Token = make([]byte, tokenLen)
		if _, err := io.ReadFull(r, h.Token); err != nil {
			return err
		}
	}

	length, err := quicvarint.Read(r)
	if err != nil {
		return err
	}
	h.Length = protocol.ByteCount(length)
	return nil
}

// EncryptionLevel maps the long-header packet type onto its encryption level.
func (t PacketType) EncryptionLevel() protocol.EncryptionLevel {
	switch t {
	case PacketTypeInitial:
		return protocol.EncryptionInitial
	case PacketTypeHandshake:
		return protocol.EncryptionHandshake
	case PacketType0RTT:
		return protocol.Encryption0RTT
	default:
		panic("wire: Retry packets have no encryption level")
	}
}

// AppendLongHeader writes the long-header fields (everything up to but not
// including the packet number) for a packet of type typ.
func AppendLongHeader(b []byte, typ PacketType, version protocol.Version, destConnID, srcConnID protocol.ConnectionID, token []byte, length protocol.ByteCount, pnLen protocol.PacketNumberLen) []byte {
	var firstByte byte = 0xc0
	switch typ {
	case PacketTypeInitial:
		firstByte |= 0x0 << 4
	case PacketType0RTT:
		firstByte |= 0x1 << 4
	case PacketTypeHandshake:
		firstByte |= 0x2 << 4
	case PacketTypeRetry:
		firstByte |= 0x3 << 4
	}
	firstByte |= byte(pnLen - 1)
	b = append(b, firstByte)
	b = append(b, byte(version>>24), byte(version>>16), byte(version>>8), byte(version))
	b = append(b, byte(destConnID.Len()))
	b = append(b, destConnID.Bytes()...)
	b = append(b, byte(srcConnID.Len()))
	b = append(b, srcConnID.Bytes()...)
	if typ == PacketTypeInitial {
		b = quicvarint.Append(b, uint64(len(token)))
		b = append(b, token...)
	}
	b = quicvarint.AppendWithLen(b, uint64(length), 2)
	return b
}

// ShortHeader is the version-independent, not-yet-unprotected part of a
// 1-RTT (short header) packet.
type ShortHeader struct {
	DestConnectionID protocol.ConnectionID
	PacketNumber     protocol.PacketNumber
	PacketNumberLen  protocol.PacketNumberLen
	KeyPhase         protocol.KeyPhaseBit
}

// ParseShortHeader parses a 1-RTT packet's header, given this endpoint's
// own connection ID length (short headers carry no length field).
func ParseShortHeader(data []byte, connIDLen int) (*ShortHeader, int, error) {
	if len(data) == 0 {
		return nil, 0, io.EOF
	}
	if IsLongHeaderPacket(data[0]) {
		return nil, 0, errors.New("wire: not a short header packet")
	}
	if data[0]&0x40 == 0 {
		return nil, 0, errors.New("wire: not a QUIC packet")
	}
	pnLen := protocol.PacketNumberLen(data[0]&0b11) + 1
	if len(data) < 1+connIDLen+int(pnLen) {
		return nil, 0, io.EOF
	}
	destID := make([]byte, connIDLen)
	copy(destID, data[1:1+connIDLen])

	pos := 1 + connIDLen
	var pn protocol.PacketNumber
	for i := 0; i < int(pnLen); i++ {
		pn = pn<<8 | protocol.PacketNumber(data[pos+i])
	}
	kp := protocol.KeyPhaseZero
	if data[0]&0b100 > 0 {
		kp = protocol.KeyPhaseOne
	}
	var err error
	if data[0]&0x18 != 0 {
		err = ErrInvalidReservedBits
	}
	return &ShortHeader{
		DestConnectionID: protocol.ConnectionID(destID),
		PacketNumber:     pn,
		PacketNumberLen:  pnLen,
		KeyPhase:         kp,
	}, pos + int(pnLen), err
}

// Len returns the on-wire length of the short header, including packet number.
func (h *ShortHeader) Len() protocol.ByteCount {
	return 1 + protocol.ByteCount(h.DestConnectionID.Len()) + protocol.ByteCount(h.PacketNumberLen)
}

// AppendShortHeader writes a 1-RTT packet's header.
func AppendShortHeader(b []byte, destConnID protocol.ConnectionID, pn protocol.PacketNumber, pnLen protocol.PacketNumberLen, kp protocol.KeyPhaseBit) []byte {
	var firstByte byte = 0x40
	if kp {
		firstByte |= 0b100
	}
	firstByte |= byte(pnLen - 1)
	b = append(b, firstByte)
	b = append(b, destConnID.Bytes()...)
	for i := int(pnLen) - 1; i >= 0; i-- {
		b = append(b, byte(pn>>(8*i)))
	}
	return b
}
