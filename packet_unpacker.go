package quic

import (
	"fmt"

	"github.com/quicframe/quicframe/internal/handshake"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// unpackedPacket is one packet's decrypted payload, split back into frames.
type unpackedPacket struct {
	encryptionLevel protocol.EncryptionLevel
	hdr             *wire.Header // nil for a short header packet
	packetNumber    protocol.PacketNumber
	frames          []wire.Frame
}

// openingManager is the subset of handshake.CryptoSetup the unpacker needs
// to remove protection at each level.
type openingManager interface {
	GetInitialOpener() (handshake.LongHeaderOpener, error)
	GetHandshakeOpener() (handshake.LongHeaderOpener, error)
	Get1RTTOpener() (handshake.ShortHeaderOpener, error)
}

// headerUnprotector is satisfied by both LongHeaderOpener and
// ShortHeaderOpener; only DecryptHeader is needed here.
type headerUnprotector interface {
	DecryptHeader(sample []byte, firstByte *byte, pnBytes []byte)
}

type packetUnpacker struct {
	cryptoSetup openingManager
	parser      *wire.Parser
	shortHeaderConnIDLen int

	largestRcvdPN [4]protocol.PacketNumber // indexed by protocol.EncryptionLevel - 1
}

func newPacketUnpacker(cryptoSetup openingManager, parser *wire.Parser, shortHeaderConnIDLen int) *packetUnpacker {
	return &packetUnpacker{cryptoSetup: cryptoSetup, parser: parser, shortHeaderConnIDLen: shortHeaderConnIDLen}
}

func (u *packetUnpacker) largestRcvd(level protocol.EncryptionLevel) protocol.PacketNumber {
	return u.largestRcvdPN[level-1]
}

func (u *packetUnpacker) setLargestRcvd(level protocol.EncryptionLevel, pn protocol.PacketNumber) {
	if pn > u.largestRcvdPN[level-1] {
		u.largestRcvdPN[level-1] = pn
	}
}

// UnpackLongHeader removes header protection and decrypts one Initial or
// Handshake packet; any other long header type, 0-RTT included, is
// rejected with an error. data holds exactly this packet (the caller has
// already split any coalesced packets apart via wire.ParseLongHeaderPacket).
func (u *packetUnpacker) UnpackLongHeader(hdr *wire.Header, data []byte, v protocol.Version) (*unpackedPacket, error) {
	var opener handshake.LongHeaderOpener
	var err error
	switch hdr.Type {
	case wire.PacketTypeInitial:
		opener, err = u.cryptoSetup.GetInitialOpener()
	case wire.PacketTypeHandshake:
		opener, err = u.cryptoSetup.GetHandshakeOpener()
	default:
		return nil, fmt.Errorf("quic: unsupported long header packet type %s", hdr.Type)
	}
	if err != nil {
		return nil, err
	}

	level := hdr.Type.EncryptionLevel()
	hdrOffset := 0
	pnOffset := int(hdr.ParsedLen())
	pn, pnLen, err := unprotectPacketNumber(data, hdrOffset, pnOffset, opener)
	if err != nil {
		return nil, err
	}
	fullPN := protocol.DecodePacketNumber(pnLen, u.largestRcvd(level), pn)

	headerBytes := make([]byte, pnOffset+int(pnLen))
	copy(headerBytes, data[:pnOffset+int(pnLen)])

	payloadOffset := pnOffset + int(pnLen)
	decrypted, err := opener.Open(data[payloadOffset:payloadOffset], data[payloadOffset:], fullPN, headerBytes)
	if err != nil {
		return nil, err
	}

	frames, err := u.parseFrames(decrypted, level, v)
	if err != nil {
		return nil, err
	}
	u.setLargestRcvd(level, fullPN)
	return &unpackedPacket{encryptionLevel: level, hdr: hdr, packetNumber: fullPN, frames: frames}, nil
}

// UnpackShortHeader removes header protection and decrypts a 1-RTT packet.
func (u *packetUnpacker) UnpackShortHeader(data []byte, v protocol.Version) (*unpackedPacket, error) {
	opener, err := u.cryptoSetup.Get1RTTOpener()
	if err != nil {
		return nil, err
	}

	pnOffset := 1 + u.shortHeaderConnIDLen
	pn, pnLen, err := unprotectPacketNumber(data, 0, pnOffset, opener)
	if err != nil {
		return nil, err
	}
	fullPN := protocol.DecodePacketNumber(pnLen, u.largestRcvd(protocol.Encryption1RTT), pn)

	kp := protocol.KeyPhaseZero
	if data[0]&0b100 > 0 {
		kp = protocol.KeyPhaseOne
	}

	headerBytes := make([]byte, pnOffset+int(pnLen))
	copy(headerBytes, data[:pnOffset+int(pnLen)])

	payloadOffset := pnOffset + int(pnLen)
	decrypted, err := opener.Open(data[payloadOffset:payloadOffset], data[payloadOffset:], fullPN, kp, headerBytes)
	if err != nil {
		return nil, err
	}

	frames, err := u.parseFrames(decrypted, protocol.Encryption1RTT, v)
	if err != nil {
		return nil, err
	}
	u.setLargestRcvd(protocol.Encryption1RTT, fullPN)
	return &unpackedPacket{encryptionLevel: protocol.Encryption1RTT, packetNumber: fullPN, frames: frames}, nil
}

func (u *packetUnpacker) parseFrames(payload []byte, level protocol.EncryptionLevel, v protocol.Version) ([]wire.Frame, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("quic: packet at %s contains no frames", level)
	}
	var frames []wire.Frame
	for len(payload) > 0 {
		frame, n, err := u.parser.ParseNext(payload, level, v)
		if err != nil {
			return nil, err
		}
		if _, ok := frame.(*wire.PaddingFrame); !ok {
			frames = append(frames, frame)
		}
		payload = payload[n:]
	}
	return frames, nil
}

// unprotectPacketNumber removes header protection in place, per RFC 9001
// Section 5.4.2: the header protection sample is always taken 4 bytes past
// pnOffset, regardless of the packet number's actual length, so the first
// byte must be unprotected (revealing that length) before the packet
// number bytes themselves can be unprotected without touching the
// ciphertext that immediately follows them.
func unprotectPacketNumber(data []byte, hdrOffset, pnOffset int, opener headerUnprotector) (protocol.PacketNumber, protocol.PacketNumberLen, error) {
	sampleOffset := pnOffset + 4
	if sampleOffset+16 > len(data) {
		return 0, 0, fmt.Errorf("quic: packet too short to sample for header protection")
	}
	sample := data[sampleOffset : sampleOffset+16]

	opener.DecryptHeader(sample, &data[hdrOffset], nil)
	pnLen := protocol.PacketNumberLen(data[hdrOffset]&0x3) + 1

	dummy := data[hdrOffset]
	opener.DecryptHeader(sample, &dummy, data[pnOffset:pnOffset+int(pnLen)])

	var pn protocol.PacketNumber
	for i := 0; i < int(pnLen); i++ {
		pn = pn<<8 | protocol.PacketNumber(data[pnOffset+i])
	}
	return pn, pnLen, nil
}
