package quic

import (
	"fmt"

	"github.com/quicframe/quicframe/internal/ackhandler"
	"github.com/quicframe/quicframe/internal/handshake"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/qerr"
	"github.com/quicframe/quicframe/internal/wire"
)

// longHeaderPacket is one Initial or Handshake packet, ready to be appended
// to an outgoing datagram. 0-RTT packing is out of scope: this module
// never sends application data before the handshake completes.
type longHeaderPacket struct {
	header       *wire.Header
	ack          *wire.AckFrame
	frames       []ackhandler.Frame
	length       protocol.ByteCount
	packetNumber protocol.PacketNumber
}

func (p *longHeaderPacket) EncryptionLevel() protocol.EncryptionLevel {
	if p.header.Type == wire.PacketTypeInitial {
		return protocol.EncryptionInitial
	}
	return protocol.EncryptionHandshake
}

func (p *longHeaderPacket) IsAckEliciting() bool {
	return ackhandler.HasAckElicitingFrames(p.frames)
}

// shortHeaderPacket is a single 1-RTT packet.
type shortHeaderPacket struct {
	DestConnID      protocol.ConnectionID
	PacketNumber    protocol.PacketNumber
	PacketNumberLen protocol.PacketNumberLen
	KeyPhase        protocol.KeyPhaseBit
	Ack             *wire.AckFrame
	Frames          []ackhandler.Frame
	StreamFrames    []ackhandler.Frame
	Length          protocol.ByteCount

	IsPathMTUProbePacket bool
	IsPathProbePacket    bool
}

func (p *shortHeaderPacket) IsAckEliciting() bool {
	return ackhandler.HasAckElicitingFrames(p.Frames) || ackhandler.HasAckElicitingFrames(p.StreamFrames)
}

// coalescedPacket is one or more QUIC packets coalesced into a single UDP
// datagram, RFC 9000 Section 12.2: the unit the send loop actually writes.
type coalescedPacket struct {
	buffer         []byte
	longHdrPackets []*longHeaderPacket
	shortHdrPacket *shortHeaderPacket
}

func (p *coalescedPacket) IsOnlyShortHeaderPacket() bool {
	return len(p.longHdrPackets) == 0 && p.shortHdrPacket != nil
}

// sealingManager is the subset of handshake.CryptoSetup the packer needs to
// protect packets at each level.
type sealingManager interface {
	GetInitialSealer() (handshake.LongHeaderSealer, error)
	GetHandshakeSealer() (handshake.LongHeaderSealer, error)
	Get1RTTSealer() (handshake.ShortHeaderSealer, error)
}

// ackFrameSource supplies the ACK frame to attach to the next packet in one
// packet number space, if any is owed.
type ackFrameSource func(encLevel protocol.EncryptionLevel, onlyIfQueued bool) *wire.AckFrame

type packetPacker struct {
	srcConnID     protocol.ConnectionID
	getDestConnID func() protocol.ConnectionID

	perspective protocol.Perspective
	cryptoSetup sealingManager

	initialStream   cryptoStream
	handshakeStream cryptoStream

	retransmissionQueue *retransmissionQueue
	datagramQueue       *datagramQueue
	windowUpdateQueue   *windowUpdateQueue
	framer              *framer

	getAckFrame    ackFrameSource
	pnManager      ackhandler.SentPacketHandler
	maxPacketSize  protocol.ByteCount
}

func newPacketPacker(
	srcConnID protocol.ConnectionID,
	getDestConnID func() protocol.ConnectionID,
	initialStream, handshakeStream cryptoStream,
	pnManager ackhandler.SentPacketHandler,
	retransmissionQueue *retransmissionQueue,
	cryptoSetup sealingManager,
	framer *framer,
	windowUpdateQueue *windowUpdateQueue,
	datagramQueue *datagramQueue,
	getAckFrame ackFrameSource,
	perspective protocol.Perspective,
) *packetPacker {
	return &packetPacker{
		srcConnID:           srcConnID,
		getDestConnID:       getDestConnID,
		initialStream:       initialStream,
		handshakeStream:     handshakeStream,
		pnManager:           pnManager,
		retransmissionQueue: retransmissionQueue,
		cryptoSetup:         cryptoSetup,
		framer:              framer,
		windowUpdateQueue:   windowUpdateQueue,
		datagramQueue:       datagramQueue,
		getAckFrame:         getAckFrame,
		perspective:         perspective,
		maxPacketSize:       protocol.MinInitialPacketSize,
	}
}

// SetMaxPacketSize replaces the datagram budget, which starts at
// MinInitialPacketSize. No code in this module calls it, so that budget
// is never raised.
func (p *packetPacker) SetMaxPacketSize(s protocol.ByteCount) {
	p.maxPacketSize = s
}

// PackCoalescedPacket builds one UDP datagram's worth of QUIC packets,
// coalescing Initial, Handshake, and 1-RTT packets (in that order, as RFC
// 9000 Section 12.2 requires) for whichever of those levels currently have
// keys and something to send. onlyAck restricts every level to an
// ACK-only packet, used when congestion/pacing forbids anything else.
func (p *packetPacker) PackCoalescedPacket(onlyAck bool, v protocol.Version) (*coalescedPacket, error) {
	packet := &coalescedPacket{}
	var buf []byte
	isMTUProbe := false
	addedInitial := false

	for _, encLevel := range [...]protocol.EncryptionLevel{protocol.EncryptionInitial, protocol.EncryptionHandshake} {
		sealer, err := p.sealerFor(encLevel)
		if err == handshake.ErrKeysNotYetAvailable || err == handshake.ErrKeysDropped {
			continue
		}
		if err != nil {
			return nil, err
		}
		remaining := p.maxPacketSize - protocol.ByteCount(len(buf))
		if remaining < protocol.MinCoalescedPacketSize {
			break
		}
		longPacket, payloadBuf, err := p.appendLongHeaderPacket(buf, encLevel, sealer, onlyAck, remaining, v)
		if err != nil {
			return nil, err
		}
		if longPacket == nil {
			continue
		}
		buf = payloadBuf
		packet.longHdrPackets = append(packet.longHdrPackets, longPacket)
		if encLevel == protocol.EncryptionInitial {
			addedInitial = true
		}
	}

	if sealer, err := p.cryptoSetup.Get1RTTSealer(); err == nil {
		remaining := p.maxPacketSize - protocol.ByteCount(len(buf))
		if remaining >= protocol.MinCoalescedPacketSize {
			shortPacket, payloadBuf, err := p.appendShortHeaderPacket(buf, sealer, onlyAck, remaining, isMTUProbe, v)
			if err != nil {
				return nil, err
			}
			if shortPacket != nil {
				buf = payloadBuf
				packet.shortHdrPacket = shortPacket
			}
		}
	}

	if len(packet.longHdrPackets) == 0 && packet.shortHdrPacket == nil {
		return nil, nil
	}
	// A client's first Initial packet (and any datagram coalescing one)
	// must be padded to MinInitialPacketSize so the server can't be used
	// as a DoS amplifier (RFC 9000 Section 14.1).
	if addedInitial && p.perspective == protocol.PerspectiveClient && len(buf) < protocol.MinInitialPacketSize {
		buf = append(buf, make([]byte, protocol.MinInitialPacketSize-len(buf))...)
	}
	packet.buffer = buf
	return packet, nil
}

func (p *packetPacker) sealerFor(encLevel protocol.EncryptionLevel) (handshake.LongHeaderSealer, error) {
	if encLevel == protocol.EncryptionInitial {
		return p.cryptoSetup.GetInitialSealer()
	}
	return p.cryptoSetup.GetHandshakeSealer()
}

func (p *packetPacker) cryptoStreamFor(encLevel protocol.EncryptionLevel) cryptoStream {
	if encLevel == protocol.EncryptionInitial {
		return p.initialStream
	}
	return p.handshakeStream
}

func (p *packetPacker) appendLongHeaderPacket(
	buf []byte,
	encLevel protocol.EncryptionLevel,
	sealer handshake.LongHeaderSealer,
	onlyAck bool,
	maxPacketSize protocol.ByteCount,
	v protocol.Version,
) (*longHeaderPacket, []byte, error) {
	pn, pnLen := p.pnManager.PeekPacketNumber(encLevel)
	hdrType := wire.PacketTypeInitial
	if encLevel == protocol.EncryptionHandshake {
		hdrType = wire.PacketTypeHandshake
	}

	headerLen := protocol.ByteCount(1+4+1+p.srcConnID.Len()+1) + protocol.ByteCount(p.getDestConnID().Len()) + protocol.ByteCount(pnLen)
	if hdrType == wire.PacketTypeInitial {
		headerLen += 1 // empty token length varint
	}
	maxPayloadSize := maxPacketSize - headerLen - protocol.ByteCount(sealer.Overhead())
	if maxPayloadSize < protocol.MinStreamFrameSize {
		return nil, buf, nil
	}

	ack := p.getAckFrame(encLevel, !onlyAck)
	var payloadLen protocol.ByteCount
	var frames []ackhandler.Frame
	if ack != nil {
		payloadLen += ack.Length(protocol.AckDelayExponentDefault)
	}

	if !onlyAck {
		for p.retransmissionQueue.HasData(encLevel) {
			f, ok := p.retransmissionQueue.GetFrame(encLevel, maxPayloadSize-payloadLen, v)
			if !ok {
				break
			}
			frames = append(frames, f)
			payloadLen += f.Length(v)
		}
		stream := p.cryptoStreamFor(encLevel)
		for stream.HasData() && maxPayloadSize-payloadLen > protocol.MinStreamFrameSize {
			cf := stream.PopCryptoFrame(maxPayloadSize - payloadLen)
			frames = append(frames, ackhandler.Frame{Frame: cf})
			payloadLen += cf.Length(v)
		}
	}

	if ack == nil && len(frames) == 0 {
		return nil, buf, nil
	}
	if len(frames) == 0 { // ack-only packet is never ack-eliciting, pad isn't required
		frames = append(frames, ackhandler.Frame{Frame: &wire.PingFrame{}})
		payloadLen += (&wire.PingFrame{}).Length(v)
	}

	length := payloadLen + protocol.ByteCount(pnLen) + protocol.ByteCount(sealer.Overhead())
	hdr := &wire.Header{
		Type:             hdrType,
		Version:          v,
		DestConnectionID: p.getDestConnID(),
		SrcConnectionID:  p.srcConnID,
		Length:           length,
	}

	raw := wire.AppendLongHeader(buf, hdrType, v, hdr.DestConnectionID, hdr.SrcConnectionID, nil, length, pnLen)
	hdrOffset := len(buf)
	pnOffset := len(raw)
	raw = appendPacketNumber(raw, pn, pnLen)
	payloadOffset := len(raw)

	if ack != nil {
		var err error
		raw, err = ack.Append(raw, protocol.AckDelayExponentDefault, v)
		if err != nil {
			return nil, buf, err
		}
	}
	for _, f := range frames {
		var err error
		raw, err = f.Frame.Append(raw, v)
		if err != nil {
			return nil, buf, err
		}
	}

	raw = sealAndProtect(raw, hdrOffset, pnOffset, payloadOffset, pn, pnLen, sealer)
	p.pnManager.PopPacketNumber(encLevel)

	return &longHeaderPacket{header: hdr, ack: ack, frames: frames, length: protocol.ByteCount(len(raw) - hdrOffset), packetNumber: pn}, raw, nil
}

func (p *packetPacker) appendShortHeaderPacket(
	buf []byte,
	sealer handshake.ShortHeaderSealer,
	onlyAck bool,
	maxPacketSize protocol.ByteCount,
	isMTUProbe bool,
	v protocol.Version,
) (*shortHeaderPacket, []byte, error) {
	pn, pnLen := p.pnManager.PeekPacketNumber(protocol.Encryption1RTT)
	destConnID := p.getDestConnID()
	headerLen := protocol.ByteCount(1+destConnID.Len()) + protocol.ByteCount(pnLen)
	maxPayloadSize := maxPacketSize - headerLen - protocol.ByteCount(sealer.Overhead())
	if maxPayloadSize < protocol.MinStreamFrameSize {
		return nil, buf, nil
	}

	ack := p.getAckFrame(protocol.Encryption1RTT, !onlyAck)
	var payloadLen protocol.ByteCount
	var frames, streamFrames []ackhandler.Frame
	if ack != nil {
		payloadLen += ack.Length(protocol.AckDelayExponentDefault)
	}

	if !onlyAck {
		// Flushes any pending MAX_DATA/MAX_STREAM_DATA frames into the
		// framer's control-frame queue before it's drained below.
		p.windowUpdateQueue.QueueAll()
		for p.retransmissionQueue.HasData(protocol.Encryption1RTT) {
			f, ok := p.retransmissionQueue.GetFrame(protocol.Encryption1RTT, maxPayloadSize-payloadLen, v)
			if !ok {
				break
			}
			frames = append(frames, f)
			payloadLen += f.Length(v)
		}
		controlFrames, ctrlLen := p.framer.AppendControlFrames(nil, maxPayloadSize-payloadLen)
		payloadLen += ctrlLen
		for _, cf := range controlFrames {
			frames = append(frames, ackhandler.Frame{Frame: cf, OnLost: p.retransmissionQueue.addAppData})
		}
		if dg := p.datagramQueue.Peek(); dg != nil {
			if l := dg.Length(v); payloadLen+l <= maxPayloadSize {
				frames = append(frames, ackhandler.Frame{Frame: dg, OnLost: func(wire.Frame) {}, OnAcked: func(wire.Frame) {}})
				payloadLen += l
				p.datagramQueue.Pop(nil)
			}
		}
		streamFrames = p.framer.AppendStreamFrames(nil, maxPayloadSize-payloadLen)
		for _, f := range streamFrames {
			payloadLen += f.Length(v)
		}
	}

	if ack == nil && len(frames) == 0 && len(streamFrames) == 0 && !isMTUProbe {
		return nil, buf, nil
	}
	if len(frames) == 0 && len(streamFrames) == 0 {
		frames = append(frames, ackhandler.Frame{Frame: &wire.PingFrame{}})
		payloadLen += (&wire.PingFrame{}).Length(v)
	}

	hdrOffset := len(buf)
	raw := wire.AppendShortHeader(buf, destConnID, pn, pnLen, protocol.KeyPhaseZero)
	pnOffset := hdrOffset + 1 + destConnID.Len()
	payloadOffset := len(raw)

	if ack != nil {
		var err error
		raw, err = ack.Append(raw, protocol.AckDelayExponentDefault, v)
		if err != nil {
			return nil, buf, err
		}
	}
	for _, f := range append(append([]ackhandler.Frame{}, frames...), streamFrames...) {
		var err error
		raw, err = f.Frame.Append(raw, v)
		if err != nil {
			return nil, buf, err
		}
	}

	raw = seal1RTTAndProtect(raw, hdrOffset, pnOffset, payloadOffset, pn, pnLen, sealer)
	p.pnManager.PopPacketNumber(protocol.Encryption1RTT)

	return &shortHeaderPacket{
		DestConnID:           destConnID,
		PacketNumber:         pn,
		PacketNumberLen:      pnLen,
		Ack:                  ack,
		Frames:               frames,
		StreamFrames:         streamFrames,
		Length:               protocol.ByteCount(len(raw) - hdrOffset),
		IsPathMTUProbePacket: isMTUProbe,
	}, raw, nil
}

// PackConnectionClose builds a datagram carrying a single CONNECTION_CLOSE
// frame at every level that still has keys, per RFC 9000 Section 10.2.
func (p *packetPacker) PackConnectionClose(e *qerr.TransportError, appErr *qerr.ApplicationError, v protocol.Version) (*coalescedPacket, error) {
	var ccf wire.Frame
	if e != nil {
		ccf = &wire.ConnectionCloseFrame{
			IsApplicationError: false,
			ErrorCode:           uint64(e.ErrorCode),
			FrameType:            e.FrameType,
			ReasonPhrase:        e.ErrorMessage,
		}
	} else {
		ccf = &wire.ConnectionCloseFrame{
			IsApplicationError: true,
			ErrorCode:           uint64(appErr.ErrorCode),
			ReasonPhrase:        appErr.ErrorMessage,
		}
	}

	packet := &coalescedPacket{}
	var buf []byte
	for _, encLevel := range [...]protocol.EncryptionLevel{protocol.EncryptionInitial, protocol.EncryptionHandshake} {
		sealer, err := p.sealerFor(encLevel)
		if err != nil {
			continue
		}
		remaining := p.maxPacketSize - protocol.ByteCount(len(buf))
		if remaining < protocol.MinCoalescedPacketSize {
			break
		}
		lp, newBuf, err := p.appendCloseFrame(buf, encLevel, sealer, ccf, remaining, v)
		if err != nil {
			return nil, err
		}
		buf = newBuf
		packet.longHdrPackets = append(packet.longHdrPackets, lp)
	}
	if sealer, err := p.cryptoSetup.Get1RTTSealer(); err == nil {
		sp, newBuf, err := p.appendShortHeaderCloseFrame(buf, sealer, ccf, v)
		if err != nil {
			return nil, err
		}
		buf = newBuf
		packet.shortHdrPacket = sp
	}
	if len(packet.longHdrPackets) == 0 && packet.shortHdrPacket == nil {
		return nil, fmt.Errorf("quic: no key available to send CONNECTION_CLOSE")
	}
	packet.buffer = buf
	return packet, nil
}

func (p *packetPacker) appendCloseFrame(buf []byte, encLevel protocol.EncryptionLevel, sealer handshake.LongHeaderSealer, f wire.Frame, maxPacketSize protocol.ByteCount, v protocol.Version) (*longHeaderPacket, []byte, error) {
	pn, pnLen := p.pnManager.PeekPacketNumber(encLevel)
	hdrType := wire.PacketTypeInitial
	if encLevel == protocol.EncryptionHandshake {
		hdrType = wire.PacketTypeHandshake
	}
	length := f.Length(v) + protocol.ByteCount(pnLen) + protocol.ByteCount(sealer.Overhead())
	hdr := &wire.Header{Type: hdrType, Version: v, DestConnectionID: p.getDestConnID(), SrcConnectionID: p.srcConnID, Length: length}
	raw := wire.AppendLongHeader(buf, hdrType, v, hdr.DestConnectionID, hdr.SrcConnectionID, nil, length, pnLen)
	hdrOffset := len(buf)
	pnOffset := len(raw)
	raw = appendPacketNumber(raw, pn, pnLen)
	payloadOffset := len(raw)
	var err error
	raw, err = f.Append(raw, v)
	if err != nil {
		return nil, buf, err
	}
	raw = sealAndProtect(raw, hdrOffset, pnOffset, payloadOffset, pn, pnLen, sealer)
	return &longHeaderPacket{header: hdr, frames: []ackhandler.Frame{{Frame: f}}, length: protocol.ByteCount(len(raw) - hdrOffset)}, raw, nil
}

func (p *packetPacker) appendShortHeaderCloseFrame(buf []byte, sealer handshake.ShortHeaderSealer, f wire.Frame, v protocol.Version) (*shortHeaderPacket, []byte, error) {
	pn, pnLen := p.pnManager.PeekPacketNumber(protocol.Encryption1RTT)
	destConnID := p.getDestConnID()
	hdrOffset := len(buf)
	raw := wire.AppendShortHeader(buf, destConnID, pn, pnLen, protocol.KeyPhaseZero)
	pnOffset := hdrOffset + 1 + destConnID.Len()
	payloadOffset := len(raw)
	var err error
	raw, err = f.Append(raw, v)
	if err != nil {
		return nil, buf, err
	}
	raw = seal1RTTAndProtect(raw, hdrOffset, pnOffset, payloadOffset, pn, pnLen, sealer)
	return &shortHeaderPacket{DestConnID: destConnID, PacketNumber: pn, PacketNumberLen: pnLen, Frames: []ackhandler.Frame{{Frame: f}}, Length: protocol.ByteCount(len(raw) - hdrOffset)}, raw, nil
}

func appendPacketNumber(b []byte, pn protocol.PacketNumber, pnLen protocol.PacketNumberLen) []byte {
	for i := int(pnLen) - 1; i >= 0; i-- {
		b = append(b, byte(pn>>(8*i)))
	}
	return b
}

// sealAndProtect AEAD-seals the payload of a long header packet in place
// and applies header protection, per RFC 9001 Sections 5.3 and 5.4.
func sealAndProtect(raw []byte, hdrOffset, pnOffset, payloadOffset int, pn protocol.PacketNumber, pnLen protocol.PacketNumberLen, sealer handshake.LongHeaderSealer) []byte {
	header := raw[hdrOffset:payloadOffset]
	sealed := sealer.Seal(raw[payloadOffset:payloadOffset], raw[payloadOffset:], pn, header)
	raw = append(raw[:payloadOffset], sealed...)
	protectHeader(raw, hdrOffset, pnOffset, pnLen, sealer)
	return raw
}

func seal1RTTAndProtect(raw []byte, hdrOffset, pnOffset, payloadOffset int, pn protocol.PacketNumber, pnLen protocol.PacketNumberLen, sealer handshake.ShortHeaderSealer) []byte {
	header := raw[hdrOffset:payloadOffset]
	sealed := sealer.Seal(raw[payloadOffset:payloadOffset], raw[payloadOffset:], pn, header)
	raw = append(raw[:payloadOffset], sealed...)
	protectHeader(raw, hdrOffset, pnOffset, pnLen, sealer)
	return raw
}

// headerProtector is satisfied by both LongHeaderSealer and
// ShortHeaderSealer; only EncryptHeader is needed here.
type headerProtector interface {
	EncryptHeader(sample []byte, firstByte *byte, pnBytes []byte)
}

func protectHeader(raw []byte, hdrOffset, pnOffset int, pnLen protocol.PacketNumberLen, sealer headerProtector) {
	sampleOffset := pnOffset + 4
	if sampleOffset+16 > len(raw) {
		return // packet too short to sample; only possible for malformed/tiny test input
	}
	sample := raw[sampleOffset : sampleOffset+16]
	sealer.EncryptHeader(sample, &raw[hdrOffset], raw[pnOffset:pnOffset+int(pnLen)])
}
