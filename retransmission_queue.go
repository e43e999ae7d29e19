package quic

import (
	"fmt"

	"github.com/quicframe/quicframe/internal/ackhandler"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// retransmissionQueue holds control frames (everything but STREAM frames,
// which live in each stream's own retransmission/loss buffers) that were
// lost and must be resent, one queue per packet number space.
type retransmissionQueue struct {
	initial           []wire.Frame
	initialCryptoData []*wire.CryptoFrame

	handshake           []wire.Frame
	handshakeCryptoData []*wire.CryptoFrame

	appData []wire.Frame
}

func newRetransmissionQueue() *retransmissionQueue {
	return &retransmissionQueue{}
}

func (q *retransmissionQueue) addInitial(f wire.Frame) {
	if cf, ok := f.(*wire.CryptoFrame); ok {
		q.initialCryptoData = append(q.initialCryptoData, cf)
		return
	}
	q.initial = append(q.initial, f)
}

func (q *retransmissionQueue) addHandshake(f wire.Frame) {
	if cf, ok := f.(*wire.CryptoFrame); ok {
		q.handshakeCryptoData = append(q.handshakeCryptoData, cf)
		return
	}
	q.handshake = append(q.handshake, f)
}

func (q *retransmissionQueue) addAppData(f wire.Frame) {
	if _, ok := f.(*wire.StreamFrame); ok {
		panic("STREAM frames are retransmitted through their own stream")
	}
	q.appData = append(q.appData, f)
}

func (q *retransmissionQueue) HasData(encLevel protocol.EncryptionLevel) bool {
	switch encLevel {
	case protocol.EncryptionInitial:
		return len(q.initialCryptoData) > 0 || len(q.initial) > 0
	case protocol.EncryptionHandshake:
		return len(q.handshakeCryptoData) > 0 || len(q.handshake) > 0
	case protocol.Encryption1RTT:
		return len(q.appData) > 0
	}
	return false
}

// GetFrame pops one retransmission-queue frame for encLevel that fits in
// maxLen, wrapped with the OnLost callback that re-queues it if it is lost
// again. ok is false if the queue for that level has nothing that fits.
func (q *retransmissionQueue) GetFrame(encLevel protocol.EncryptionLevel, maxLen protocol.ByteCount, v protocol.Version) (_ ackhandler.Frame, ok bool) {
	switch encLevel {
	case protocol.EncryptionInitial:
		return q.getFrame(&q.initial, &q.initialCryptoData, maxLen, v, q.addInitial)
	case protocol.EncryptionHandshake:
		return q.getFrame(&q.handshake, &q.handshakeCryptoData, maxLen, v, q.addHandshake)
	case protocol.Encryption1RTT:
		return q.getPlainFrame(&q.appData, maxLen, v, q.addAppData)
	}
	return ackhandler.Frame{}, false
}

func (q *retransmissionQueue) getFrame(plain *[]wire.Frame, crypto *[]*wire.CryptoFrame, maxLen protocol.ByteCount, v protocol.Version, requeue func(wire.Frame)) (ackhandler.Frame, bool) {
	if len(*crypto) > 0 {
		cf := (*crypto)[0]
		newFrame, needsSplit := cf.MaybeSplitOffFrame(maxLen)
		switch {
		case newFrame == nil && !needsSplit:
			*crypto = (*crypto)[1:]
			return ackhandler.Frame{Frame: cf, OnLost: requeue}, true
		case newFrame != nil:
			return ackhandler.Frame{Frame: newFrame, OnLost: requeue}, true
		}
	}
	return q.getPlainFrame(plain, maxLen, v, requeue)
}

func (q *retransmissionQueue) getPlainFrame(queue *[]wire.Frame, maxLen protocol.ByteCount, v protocol.Version, requeue func(wire.Frame)) (ackhandler.Frame, bool) {
	if len(*queue) == 0 {
		return ackhandler.Frame{}, false
	}
	f := (*queue)[0]
	if f.Length(v) > maxLen {
		return ackhandler.Frame{}, false
	}
	*queue = (*queue)[1:]
	return ackhandler.Frame{Frame: f, OnLost: requeue}, true
}

func (q *retransmissionQueue) DropPackets(encLevel protocol.EncryptionLevel) {
	switch encLevel {
	case protocol.EncryptionInitial:
		q.initial = nil
		q.initialCryptoData = nil
	case protocol.EncryptionHandshake:
		q.handshake = nil
		q.handshakeCryptoData = nil
	default:
		panic(fmt.Sprintf("retransmissionQueue: cannot drop packet number space %s", encLevel))
	}
}
