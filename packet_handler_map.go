package quic

import (
	"net"
	"sync"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
)

// packetInfo carries the local-address metadata a reply needs to go out on
// the same interface/source address the original packet arrived on.
type packetInfo struct {
	addr    net.IP
	ifIndex uint32
}

// OOB returns the out-of-band data for sending from this packet's local
// address; it always returns nil.
func (info *packetInfo) OOB() []byte {
	return nil
}

// receivedPacket is one incoming UDP datagram, handed to whichever
// packetHandler owns its destination connection ID.
type receivedPacket struct {
	remoteAddr net.Addr
	rcvTime    time.Time
	data       []byte

	ecn protocol.ECN

	info packetInfo
}

func (p *receivedPacket) Size() protocol.ByteCount { return protocol.ByteCount(len(p.data)) }

// Clone returns a copy of this packet; used when handing the same datagram
// off to more than one connection (a coalesced Initial destined for a
// connection ID nobody owns yet, for example).
func (p *receivedPacket) Clone() *receivedPacket {
	return &receivedPacket{
		remoteAddr: p.remoteAddr,
		rcvTime:    p.rcvTime,
		data:       p.data,
		ecn:        p.ecn,
		info:       p.info,
	}
}

// packetHandler is anything that owns a connection ID and can be handed
// packets addressed to it: an active connection, or a closedLocalConn /
// closedRemoteConn standing in for one that's shutting down.
type packetHandler interface {
	handlePacket(receivedPacket)
	// destroy tears the handler down immediately, without sending a CONNECTION_CLOSE.
	destroy(error)
	// closeWithTransportError sends a CONNECTION_CLOSE built from the given error code and tears the handler down.
	closeWithTransportError(TransportErrorCode)
}

// packetHandlerManager multiplexes a single UDP socket across every
// connection (or closing remnant of one) keyed by the connection IDs it owns.
type packetHandlerManager interface {
	Get(protocol.ConnectionID) (packetHandler, bool)
	Add(protocol.ConnectionID, packetHandler) bool
	AddWithConnID(clientDestConnID, newConnID protocol.ConnectionID, handler packetHandler) bool
	Remove(protocol.ConnectionID)
	ReplaceWithClosed([]protocol.ConnectionID, packetHandler)
	Close() error
}

// packetHandlerMap implements packetHandlerManager over a plain map keyed by
// the connection ID's byte representation.
type packetHandlerMap struct {
	mutex sync.RWMutex

	handlers map[string]packetHandler
	closed   bool

	deleteClosedSessionsAfter time.Duration
}

var _ packetHandlerManager = &packetHandlerMap{}

func newPacketHandlerMap() packetHandlerManager {
	return &packetHandlerMap{
		handlers:                  make(map[string]packetHandler),
		deleteClosedSessionsAfter: protocol.ClosedSessionDeleteTimeout,
	}
}

func (h *packetHandlerMap) Get(id protocol.ConnectionID) (packetHandler, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	handler, ok := h.handlers[string(id.Bytes())]
	return handler, ok
}

func (h *packetHandlerMap) Add(id protocol.ConnectionID, handler packetHandler) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return false
	}
	if _, ok := h.handlers[string(id.Bytes())]; ok {
		return false
	}
	h.handlers[string(id.Bytes())] = handler
	return true
}

// AddWithConnID registers a second connection ID (one we generated ourselves
// and offered the peer, chosen after the handshake started) for a connection
// already tracked under clientDestConnID.
func (h *packetHandlerMap) AddWithConnID(clientDestConnID, newConnID protocol.ConnectionID, handler packetHandler) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return false
	}
	if _, ok := h.handlers[string(clientDestConnID.Bytes())]; !ok {
		return false
	}
	h.handlers[string(newConnID.Bytes())] = handler
	return true
}

func (h *packetHandlerMap) Remove(id protocol.ConnectionID) {
	h.mutex.Lock()
	delete(h.handlers, string(id.Bytes()))
	h.mutex.Unlock()
}

// ReplaceWithClosed swaps every connection ID a connection owns for a
// stand-in closedLocalConn/closedRemoteConn, removing it once
// deleteClosedSessionsAfter has elapsed so reordered or retransmitted
// packets for that connection still get a sane reply in the meantime.
func (h *packetHandlerMap) ReplaceWithClosed(ids []protocol.ConnectionID, handler packetHandler) {
	h.mutex.Lock()
	for _, id := range ids {
		h.handlers[string(id.Bytes())] = handler
	}
	h.mutex.Unlock()

	time.AfterFunc(h.deleteClosedSessionsAfter, func() {
		h.mutex.Lock()
		for _, id := range ids {
			delete(h.handlers, string(id.Bytes()))
		}
		h.mutex.Unlock()
	})
}

func (h *packetHandlerMap) Close() error {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return nil
	}
	h.closed = true

	var wg sync.WaitGroup
	for _, handler := range h.handlers {
		if handler == nil {
			continue
		}
		wg.Add(1)
		go func(handler packetHandler) {
			defer wg.Done()
			handler.destroy(nil)
		}(handler)
	}
	h.mutex.Unlock()
	wg.Wait()
	return nil
}
