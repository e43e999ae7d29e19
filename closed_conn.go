package quic

import (
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"
)

// closedConnRetransmitInterval caps how often a closedLocalConn retransmits
// its CONNECTION_CLOSE in response to packets still arriving for a
// connection we already tore down locally.
const closedConnRetransmitInterval = 100 * time.Millisecond

// A closedLocalConn is a connection that we closed locally.
// When receiving packets for such a connection, we need to retransmit the packet containing the CONNECTION_CLOSE frame,
// rate-limited so a peer hammering us with packets doesn't turn into us hammering them back.
type closedLocalConn struct {
	limiter *rate.Limiter
	logger  *slog.Logger

	sendPacket func(net.Addr, packetInfo)
}

var _ packetHandler = &closedLocalConn{}

// newClosedLocalConn creates a new closedLocalConn and runs it.
func newClosedLocalConn(sendPacket func(net.Addr, packetInfo), logger *slog.Logger) packetHandler {
	return &closedLocalConn{
		limiter:    rate.NewLimiter(rate.Every(closedConnRetransmitInterval), 1),
		sendPacket: sendPacket,
		logger:     logger,
	}
}

func (c *closedLocalConn) handlePacket(p receivedPacket) {
	if !c.limiter.Allow() {
		return
	}
	c.logger.Debug("Retransmitting CONNECTION_CLOSE after receiving a packet for a closed connection")
	c.sendPacket(p.remoteAddr, p.info)
}

func (c *closedLocalConn) destroy(error)                              {}
func (c *closedLocalConn) closeWithTransportError(TransportErrorCode) {}

// A closedRemoteConn is a connection that was closed remotely.
// For such a connection, we might receive reordered packets that were sent before the CONNECTION_CLOSE.
// We can just ignore those packets.
type closedRemoteConn struct{}

var _ packetHandler = &closedRemoteConn{}

func newClosedRemoteConn() packetHandler {
	return &closedRemoteConn{}
}

func (c *closedRemoteConn) handlePacket(receivedPacket)                {}
func (c *closedRemoteConn) destroy(error)                              {}
func (c *closedRemoteConn) closeWithTransportError(TransportErrorCode) {}
