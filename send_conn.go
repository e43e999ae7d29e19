package quic

import (
	"net"
)

// sendConn lets a connection write datagrams to its one peer without
// re-specifying the remote address on every call.
type sendConn interface {
	Write(b []byte) error
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

type sconn struct {
	pconn      net.PacketConn
	localAddr  net.Addr
	remoteAddr net.Addr
}

var _ sendConn = &sconn{}

// newSendConn binds a sendConn to one remote address, optionally overriding
// the local address reported (e.g. with the interface a packet actually
// arrived on, once packetInfo carries that).
func newSendConn(c net.PacketConn, remote net.Addr, info packetInfo) *sconn {
	localAddr := c.LocalAddr()
	if info.addr != nil {
		if udpAddr, ok := localAddr.(*net.UDPAddr); ok {
			addrCopy := *udpAddr
			addrCopy.IP = info.addr
			localAddr = &addrCopy
		}
	}
	return &sconn{pconn: c, localAddr: localAddr, remoteAddr: remote}
}

func (c *sconn) Write(p []byte) error {
	_, err := c.pconn.WriteTo(p, c.remoteAddr)
	return err
}

func (c *sconn) Close() error         { return nil }
func (c *sconn) LocalAddr() net.Addr  { return c.localAddr }
func (c *sconn) RemoteAddr() net.Addr { return c.remoteAddr }
