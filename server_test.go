package quic

import (
	"net"
	"testing"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*baseServer, net.PacketConn) {
	t.Helper()
	pconn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { pconn.Close() })
	return &baseServer{
		pconn:     pconn,
		config:    populateConfig(nil),
		logger:    discardLogger(),
		connIDLen: defaultConnectionIDLength,
		runner:    newPacketHandlerMap(),
		connChan:  make(chan *connection, 16),
		closeChan: make(chan struct{}),
	}, pconn
}

func TestBaseServerAddr(t *testing.T) {
	s, pconn := newTestServer(t)
	assert.Equal(t, pconn.LocalAddr(), s.Addr())
}

func TestBaseServerCloseIsIdempotent(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	select {
	case <-s.closeChan:
	default:
		t.Fatal("expected closeChan to be closed")
	}
}

func TestHandleInitialPacketRejectsUnsupportedVersion(t *testing.T) {
	s, _ := newTestServer(t)
	s.config.Versions = []protocol.Version{protocol.Version1}

	destConnID, err := protocol.GenerateConnectionID(8)
	require.NoError(t, err)
	srcConnID, err := protocol.GenerateConnectionID(8)
	require.NoError(t, err)

	data := wire.AppendLongHeader(nil, wire.PacketTypeInitial, protocol.Version(0x0a0a0a0a), destConnID, srcConnID, nil, 100, protocol.PacketNumberLen2)
	data = append(data, make([]byte, 50)...)

	s.handleInitialPacket(data, &net.UDPAddr{})
	assert.Equal(t, 0, len(s.runner.(*packetHandlerMap).handlers))
}

func TestHandleDatagramRoutesToKnownConnection(t *testing.T) {
	s, _ := newTestServer(t)
	connID, err := protocol.GenerateConnectionID(s.connIDLen)
	require.NoError(t, err)
	handler := &stubPacketHandler{}
	require.True(t, s.runner.Add(connID, handler))

	data := append([]byte{0x40}, connID.Bytes()...)
	data = append(data, 0x01)
	s.handleDatagram(data, &net.UDPAddr{})

	require.Len(t, handler.received, 1)
}
