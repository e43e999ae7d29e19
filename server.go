package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/quicframe/quicframe/internal/handshake"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentHandshakes bounds how many connections may be running their
// handshake at once, so a burst of Initial packets can't spawn an unbounded
// number of goroutines before address validation exists to push back on it.
const maxConcurrentHandshakes = 4096

// baseServer accepts incoming QUIC connections on one UDP socket, demuxing
// datagrams across every connection it has accepted by destination
// connection ID and turning unrecognized Initial packets into new ones.
type baseServer struct {
	pconn   net.PacketConn
	tlsConf *tls.Config
	config  *Config
	logger  *slog.Logger

	connIDLen int

	runner packetHandlerManager

	connChan chan *connection

	handshakes errgroup.Group

	closeOnce sync.Once
	closeChan chan struct{}
}

var _ Listener = &baseServer{}

// ListenAddr starts listening for QUIC connections on a new UDP socket
// bound to addr.
func ListenAddr(addr string, tlsConf *tls.Config, config *Config) (Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	pconn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	ln, err := Listen(pconn, tlsConf, config)
	if err != nil {
		pconn.Close()
		return nil, err
	}
	return ln, nil
}

// Listen starts listening for QUIC connections on pconn, which the
// Listener does not take ownership of: closing the Listener doesn't close it.
func Listen(pconn net.PacketConn, tlsConf *tls.Config, config *Config) (Listener, error) {
	if tlsConf == nil {
		return nil, errors.New("quic: tls.Config required")
	}
	if len(tlsConf.Certificates) == 0 && tlsConf.GetCertificate == nil && tlsConf.GetConfigForClient == nil {
		return nil, errors.New("quic: tls.Config must specify a certificate")
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	config = populateConfig(config)

	connIDLen := config.ConnectionIDLength
	if connIDLen == 0 {
		connIDLen = defaultConnectionIDLength
	}

	s := &baseServer{
		pconn:     pconn,
		tlsConf:   tlsConf,
		config:    config,
		logger:    discardLogger(),
		connIDLen: connIDLen,
		runner:    newPacketHandlerMap(),
		connChan:  make(chan *connection, 16),
		closeChan: make(chan struct{}),
	}
	s.handshakes.SetLimit(maxConcurrentHandshakes)
	go s.readLoop()
	return s, nil
}

func (s *baseServer) readLoop() {
	buf := make([]byte, protocol.MaxPacketBufferSize)
	for {
		n, remoteAddr, err := s.pconn.ReadFrom(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.handleDatagram(data, remoteAddr)
	}
}

func (s *baseServer) handleDatagram(data []byte, remoteAddr net.Addr) {
	connID, err := wire.ParseConnectionID(data, s.connIDLen)
	if err != nil {
		return
	}
	if handler, ok := s.runner.Get(connID); ok {
		handler.handlePacket(receivedPacket{remoteAddr: remoteAddr, rcvTime: time.Now(), data: data})
		return
	}
	// handleInitialPacket may block in s.handshakes.Go() once
	// maxConcurrentHandshakes is reached; readLoop must keep reading so
	// already-established connections aren't starved while that happens.
	go s.handleInitialPacket(data, remoteAddr)
}

// handleInitialPacket accepts a new connection from a client's first
// Initial packet. Address validation via Retry packets and NEW_TOKEN isn't
// implemented: every Initial is accepted immediately.
func (s *baseServer) handleInitialPacket(data []byte, remoteAddr net.Addr) {
	if !wire.IsLongHeaderPacket(data[0]) {
		return
	}
	hdr, _, _, err := wire.ParseLongHeaderPacket(data)
	if err != nil || hdr.Version == 0 || hdr.Type != wire.PacketTypeInitial {
		return
	}

	version := hdr.Version
	supported := false
	for _, v := range s.config.Versions {
		if v == version {
			supported = true
			break
		}
	}
	if !supported {
		return
	}

	srcConnID, err := protocol.GenerateConnectionID(s.connIDLen)
	if err != nil {
		return
	}

	sconn := newSendConn(s.pconn, remoteAddr, packetInfo{})
	c := newConnection(
		context.Background(),
		sconn,
		s.runner,
		hdr.DestConnectionID,
		srcConnID,
		hdr.SrcConnectionID,
		protocol.StatelessResetToken{},
		s.config,
		protocol.PerspectiveServer,
		s.logger,
		version,
	)
	cryptoSetup := handshake.NewCryptoSetupServer(
		c.initialStream,
		c.handshakeStream,
		c.oneRTTStream,
		hdr.DestConnectionID,
		c.localTransportParameters(),
		c,
		s.tlsConf,
		s.config.Allow0RTT,
		s.logger,
		version,
	)
	c.finishSetup(cryptoSetup, generateInitialPacketNumber())

	if !s.runner.Add(srcConnID, c) {
		return
	}

	s.handshakes.Go(func() error {
		s.driveHandshake(c, cryptoSetup, data, remoteAddr)
		return nil
	})
}

func (s *baseServer) driveHandshake(c *connection, cryptoSetup handshake.CryptoSetup, firstPacket []byte, remoteAddr net.Addr) {
	go c.run()
	if err := cryptoSetup.StartHandshake(); err != nil {
		c.destroy(err)
		return
	}
	c.handlePacket(receivedPacket{remoteAddr: remoteAddr, rcvTime: time.Now(), data: firstPacket})

	select {
	case <-c.HandshakeComplete():
	case <-c.Context().Done():
		return
	}

	select {
	case s.connChan <- c:
	case <-s.closeChan:
		c.CloseWithError(0, "")
	}
}

// Accept implements Listener.
func (s *baseServer) Accept(ctx context.Context) (Connection, error) {
	select {
	case c := <-s.connChan:
		return c, nil
	case <-s.closeChan:
		return nil, errors.New("quic: listener closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr implements Listener.
func (s *baseServer) Addr() net.Addr { return s.pconn.LocalAddr() }

// Close implements Listener.
func (s *baseServer) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeChan)
		s.runner.Close()
	})
	return nil
}
