package quic

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"time"

	"github.com/quicframe/quicframe/internal/handshake"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// DialAddr resolves addr and dials a QUIC connection to it, opening a new
// UDP socket for the lifetime of the connection.
func DialAddr(ctx context.Context, addr string, tlsConf *tls.Config, config *Config) (Connection, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	pconn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}
	conn, err := Dial(ctx, pconn, udpAddr, tlsConf, config)
	if err != nil {
		pconn.Close()
		return nil, err
	}
	return conn, nil
}

// Dial establishes a new QUIC connection to remoteAddr, reading and writing
// on pconn. The caller keeps ownership of pconn; closing the connection
// doesn't close it.
func Dial(ctx context.Context, pconn net.PacketConn, remoteAddr net.Addr, tlsConf *tls.Config, config *Config) (Connection, error) {
	if tlsConf == nil {
		return nil, errors.New("quic: tls.Config required")
	}
	if len(tlsConf.NextProtos) == 0 {
		return nil, errors.New("quic: tls.Config.NextProtos must not be empty")
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	config = populateConfig(config)
	version := config.Versions[0]

	connIDLen := config.ConnectionIDLength
	if connIDLen == 0 {
		connIDLen = defaultConnectionIDLength
	}
	srcConnID, err := protocol.GenerateConnectionID(connIDLen)
	if err != nil {
		return nil, err
	}
	destConnID, err := protocol.GenerateConnectionIDForInitial()
	if err != nil {
		return nil, err
	}

	logger := discardLogger()
	sconn := newSendConn(pconn, remoteAddr, packetInfo{})
	runner := newPacketHandlerMap()

	c := newConnection(
		ctx,
		sconn,
		runner,
		protocol.ConnectionID{},
		srcConnID,
		destConnID,
		protocol.StatelessResetToken{},
		config,
		protocol.PerspectiveClient,
		logger,
		version,
	)

	cryptoSetup, _ := handshake.NewCryptoSetupClient(
		c.initialStream,
		c.handshakeStream,
		c.oneRTTStream,
		destConnID,
		c.localTransportParameters(),
		c,
		tlsConf,
		config.Allow0RTT,
		logger,
		version,
	)
	c.finishSetup(cryptoSetup, generateInitialPacketNumber())

	if !runner.Add(srcConnID, c) {
		return nil, fmt.Errorf("quic: could not register connection %s", srcConnID)
	}

	go clientReadLoop(pconn, runner, connIDLen, logger)
	go c.run()

	if err := cryptoSetup.StartHandshake(); err != nil {
		c.destroy(err)
		return nil, err
	}
	c.scheduleSending()

	select {
	case <-c.HandshakeComplete():
	case <-c.Context().Done():
		return nil, context.Cause(c.Context())
	case <-ctx.Done():
		c.destroy(ctx.Err())
		return nil, ctx.Err()
	}
	return c, nil
}

// clientReadLoop feeds every datagram arriving on pconn to the connection
// that owns its destination connection ID, until runner is closed.
func clientReadLoop(pconn net.PacketConn, runner packetHandlerManager, shortHeaderConnIDLen int, logger *slog.Logger) {
	buf := make([]byte, protocol.MaxPacketBufferSize)
	for {
		n, remoteAddr, err := pconn.ReadFrom(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		dispatchPacket(data, remoteAddr, runner, shortHeaderConnIDLen, logger)
	}
}

// dispatchPacket routes one datagram to the packetHandler that owns its
// destination connection ID, dropping it silently if nobody does.
func dispatchPacket(data []byte, remoteAddr net.Addr, runner packetHandlerManager, shortHeaderConnIDLen int, logger *slog.Logger) {
	connID, err := wire.ParseConnectionID(data, shortHeaderConnIDLen)
	if err != nil {
		return
	}
	handler, ok := runner.Get(connID)
	if !ok {
		return
	}
	handler.handlePacket(receivedPacket{
		remoteAddr: remoteAddr,
		rcvTime:    time.Now(),
		data:       data,
	})
}

// generateInitialPacketNumber picks a random starting packet number for a
// fresh packet number space, as recommended by RFC 9000 Section 12.3 to
// make it harder for an off-path attacker to predict ACKs.
func generateInitialPacketNumber() protocol.PacketNumber {
	upper := big.NewInt(1 << 31)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		var b [4]byte
		_, _ = rand.Read(b[:])
		return protocol.PacketNumber(binary.BigEndian.Uint32(b[:]) >> 1)
	}
	return protocol.PacketNumber(n.Int64())
}

// discardLogger returns a logger that drops everything; client.go/server.go
// don't yet expose a way to plug in the application's own logger.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
