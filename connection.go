package quic

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/quicframe/quicframe/internal/ackhandler"
	"github.com/quicframe/quicframe/internal/congestion"
	"github.com/quicframe/quicframe/internal/flowcontrol"
	"github.com/quicframe/quicframe/internal/handshake"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/qerr"
	"github.com/quicframe/quicframe/internal/utils"
	"github.com/quicframe/quicframe/internal/wire"
)

// closeReason carries why the run loop is shutting down: an application
// close requested locally, a transport error (local or received), or a
// silent idle/stateless-reset close that never sends a CONNECTION_CLOSE.
type closeReason struct {
	err       error
	remote    bool
	immediate bool
}

// connection is a single, non-multiplexed QUIC connection. Path migration
// is handled (RFC 9000 Section 9: validating and switching to a new peer
// address), but a connection only ever sends on one path at a time -
// concurrent multipath scheduling across several paths is out of scope.
type connection struct {
	ctx       context.Context
	ctxCancel context.CancelCauseFunc

	perspective protocol.Perspective
	version     protocol.Version
	config      *Config
	logger      *slog.Logger

	conn sendConn

	srcConnID      protocol.ConnectionID
	origDestConnID protocol.ConnectionID // server only: the client's first Initial destination

	connIDManager   *connIDManager
	connIDGenerator *connIDGenerator
	pathManager     *pathManager

	streamsMap          *streamsMap
	framer              *framer
	connFlowController  flowcontrol.ConnectionFlowController
	windowUpdateQueue   *windowUpdateQueue
	datagramQueue       *datagramQueue
	retransmissionQueue *retransmissionQueue

	initialStream       cryptoStream
	handshakeStream     cryptoStream
	oneRTTStream        cryptoStream
	cryptoStreamManager *cryptoStreamManager
	cryptoStreamHandler handshake.CryptoSetup

	sentPacketHandler      ackhandler.SentPacketHandler
	receivedPacketHandlers [4]ackhandler.ReceivedPacketHandler // index protocol.EncryptionLevel-1; the 0-RTT slot (index 2) is unused
	rttStats               *utils.RTTStats

	packer   *packetPacker
	unpacker *packetUnpacker
	parser   *wire.Parser
	runner   packetHandlerManager

	timer *connectionTimer

	receivedPackets       chan receivedPacket
	sendingScheduled      chan struct{}
	closeChan             chan closeReason
	runClosed             chan struct{}
	handshakeCompleteChan chan struct{}

	handshakeComplete  bool
	handshakeConfirmed bool
	keepAlivePingSent  bool

	lastPacketReceivedTime time.Time
	idleTimeout            time.Duration

	closeOnce sync.Once
	closeErr  error

	connStateMu sync.Mutex
	connState   ConnectionState
}

var _ Connection = &connection{}
var _ packetHandler = &connection{}
var _ streamSender = &connection{}

// newConnection builds the shared state common to both perspectives.
// finishSetup must be called afterwards, once the caller has built the
// handshake.CryptoSetup (client and server construct it differently).
func newConnection(
	ctx context.Context,
	conn sendConn,
	runner packetHandlerManager,
	origDestConnID protocol.ConnectionID,
	srcConnID protocol.ConnectionID,
	destConnID protocol.ConnectionID,
	statelessResetToken protocol.StatelessResetToken,
	config *Config,
	perspective protocol.Perspective,
	logger *slog.Logger,
	v protocol.Version,
) *connection {
	ctx, cancel := context.WithCancelCause(ctx)

	c := &connection{
		ctx:                   ctx,
		ctxCancel:             cancel,
		perspective:           perspective,
		version:               v,
		config:                config,
		logger:                logger,
		conn:                  conn,
		runner:                runner,
		srcConnID:             srcConnID,
		origDestConnID:        origDestConnID,
		retransmissionQueue:   newRetransmissionQueue(),
		rttStats:              &utils.RTTStats{},
		receivedPackets:       make(chan receivedPacket, 256),
		sendingScheduled:      make(chan struct{}, 1),
		closeChan:             make(chan closeReason, 1),
		runClosed:             make(chan struct{}),
		handshakeCompleteChan: make(chan struct{}),
		idleTimeout:           config.HandshakeIdleTimeout,
		timer:                 newTimer(),
	}

	c.connIDManager = newConnIDManager(
		destConnID,
		// Stateless reset tokens the peer offers in NEW_CONNECTION_ID/transport
		// parameters aren't cross-checked against a registry in this
		// implementation; there is only ever one active destination connection
		// ID per connection, so nothing else needs to look this up.
		func(token [16]byte) {},
		c.queueControlFrame,
	)

	genConnID := func() (protocol.ConnectionID, error) {
		connIDLen := config.ConnectionIDLength
		if connIDLen == 0 {
			connIDLen = defaultConnectionIDLength
		}
		return protocol.GenerateConnectionID(connIDLen)
	}
	c.connIDGenerator = newConnIDGenerator(
		srcConnID,
		statelessResetToken,
		protocol.MaxActiveConnectionIDs,
		genConnID,
		c.newStatelessResetToken,
		c.queueControlFrame,
		func(id protocol.ConnectionID) { runner.Add(id, c) },
		runner.Remove,
		runner.ReplaceWithClosed,
		logger,
	)

	c.pathManager = newPathManager(
		func(pathID) (protocol.ConnectionID, bool) { return protocol.ConnectionID{}, false },
		func(pathID) {},
		logger,
	)

	c.connFlowController = flowcontrol.NewConnectionFlowController(
		protocol.ByteCount(config.InitialConnectionReceiveWindow),
		protocol.ByteCount(config.MaxConnectionReceiveWindow),
		0,
	)
	c.streamsMap = newStreamsMap(
		c,
		c.connFlowController,
		protocol.StreamNum(config.MaxIncomingStreams),
		protocol.StreamNum(config.MaxIncomingUniStreams),
		perspective,
		v,
	)
	c.framer = newFramer(c.streamsMap, v)
	c.datagramQueue = newDatagramQueue(c.scheduleSending, logger)

	var allowWindowIncrease func(protocol.ByteCount) bool
	if config.AllowConnectionWindowIncrease != nil {
		allowWindowIncrease = func(delta protocol.ByteCount) bool {
			return config.AllowConnectionWindowIncrease(c, uint64(delta))
		}
	}
	c.windowUpdateQueue = newWindowUpdateQueue(c.connFlowController, allowWindowIncrease, c.queueControlFrame)

	c.initialStream = newCryptoStream()
	c.handshakeStream = newCryptoStream()
	c.oneRTTStream = newCryptoStream()

	c.connState = ConnectionState{Version: v, SupportsDatagrams: config.EnableDatagrams}

	return c
}

// finishSetup wires up everything that depends on the handshake.CryptoSetup,
// which the client and server constructors build differently (TLS client
// vs. server configuration).
func (c *connection) finishSetup(cryptoSetup handshake.CryptoSetup, initialPacketNumber protocol.PacketNumber) {
	c.cryptoStreamHandler = cryptoSetup
	c.cryptoStreamManager = newCryptoStreamManager(cryptoSetup, c.initialStream, c.handshakeStream, c.oneRTTStream)

	pacer := congestion.NewPacer(protocol.MaxPacketBufferSize)
	initCwnd := int(c.config.InitialCongestionWindow)
	if initCwnd == 0 {
		initCwnd = 32
	}
	sendAlgorithm := congestion.NewBBR2(protocol.MaxPacketBufferSize, initCwnd, pacer, c.logger)

	c.sentPacketHandler, c.receivedPacketHandlers[protocol.Encryption1RTT-1] = ackhandler.NewAckHandler(
		initialPacketNumber,
		protocol.MaxPacketBufferSize,
		c.rttStats,
		sendAlgorithm,
		pacer,
		c.perspective,
		c.logger,
		c.version,
	)
	c.receivedPacketHandlers[protocol.EncryptionInitial-1] = ackhandler.NewReceivedPacketHandler(c.rttStats, c.logger, c.version)
	c.receivedPacketHandlers[protocol.EncryptionHandshake-1] = ackhandler.NewReceivedPacketHandler(c.rttStats, c.logger, c.version)

	c.parser = wire.NewParser(protocol.AckDelayExponentDefault)
	c.unpacker = newPacketUnpacker(cryptoSetup, c.parser, c.srcConnID.Len())
	c.packer = newPacketPacker(
		c.srcConnID,
		c.connIDManager.Get,
		c.initialStream,
		c.handshakeStream,
		c.sentPacketHandler,
		c.retransmissionQueue,
		cryptoSetup,
		c.framer,
		c.windowUpdateQueue,
		c.datagramQueue,
		c.ackFrameForPacking,
		c.perspective,
	)
}

// newStatelessResetToken derives a token for connID from the configured
// StatelessResetKey, letting this endpoint recognize its own stateless
// resets on a connection whose state it has since lost.
func (c *connection) newStatelessResetToken(connID protocol.ConnectionID) protocol.StatelessResetToken {
	var token protocol.StatelessResetToken
	if c.config.StatelessResetKey == nil {
		return token
	}
	mac := hmac.New(sha256.New, c.config.StatelessResetKey[:])
	mac.Write(connID.Bytes())
	copy(token[:], mac.Sum(nil))
	return token
}

func (c *connection) queueControlFrame(f wire.Frame) {
	c.framer.QueueControlFrame(f)
	c.scheduleSending()
}

func (c *connection) onHasStreamData(protocol.StreamID) {
	c.scheduleSending()
}

func (c *connection) scheduleSending() {
	select {
	case c.sendingScheduled <- struct{}{}:
	default:
	}
}

// ackFrameForPacking is the ackFrameSource the packer calls while building a
// packet for encLevel.
func (c *connection) ackFrameForPacking(encLevel protocol.EncryptionLevel, onlyIfQueued bool) *wire.AckFrame {
	h := c.receivedPacketHandlers[encLevel-1]
	if h == nil {
		return nil
	}
	return h.GetAckFrame(onlyIfQueued)
}

// run drives the connection until it closes, returning the error the
// application sees from Context().Err() and from blocked stream/datagram calls.
func (c *connection) run() error {
	defer close(c.runClosed)

	now := time.Now()
	c.lastPacketReceivedTime = now
	c.timer.SetTimer(now.Add(c.idleTimeout), time.Time{}, time.Time{}, time.Time{}, time.Time{}, time.Time{})

	var reason closeReason
runLoop:
	for {
		select {
		case reason = <-c.closeChan:
			break runLoop
		case now := <-c.timer.Chan():
			c.timer.SetRead()
			if err := c.handleTimeout(now); err != nil {
				switch err.(type) {
				case *IdleTimeoutError, *HandshakeTimeoutError:
					reason = closeReason{err: err, immediate: true}
				default:
					reason = closeReason{err: err}
				}
				break runLoop
			}
		case p := <-c.receivedPackets:
			if err := c.handleOnePacket(p); err != nil {
				reason = closeReason{err: err}
				break runLoop
			}
		case <-c.sendingScheduled:
		}

		if err := c.sendPackets(); err != nil {
			reason = closeReason{err: err}
			break runLoop
		}
		c.resetIdleTimer()
	}

	c.closeErr = reason.err
	c.teardown(reason)
	return reason.err
}

func (c *connection) handleTimeout(now time.Time) error {
	if now.After(c.lastPacketReceivedTime.Add(c.idleTimeout)) {
		if !c.handshakeComplete {
			return &HandshakeTimeoutError{}
		}
		return &IdleTimeoutError{}
	}
	if lossTimeout := c.sentPacketHandler.GetLossDetectionTimeout(); !lossTimeout.IsZero() && !lossTimeout.After(now) {
		if err := c.sentPacketHandler.OnLossDetectionTimeout(now); err != nil {
			return err
		}
	}
	if c.config.KeepAlivePeriod > 0 && c.handshakeConfirmed && !c.keepAlivePingSent {
		if now.After(c.lastPacketReceivedTime.Add(c.config.KeepAlivePeriod)) {
			c.queueControlFrame(&wire.PingFrame{})
			c.keepAlivePingSent = true
		}
	}
	return nil
}

func (c *connection) resetIdleTimer() {
	idleTimeout := c.idleTimeout
	if c.handshakeComplete {
		idleTimeout = c.config.MaxIdleTimeout
	}
	deadline := c.lastPacketReceivedTime.Add(idleTimeout)
	lossTime := c.sentPacketHandler.GetLossDetectionTimeout()
	var ackAlarm time.Time
	for _, h := range c.receivedPacketHandlers {
		if h == nil {
			continue
		}
		if t := h.GetAlarmTimeout(); !t.IsZero() && (ackAlarm.IsZero() || t.Before(ackAlarm)) {
			ackAlarm = t
		}
	}
	c.timer.SetTimer(deadline, time.Time{}, time.Time{}, ackAlarm, lossTime, c.sentPacketHandler.TimeUntilSend())
}

// handlePacket implements packetHandler: called by the server's or
// client's socket-reading loop once a datagram has been routed here by
// its destination connection ID.
func (c *connection) handlePacket(p receivedPacket) {
	select {
	case c.receivedPackets <- p:
	case <-c.runClosed:
	default:
		if c.logger != nil {
			c.logger.Debug("dropping packet, receive queue full")
		}
	}
}

func (c *connection) handleOnePacket(p receivedPacket) error {
	c.lastPacketReceivedTime = p.rcvTime
	c.sentPacketHandler.ReceivedBytes(p.Size())

	data := p.data
	for len(data) > 0 {
		if wire.IsLongHeaderPacket(data[0]) {
			hdr, packetData, rest, err := wire.ParseLongHeaderPacket(data)
			if err != nil {
				return nil //nolint:nilerr // malformed coalesced remainder is dropped, not fatal
			}
			if err := c.handleLongHeaderPacket(hdr, packetData, p); err != nil {
				return err
			}
			data = rest
			continue
		}
		return c.handleShortHeaderPacket(data, p)
	}
	return nil
}

func (c *connection) handleLongHeaderPacket(hdr *wire.Header, data []byte, p receivedPacket) error {
	encLevel := hdr.Type.EncryptionLevel()
	unpacked, err := c.unpacker.UnpackLongHeader(hdr, data, c.version)
	if err != nil {
		if errors.Is(err, handshake.ErrKeysNotYetAvailable) || errors.Is(err, handshake.ErrKeysDropped) {
			return nil
		}
		return nil //nolint:nilerr // a packet that fails to decrypt is dropped, not fatal
	}
	isAckEliciting, err := c.handleFrames(unpacked.frames, encLevel, p)
	if err != nil {
		return err
	}
	if h := c.receivedPacketHandlers[encLevel-1]; h != nil {
		if err := h.ReceivedPacket(unpacked.packetNumber, p.ecn, p.rcvTime, isAckEliciting); err != nil {
			return err
		}
	}
	return nil
}

func (c *connection) handleShortHeaderPacket(data []byte, p receivedPacket) error {
	unpacked, err := c.unpacker.UnpackShortHeader(data, c.version)
	if err != nil {
		if errors.Is(err, handshake.ErrKeysNotYetAvailable) {
			return nil
		}
		return nil //nolint:nilerr // see handleLongHeaderPacket
	}
	isAckEliciting, err := c.handleFrames(unpacked.frames, protocol.Encryption1RTT, p)
	if err != nil {
		return err
	}
	if h := c.receivedPacketHandlers[protocol.Encryption1RTT-1]; h != nil {
		if err := h.ReceivedPacket(unpacked.packetNumber, p.ecn, p.rcvTime, isAckEliciting); err != nil {
			return err
		}
	}
	return nil
}

func (c *connection) handleFrames(frames []wire.Frame, encLevel protocol.EncryptionLevel, p receivedPacket) (isAckEliciting bool, _ error) {
	for _, f := range frames {
		switch f.(type) {
		case *wire.AckFrameAdapter, *wire.ConnectionCloseFrame:
		default:
			isAckEliciting = true
		}
		if err := c.handleFrame(f, encLevel, p); err != nil {
			return isAckEliciting, err
		}
	}
	return isAckEliciting, nil
}

func (c *connection) handleFrame(f wire.Frame, encLevel protocol.EncryptionLevel, p receivedPacket) error {
	switch frame := f.(type) {
	case *wire.PingFrame:
	case *wire.AckFrameAdapter:
		acked1RTT, err := c.sentPacketHandler.ReceivedAck(frame.AckFrame, encLevel, p.rcvTime)
		if err != nil {
			return err
		}
		if acked1RTT {
			c.markHandshakeConfirmed()
		}
	case *wire.CryptoFrame:
		return c.cryptoStreamManager.HandleCryptoFrame(frame, encLevel)
	case *wire.ResetStreamFrame:
		return c.streamsMap.HandleResetStreamFrame(frame)
	case *wire.StopSendingFrame:
		return c.streamsMap.HandleStopSendingFrame(frame)
	case *wire.StreamFrame:
		return c.streamsMap.HandleStreamFrame(frame)
	case *wire.MaxDataFrame:
		c.connFlowController.UpdateSendWindow(frame.MaximumData)
	case *wire.MaxStreamDataFrame:
		return c.streamsMap.HandleMaxStreamDataFrame(frame)
	case *wire.MaxStreamsFrame:
		c.streamsMap.HandleMaxStreamsFrame(frame)
	case *wire.DataBlockedFrame:
	case *wire.StreamDataBlockedFrame:
	case *wire.StreamsBlockedFrame:
	case *wire.NewConnectionIDFrame:
		return c.connIDManager.Add(frame)
	case *wire.RetireConnectionIDFrame:
		return c.connIDGenerator.Retire(frame.SequenceNumber, p.rcvTime)
	case *wire.PathChallengeFrame:
		c.queueControlFrame(&wire.PathResponseFrame{Data: frame.Data})
	case *wire.PathResponseFrame:
		c.pathManager.HandlePathResponseFrame(frame)
	case *wire.NewTokenFrame:
	case *wire.HandshakeDoneFrame:
		c.markHandshakeConfirmed()
	case *wire.DatagramFrame:
		c.datagramQueue.HandleDatagramFrame(frame)
	case *wire.ConnectionCloseFrame:
		return c.handlePeerClose(frame)
	default:
		return fmt.Errorf("quic: unexpected frame type %T", frame)
	}
	return nil
}

func (c *connection) markHandshakeConfirmed() {
	if c.handshakeConfirmed {
		return
	}
	c.handshakeConfirmed = true
	c.cryptoStreamHandler.SetHandshakeConfirmed()
	c.sentPacketHandler.SetHandshakeConfirmed()
}

func (c *connection) handlePeerClose(f *wire.ConnectionCloseFrame) error {
	if f.IsApplicationError {
		c.closeWithReason(closeReason{err: &qerr.ApplicationError{ErrorCode: f.ErrorCode, Remote: true, ErrorMessage: f.ReasonPhrase}, remote: true})
	} else {
		c.closeWithReason(closeReason{err: &qerr.TransportError{ErrorCode: qerr.TransportErrorCode(f.ErrorCode), FrameType: f.FrameType, Remote: true, ErrorMessage: f.ReasonPhrase}, remote: true})
	}
	return nil
}

// sendPackets drains whatever the packer can build right now.
func (c *connection) sendPackets() error {
	for {
		sendMode := c.sentPacketHandler.SendMode(time.Now())
		if sendMode == ackhandler.SendNone {
			return nil
		}
		onlyAck := sendMode == ackhandler.SendAck
		packet, err := c.packer.PackCoalescedPacket(onlyAck, c.version)
		if err != nil {
			return err
		}
		if packet == nil {
			return nil
		}
		c.registerSentPacket(packet, time.Now())
		if err := c.conn.Write(packet.buffer); err != nil {
			return err
		}
		if onlyAck {
			return nil
		}
	}
}

func (c *connection) registerSentPacket(packet *coalescedPacket, now time.Time) {
	for _, p := range packet.longHdrPackets {
		level := p.EncryptionLevel()
		c.sentPacketHandler.SentPacket(now, p.packetNumber, c.unpacker.largestRcvd(level), nil, p.frames, level, p.length, false, false)
	}
	if sp := packet.shortHdrPacket; sp != nil {
		c.sentPacketHandler.SentPacket(now, sp.PacketNumber, c.unpacker.largestRcvd(protocol.Encryption1RTT), sp.StreamFrames, sp.Frames, protocol.Encryption1RTT, sp.Length, sp.IsPathMTUProbePacket, sp.IsPathProbePacket)
	}
}

// OnReceivedParams implements handshake.handshakeRunner.
func (c *connection) OnReceivedParams(params *wire.TransportParameters) {
	c.streamsMap.UpdateLimits(params)
	c.connFlowController.UpdateSendWindow(params.InitialMaxData)
	if params.StatelessResetToken != nil {
		c.connIDManager.SetStatelessResetToken(*params.StatelessResetToken)
	}
	idleTimeout := c.config.MaxIdleTimeout
	if params.MaxIdleTimeout > 0 && params.MaxIdleTimeout < idleTimeout {
		idleTimeout = params.MaxIdleTimeout
	}
	c.idleTimeout = idleTimeout
}

// OnReceivedReadKeys implements handshake.handshakeRunner.
func (c *connection) OnReceivedReadKeys() {}

// OnHandshakeComplete implements handshake.handshakeRunner.
func (c *connection) OnHandshakeComplete() {
	c.handshakeComplete = true
	c.connIDGenerator.SetHandshakeComplete()
	close(c.handshakeCompleteChan)
	if c.perspective == protocol.PerspectiveServer {
		c.queueControlFrame(&wire.HandshakeDoneFrame{})
	}
	c.scheduleSending()
}

// DropKeys implements handshake.handshakeRunner.
func (c *connection) DropKeys(level protocol.EncryptionLevel) {
	c.sentPacketHandler.DropPackets(level)
	if h := c.receivedPacketHandlers[level-1]; h != nil {
		h.DropPackets()
	}
	c.retransmissionQueue.DropPackets(level)
}

// teardown runs once, after the run loop exits: releases local resources
// and, unless this is a silent or remote close, sends one CONNECTION_CLOSE
// and leaves a closedLocalConn stand-in behind for reordered packets.
func (c *connection) teardown(reason closeReason) {
	c.streamsMap.CloseWithError(reason.err)
	c.datagramQueue.CloseWithError(reason.err)
	c.cryptoStreamHandler.Close()
	c.ctxCancel(reason.err)

	if reason.immediate || reason.remote {
		c.connIDGenerator.RemoveAll()
		c.runner.Remove(c.srcConnID)
		return
	}

	var transportErr *qerr.TransportError
	var appErr *qerr.ApplicationError
	switch e := reason.err.(type) {
	case *qerr.TransportError:
		transportErr = e
	case *qerr.ApplicationError:
		appErr = e
	default:
		transportErr = qerr.NewLocalTransportError(qerr.InternalError, "")
	}

	var closedLocal packetHandler
	if packet, err := c.packer.PackConnectionClose(transportErr, appErr, c.version); err == nil && packet != nil {
		buf := packet.buffer
		_ = c.conn.Write(buf)
		closedLocal = newClosedLocalConn(func(net.Addr, packetInfo) { _ = c.conn.Write(buf) }, c.logger)
	} else {
		closedLocal = newClosedRemoteConn()
	}
	c.connIDGenerator.ReplaceWithClosed(closedLocal)
}

// destroy implements packetHandler: torn down immediately with no
// CONNECTION_CLOSE sent, for when the peer is presumed gone.
func (c *connection) destroy(err error) {
	if err == nil {
		err = errors.New("quic: connection destroyed")
	}
	c.closeWithReason(closeReason{err: err, immediate: true})
}

// closeWithTransportError implements packetHandler.
func (c *connection) closeWithTransportError(code TransportErrorCode) {
	c.closeWithReason(closeReason{err: qerr.NewLocalTransportError(code, "")})
}

func (c *connection) closeWithReason(reason closeReason) {
	c.closeOnce.Do(func() {
		select {
		case c.closeChan <- reason:
		default:
		}
	})
}

// CloseWithError implements Connection.
func (c *connection) CloseWithError(code ApplicationErrorCode, msg string) error {
	c.closeWithReason(closeReason{err: qerr.NewLocalApplicationError(code, msg)})
	<-c.runClosed
	return nil
}

func (c *connection) Context() context.Context { return c.ctx }

func (c *connection) HandshakeComplete() <-chan struct{} { return c.handshakeCompleteChan }

func (c *connection) ConnectionState() ConnectionState {
	<-c.handshakeCompleteChan
	c.connStateMu.Lock()
	defer c.connStateMu.Unlock()
	state := c.cryptoStreamHandler.ConnectionState()
	c.connState.TLS = state.ConnectionState
	c.connState.Used0RTT = state.Used0RTT
	return c.connState
}

func (c *connection) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *connection) AcceptStream(ctx context.Context) (Stream, error) {
	return c.streamsMap.AcceptStream(ctx)
}
func (c *connection) AcceptUniStream(ctx context.Context) (ReceiveStream, error) {
	return c.streamsMap.AcceptUniStream(ctx)
}
func (c *connection) OpenStream() (Stream, error) { return c.streamsMap.OpenStream() }
func (c *connection) OpenStreamSync(ctx context.Context) (Stream, error) {
	return c.streamsMap.OpenStreamSync(ctx)
}
func (c *connection) OpenUniStream() (SendStream, error) { return c.streamsMap.OpenUniStream() }
func (c *connection) OpenUniStreamSync(ctx context.Context) (SendStream, error) {
	return c.streamsMap.OpenUniStreamSync(ctx)
}

func (c *connection) SendDatagram(b []byte) error {
	if !c.config.EnableDatagrams {
		return errors.New("quic: datagram support disabled")
	}
	return c.datagramQueue.AddAndWait(c.ctx, &wire.DatagramFrame{DataLenPresent: true, Data: b})
}

func (c *connection) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return c.datagramQueue.Receive(ctx)
}

// localTransportParameters builds the transport parameters this endpoint
// advertises during the handshake.
func (c *connection) localTransportParameters() *wire.TransportParameters {
	params := &wire.TransportParameters{
		InitialSourceConnectionID:      c.srcConnID,
		InitialMaxData:                 protocol.ByteCount(c.config.InitialConnectionReceiveWindow),
		InitialMaxStreamDataBidiLocal:  protocol.ByteCount(c.config.InitialStreamReceiveWindow),
		InitialMaxStreamDataBidiRemote: protocol.ByteCount(c.config.InitialStreamReceiveWindow),
		InitialMaxStreamDataUni:        protocol.ByteCount(c.config.InitialStreamReceiveWindow),
		MaxBidiStreamNum:               protocol.StreamNum(c.config.MaxIncomingStreams),
		MaxUniStreamNum:                protocol.StreamNum(c.config.MaxIncomingUniStreams),
		MaxIdleTimeout:                 c.config.MaxIdleTimeout,
		MaxUDPPayloadSize:              protocol.MaxPacketBufferSize,
		ActiveConnectionIDLimit:        protocol.MaxActiveConnectionIDs,
		AckDelayExponent:               protocol.AckDelayExponentDefault,
		MaxAckDelay:                    protocol.MaxAckDelayDefault,
	}
	if c.config.EnableDatagrams {
		params.MaxDatagramFrameSize = protocol.MaxPacketBufferSize
	}
	if c.perspective == protocol.PerspectiveServer {
		params.OriginalDestConnectionID = c.origDestConnID
	}
	return params
}
