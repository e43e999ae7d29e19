package quic

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
)

// StreamID identifies a stream within a connection. The low two bits encode
// initiator and directionality, as in RFC 9000 Section 2.1.
type StreamID = protocol.StreamID

// Version is a QUIC wire version number.
type Version = protocol.Version

// SendStream is the interface implemented by the write half of a stream.
type SendStream interface {
	io.Writer
	io.Closer
	// StreamID returns the stream's identifier.
	StreamID() StreamID
	// CancelWrite aborts sending on this stream, RESET_STREAM-ing it with
	// the given application error code. Data already acked is unaffected.
	CancelWrite(StreamErrorCode)
	// SetWriteDeadline sets a deadline after which Write calls blocked on
	// flow control return an error wrapping os.ErrDeadlineExceeded.
	SetWriteDeadline(time.Time) error
}

// ReceiveStream is the interface implemented by the read half of a stream.
type ReceiveStream interface {
	io.Reader
	// StreamID returns the stream's identifier.
	StreamID() StreamID
	// CancelRead aborts receiving on this stream, sending the peer a
	// STOP_SENDING frame with the given application error code.
	CancelRead(StreamErrorCode)
	// SetReadDeadline sets a deadline after which blocked Read calls
	// return an error wrapping os.ErrDeadlineExceeded.
	SetReadDeadline(time.Time) error
}

// Stream is a bidirectional QUIC stream.
type Stream interface {
	SendStream
	ReceiveStream
	// SetDeadline sets both the read and write deadlines.
	SetDeadline(time.Time) error
}

// StreamErrorCode is an application protocol error code carried in
// RESET_STREAM and STOP_SENDING frames.
type StreamErrorCode = uint64

// ConnectionState records state about a QUIC connection once the TLS
// handshake has produced it.
type ConnectionState struct {
	TLS               tls.ConnectionState
	SupportsDatagrams bool
	Used0RTT          bool
	GSO               bool
	Version           Version
}

// Connection is a QUIC connection between two peers, established either
// by dialing a server or accepting from a Listener.
type Connection interface {
	// AcceptStream returns the next bidirectional stream opened by the
	// peer, blocking until one is available or ctx is done.
	AcceptStream(context.Context) (Stream, error)
	// AcceptUniStream returns the next unidirectional stream opened by
	// the peer, blocking until one is available or ctx is done.
	AcceptUniStream(context.Context) (ReceiveStream, error)
	// OpenStream opens a new bidirectional stream, returning an error
	// immediately if the peer's concurrent stream limit is reached.
	OpenStream() (Stream, error)
	// OpenStreamSync opens a new bidirectional stream, blocking until
	// the peer's stream limit allows one or ctx is done.
	OpenStreamSync(context.Context) (Stream, error)
	// OpenUniStream and OpenUniStreamSync do the same for unidirectional
	// streams.
	OpenUniStream() (SendStream, error)
	OpenUniStreamSync(context.Context) (SendStream, error)

	// LocalAddr and RemoteAddr report the connection's socket addresses.
	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// CloseWithError closes the connection, sending a CONNECTION_CLOSE
	// frame carrying the given application error code and reason.
	CloseWithError(ApplicationErrorCode, string) error

	// Context is canceled once the connection has closed.
	Context() context.Context
	// ConnectionState returns a snapshot of the connection's TLS and
	// negotiated-feature state. Blocks until the handshake completes.
	ConnectionState() ConnectionState
	// HandshakeComplete is closed once the handshake completes.
	HandshakeComplete() <-chan struct{}

	// SendDatagram queues an unreliable DATAGRAM frame for sending.
	SendDatagram([]byte) error
	// ReceiveDatagram returns the next DATAGRAM frame payload received
	// from the peer, blocking until one arrives or ctx is done.
	ReceiveDatagram(context.Context) ([]byte, error)
}

// Listener listens for incoming QUIC connections on one UDP socket.
type Listener interface {
	// Accept returns the next connection, blocking until one is
	// available, ctx is done, or the listener is closed.
	Accept(context.Context) (Connection, error)
	// Addr returns the local address the listener is bound to.
	Addr() net.Addr
	io.Closer
}
