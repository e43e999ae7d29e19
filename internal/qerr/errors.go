package qerr

import (
	"errors"
	"fmt"
	"net"

	"github.com/quicframe/quicframe/internal/protocol"
)

// TransportError is a transport-level error, sent (or received) in a
// CONNECTION_CLOSE frame of type 0x1c.
type TransportError struct {
	FrameType  uint64 // the frame type that triggered this error, 0 if none
	ErrorCode  TransportErrorCode
	Remote     bool // true if this error was received from the peer
	ErrorMessage string
}

var _ error = &TransportError{}

func (e *TransportError) Error() string {
	str := e.ErrorCode.String()
	if e.ErrorMessage != "" {
		str += ": " + e.ErrorMessage
	}
	if e.FrameType != 0 {
		str = fmt.Sprintf("%s (frame type: %#x)", str, e.FrameType)
	}
	if e.Remote {
		return "received " + str
	}
	return "local " + str
}

// Is lets TransportError participate in errors.Is comparisons against
// net.ErrClosed once the connection has fully closed.
func (e *TransportError) Is(target error) bool {
	return target == net.ErrClosed
}

// NewLocalTransportError builds a transport error this endpoint is about to
// close the connection with.
func NewLocalTransportError(code TransportErrorCode, msg string) *TransportError {
	return &TransportError{ErrorCode: code, ErrorMessage: msg}
}

// NewLocalTransportErrorWithFrameType attaches the offending frame type to
// a transport close, as RFC 9000 Section 19.19 requires.
func NewLocalTransportErrorWithFrameType(frameType uint64, code TransportErrorCode, msg string) *TransportError {
	return &TransportError{FrameType: frameType, ErrorCode: code, ErrorMessage: msg}
}

// NewLocalCryptoError wraps a TLS alert raised by the local crypto/tls
// handshake driver as a QUIC CRYPTO_ERROR transport close.
func NewLocalCryptoError(tlsAlert uint8, msg string) *TransportError {
	return &TransportError{ErrorCode: NewCryptoError(tlsAlert), ErrorMessage: msg}
}

// ApplicationError is an application-level error, sent (or received) in a
// CONNECTION_CLOSE frame of type 0x1d.
type ApplicationError struct {
	ErrorCode    uint64
	Remote       bool
	ErrorMessage string
}

var _ error = &ApplicationError{}

func (e *ApplicationError) Error() string {
	str := fmt.Sprintf("Application error %#x", e.ErrorCode)
	if e.ErrorMessage != "" {
		str += ": " + e.ErrorMessage
	}
	if e.Remote {
		return "received " + str
	}
	return "local " + str
}

func (e *ApplicationError) Is(target error) bool {
	return target == net.ErrClosed
}

// NewLocalApplicationError builds an application-close error.
func NewLocalApplicationError(code uint64, msg string) *ApplicationError {
	return &ApplicationError{ErrorCode: code, ErrorMessage: msg}
}

// StreamError is the error surfaced to an application calling Read/Write on
// a stream that the peer reset, or that was reset locally.
type StreamError struct {
	StreamID  protocol.StreamID
	ErrorCode uint64
	Remote    bool
}

var _ error = &StreamError{}

func (e *StreamError) Error() string {
	who := "local"
	if e.Remote {
		who = "remote"
	}
	return fmt.Sprintf("stream %d reset with error code %#x (%s)", e.StreamID, e.ErrorCode, who)
}

// IdleTimeoutError is returned to the application when a connection closes
// because no packet was received within max_idle_timeout. This is a silent
// close: no CONNECTION_CLOSE frame is ever sent or expected.
type IdleTimeoutError struct{}

func (IdleTimeoutError) Error() string { return "timeout: no recent network activity" }
func (IdleTimeoutError) Timeout() bool { return true }
func (e IdleTimeoutError) Is(target error) bool { return target == net.ErrClosed }

// HandshakeTimeoutError is returned when the handshake does not complete
// within the configured handshake timeout.
type HandshakeTimeoutError struct{}

func (HandshakeTimeoutError) Error() string { return "timeout: handshake did not complete in time" }
func (HandshakeTimeoutError) Timeout() bool { return true }
func (e HandshakeTimeoutError) Is(target error) bool { return target == net.ErrClosed }

// StatelessResetError is returned when an endpoint recognizes a stateless
// reset token in an otherwise-unparseable datagram. It is fatal to the
// connection, but it is never produced locally.
type StatelessResetError struct {
	Token [16]byte
}

func (e StatelessResetError) Error() string {
	return fmt.Sprintf("received a stateless reset with token %x", e.Token)
}
func (e StatelessResetError) Is(target error) bool { return target == net.ErrClosed }

// VersionNegotiationError is returned to the client when no version in the
// server's supported list overlaps with the client's.
type VersionNegotiationError struct {
	Ours, Theirs []protocol.Version
}

func (e *VersionNegotiationError) Error() string {
	return fmt.Sprintf("no compatible QUIC version found (we support %v, server offered %v)", e.Ours, e.Theirs)
}

// AsTransportError unwraps err into a *TransportError, if it is (or wraps) one.
func AsTransportError(err error) (*TransportError, bool) {
	var transportErr *TransportError
	ok := errors.As(err, &transportErr)
	return transportErr, ok
}
