package quic

import (
	"github.com/quicframe/quicframe/internal/qerr"
)

type (
	TransportError          = qerr.TransportError
	ApplicationError        = qerr.ApplicationError
	StreamError             = qerr.StreamError
	VersionNegotiationError = qerr.VersionNegotiationError
	StatelessResetError     = qerr.StatelessResetError
	IdleTimeoutError        = qerr.IdleTimeoutError
	HandshakeTimeoutError   = qerr.HandshakeTimeoutError
)

// TransportErrorCode identifies a transport-level error as defined by
// RFC 9000 Section 20.1.
type TransportErrorCode = qerr.TransportErrorCode

// ApplicationErrorCode is an application protocol error code, carried in an
// application CONNECTION_CLOSE frame (RFC 9000 Section 20.2). The
// application protocol using this module defines its own code space.
type ApplicationErrorCode = uint64

const (
	NoError                      = qerr.NoError
	InternalError                = qerr.InternalError
	ConnectionRefused            = qerr.ConnectionRefused
	FlowControlError             = qerr.FlowControlError
	StreamLimitError             = qerr.StreamLimitError
	StreamStateError             = qerr.StreamStateError
	FinalSizeError               = qerr.FinalSizeError
	FrameEncodingError           = qerr.FrameEncodingError
	TransportParameterError      = qerr.TransportParameterError
	ConnectionIDLimitError       = qerr.ConnectionIDLimitError
	ProtocolViolation            = qerr.ProtocolViolation
	InvalidToken                 = qerr.InvalidToken
	ApplicationErrorTransportCode = qerr.ApplicationErrorCode
	CryptoBufferExceeded         = qerr.CryptoBufferExceeded
	KeyUpdateError               = qerr.KeyUpdateError
	AEADLimitReached             = qerr.AEADLimitReached
	NoViablePath                 = qerr.NoViablePath
)
