package qerr

import "fmt"

// TransportErrorCode is an error code defined by the QUIC transport
// specification, RFC 9000 Section 20.1.
type TransportErrorCode uint64

const (
	NoError                    TransportErrorCode = 0x0
	InternalError              TransportErrorCode = 0x1
	ConnectionRefused          TransportErrorCode = 0x2
	FlowControlError           TransportErrorCode = 0x3
	StreamLimitError           TransportErrorCode = 0x4
	StreamStateError           TransportErrorCode = 0x5
	FinalSizeError             TransportErrorCode = 0x6
	FrameEncodingError         TransportErrorCode = 0x7
	TransportParameterError    TransportErrorCode = 0x8
	ConnectionIDLimitError     TransportErrorCode = 0x9
	ProtocolViolation          TransportErrorCode = 0xa
	InvalidToken               TransportErrorCode = 0xb
	ApplicationErrorCode       TransportErrorCode = 0xc
	CryptoBufferExceeded       TransportErrorCode = 0xd
	KeyUpdateError             TransportErrorCode = 0xe
	AEADLimitReached           TransportErrorCode = 0xf
	NoViablePath               TransportErrorCode = 0x10
	CryptoErrorOffset          TransportErrorCode = 0x100 // add the one-byte TLS alert
)

// isCryptoError reports whether e is in the CRYPTO_ERROR range
// (0x0100-0x01ff), RFC 9000 Section 20.1.
func (e TransportErrorCode) isCryptoError() bool {
	return e >= 0x100 && e <= 0x1ff
}

func (e TransportErrorCode) String() string {
	switch e {
	case NoError:
		return "NO_ERROR"
	case InternalError:
		return "INTERNAL_ERROR"
	case ConnectionRefused:
		return "CONNECTION_REFUSED"
	case FlowControlError:
		return "FLOW_CONTROL_ERROR"
	case StreamLimitError:
		return "STREAM_LIMIT_ERROR"
	case StreamStateError:
		return "STREAM_STATE_ERROR"
	case FinalSizeError:
		return "FINAL_SIZE_ERROR"
	case FrameEncodingError:
		return "FRAME_ENCODING_ERROR"
	case TransportParameterError:
		return "TRANSPORT_PARAMETER_ERROR"
	case ConnectionIDLimitError:
		return "CONNECTION_ID_LIMIT_ERROR"
	case ProtocolViolation:
		return "PROTOCOL_VIOLATION"
	case InvalidToken:
		return "INVALID_TOKEN"
	case ApplicationErrorCode:
		return "APPLICATION_ERROR"
	case CryptoBufferExceeded:
		return "CRYPTO_BUFFER_EXCEEDED"
	case KeyUpdateError:
		return "KEY_UPDATE_ERROR"
	case AEADLimitReached:
		return "AEAD_LIMIT_REACHED"
	case NoViablePath:
		return "NO_VIABLE_PATH"
	default:
		if e.isCryptoError() {
			return fmt.Sprintf("CRYPTO_ERROR (local TLS alert %d)", uint64(e-CryptoErrorOffset))
		}
		return fmt.Sprintf("unknown error code: %#x", uint64(e))
	}
}

// Message describes what condition produced the error, for logging; it is
// never sent on the wire (the reason phrase is a separate field).
func (e TransportErrorCode) Message() string {
	return e.String()
}

// NewCryptoError wraps a TLS alert byte as a QUIC CRYPTO_ERROR.
func NewCryptoError(tlsAlert uint8) TransportErrorCode {
	return CryptoErrorOffset + TransportErrorCode(tlsAlert)
}
