// Package flowcontrol implements per-stream and per-connection send/receive
// flow control windows with the autotuning rule that expands a receive
// window when it's being drained faster than it's being reopened.
package flowcontrol

import "github.com/quicframe/quicframe/internal/protocol"

// SendFlowController tracks the peer-advertised send window on one side of
// a stream or connection.
type SendFlowController interface {
	AddBytesSent(n protocol.ByteCount)
	UpdateSendWindow(offset protocol.ByteCount)
	SendWindowSize() protocol.ByteCount
	IsBlocked() (bool, protocol.ByteCount)
}

// StreamFlowController is the flow controller attached to one stream.
type StreamFlowController interface {
	SendFlowController

	AddBytesRead(n protocol.ByteCount)
	UpdateHighestReceived(offset protocol.ByteCount, final bool) error
	GetWindowUpdate() protocol.ByteCount
	Abandon()
}

// ConnectionFlowController is the flow controller shared by the whole
// connection; stream-level controllers that contribute to it call
// IncrementHighestReceived on every byte a stream accepts.
type ConnectionFlowController interface {
	SendFlowController

	AddBytesRead(n protocol.ByteCount)
	IncrementHighestReceived(increment protocol.ByteCount) error
	GetWindowUpdate() protocol.ByteCount
	EnsureMinimumWindowIncrement(protocol.ByteCount)
}
