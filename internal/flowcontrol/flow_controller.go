package flowcontrol

import "github.com/quicframe/quicframe/internal/protocol"

// NewConnectionFlowController builds the connection-wide flow controller,
// used once per connection.
func NewConnectionFlowController(receiveWindow, maxReceiveWindow, initialSendWindow protocol.ByteCount) ConnectionFlowController {
	return newConnectionFlowController(receiveWindow, maxReceiveWindow, initialSendWindow)
}

// NewStreamFlowController builds the flow controller for one stream. connFC
// is nil for a stream that does not contribute to connection-level flow
// control (the crypto streams).
func NewStreamFlowController(streamID protocol.StreamID, connFC ConnectionFlowController, receiveWindow, maxReceiveWindow, initialSendWindow protocol.ByteCount) StreamFlowController {
	return newStreamFlowController(streamID, connFC, receiveWindow, maxReceiveWindow, initialSendWindow)
}
