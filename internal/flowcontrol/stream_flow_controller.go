package flowcontrol

import (
	"github.com/quicframe/quicframe/internal/protocol"
)

// streamFlowController is the flow controller attached to one stream. When
// connection is non-nil, every byte it accepts also advances the
// connection-level controller, and growth of its own window increment is
// mirrored there so the connection-level window never becomes the binding
// constraint before the stream-level one does.
type streamFlowController struct {
	baseFlowController

	streamID   protocol.StreamID
	connection ConnectionFlowController
}

// newStreamFlowController builds the flow controller for one stream.
// connFC is nil for the crypto streams, which don't contribute to or
// consult connection-level flow control.
func newStreamFlowController(streamID protocol.StreamID, connFC ConnectionFlowController, receiveWindow, maxReceiveWindow, initialSendWindow protocol.ByteCount) *streamFlowController {
	return &streamFlowController{
		streamID:   streamID,
		connection: connFC,
		baseFlowController: baseFlowController{
			receiveWindow: receiveWindow,
			windowSize:    receiveWindow,
			maxWindowSize: maxReceiveWindow,
			sendWindow:    initialSendWindow,
		},
	}
}

func (c *streamFlowController) AddBytesRead(n protocol.ByteCount) {
	c.mutex.Lock()
	c.addBytesRead(n)
	c.mutex.Unlock()
	if c.connection != nil {
		c.connection.AddBytesRead(n)
	}
}

// UpdateHighestReceived records the byte offset implied by a STREAM frame.
// final marks a frame carrying the FIN bit, used by the caller to
// cross-check the final size; the flow controller itself treats every
// offset update identically.
func (c *streamFlowController) UpdateHighestReceived(offset protocol.ByteCount, final bool) error {
	c.mutex.Lock()
	increment, err := c.updateHighestReceived(offset)
	c.mutex.Unlock()
	if err != nil {
		return err
	}
	if increment == 0 || c.connection == nil {
		return nil
	}
	return c.connection.IncrementHighestReceived(increment)
}

func (c *streamFlowController) GetWindowUpdate() protocol.ByteCount {
	c.mutex.Lock()
	oldIncrement := c.windowSize
	offset := c.getWindowUpdate()
	newIncrement := c.windowSize
	c.mutex.Unlock()
	if offset == 0 {
		return 0
	}
	if newIncrement > oldIncrement && c.connection != nil {
		c.connection.EnsureMinimumWindowIncrement(newIncrement)
	}
	return offset
}

// Abandon is called when the stream is reset or closed early; it credits
// any never-to-arrive bytes back to the connection-level window so a reset
// stream doesn't permanently consume connection flow-control budget.
func (c *streamFlowController) Abandon() {
	c.mutex.Lock()
	unread := c.highestReceived - c.bytesRead
	c.mutex.Unlock()
	if unread > 0 && c.connection != nil {
		c.connection.AddBytesRead(unread)
	}
}

var _ StreamFlowController = &streamFlowController{}
