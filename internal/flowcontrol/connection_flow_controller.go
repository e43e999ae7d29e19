package flowcontrol

import (
	"github.com/quicframe/quicframe/internal/protocol"
)

// connectionFlowController is the connection-wide flow controller. Every
// stream controller built with a non-nil connection controller feeds its
// read and received-offset deltas here; the connection-level window is the binding constraint once
// it's tighter than any individual stream's.
type connectionFlowController struct {
	baseFlowController
}

// newConnectionFlowController builds the connection-level flow controller.
func newConnectionFlowController(receiveWindow, maxReceiveWindow, initialSendWindow protocol.ByteCount) *connectionFlowController {
	return &connectionFlowController{
		baseFlowController: baseFlowController{
			receiveWindow: receiveWindow,
			windowSize:    receiveWindow,
			maxWindowSize: maxReceiveWindow,
			sendWindow:    initialSendWindow,
		},
	}
}

func (c *connectionFlowController) AddBytesRead(n protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.addBytesRead(n)
}

// IncrementHighestReceived advances the connection's observed-max offset by
// increment, the per-stream delta a stream-level controller computed for
// its own UpdateHighestReceived call.
func (c *connectionFlowController) IncrementHighestReceived(increment protocol.ByteCount) error {
	c.mutex.Lock()
	c.highestReceived += increment
	violated := c.highestReceived > c.receiveWindow
	receiveWindow, highestReceived := c.receiveWindow, c.highestReceived
	c.mutex.Unlock()
	if violated {
		return newFlowControlViolation(highestReceived, receiveWindow)
	}
	return nil
}

func (c *connectionFlowController) GetWindowUpdate() protocol.ByteCount {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.getWindowUpdate()
}

// EnsureMinimumWindowIncrement raises the connection's window increment to
// at least inc, called when a stream-level window increment grows past it,
// so the connection-level window keeps pace with its busiest stream.
func (c *connectionFlowController) EnsureMinimumWindowIncrement(inc protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.ensureMinimumWindowIncrement(inc)
}

var _ ConnectionFlowController = &connectionFlowController{}
