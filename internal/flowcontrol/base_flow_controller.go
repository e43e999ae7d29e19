package flowcontrol

import (
	"fmt"
	"sync"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/qerr"
)

// baseFlowController holds the send- and receive-side window bookkeeping
// shared by the stream-level and connection-level controllers.
type baseFlowController struct {
	mutex sync.Mutex

	bytesSent  protocol.ByteCount
	sendWindow protocol.ByteCount

	bytesRead        protocol.ByteCount
	highestReceived  protocol.ByteCount
	receiveWindow    protocol.ByteCount
	windowSize       protocol.ByteCount
	maxWindowSize    protocol.ByteCount
}

func (c *baseFlowController) AddBytesSent(n protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.bytesSent += n
}

// UpdateSendWindow applies a MAX_DATA/MAX_STREAM_DATA offset from the peer.
// Offsets only ever move forward; a stale or reordered smaller offset is
// ignored rather than rejected, since frames can arrive out of order.
func (c *baseFlowController) UpdateSendWindow(offset protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if offset > c.sendWindow {
		c.sendWindow = offset
	}
}

func (c *baseFlowController) SendWindowSize() protocol.ByteCount {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.sendWindowSize()
}

// sendWindowSize assumes the lock is held.
func (c *baseFlowController) sendWindowSize() protocol.ByteCount {
	if c.bytesSent > c.sendWindow {
		return 0
	}
	return c.sendWindow - c.bytesSent
}

func (c *baseFlowController) IsBlocked() (bool, protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.sendWindowSize() > 0 {
		return false, 0
	}
	return true, c.sendWindow
}

func (c *baseFlowController) addBytesRead(n protocol.ByteCount) {
	c.bytesRead += n
}

// updateHighestReceived moves the observed high-water mark forward and
// reports the CONNECTION_FLOW_CONTROL_ERROR if the peer exceeded the
// advertised window. A repeated offset (the common case for a retransmitted
// final-size-bearing frame) is not an error.
func (c *baseFlowController) updateHighestReceived(offset protocol.ByteCount) (protocol.ByteCount, error) {
	if offset == c.highestReceived {
		return 0, nil
	}
	increment := protocol.ByteCount(0)
	if offset > c.highestReceived {
		increment = offset - c.highestReceived
		c.highestReceived = offset
	}
	if c.highestReceived > c.receiveWindow {
		return increment, newFlowControlViolation(c.highestReceived, c.receiveWindow)
	}
	return increment, nil
}

func newFlowControlViolation(received, allowed protocol.ByteCount) error {
	return qerr.NewLocalTransportError(qerr.FlowControlError,
		fmt.Sprintf("received %d bytes, allowed %d bytes", received, allowed))
}

// getWindowUpdate returns the new absolute receive-window offset to
// advertise, or 0 if the window doesn't need updating yet. The autotune
// rule: once the advertised window's remaining headroom over the observed
// maximum offset falls below two window increments, the increment itself
// is doubled (capped at maxWindowSize) before the window is extended, so a
// fast reader's window grows to keep pace with its drain rate.
func (c *baseFlowController) getWindowUpdate() protocol.ByteCount {
	remaining := c.receiveWindow - c.bytesRead
	if remaining >= c.windowSize/2 {
		return 0
	}
	if c.receiveWindow-c.highestReceived < 2*c.windowSize {
		if newSize := 2 * c.windowSize; newSize <= c.maxWindowSize {
			c.windowSize = newSize
		} else {
			c.windowSize = c.maxWindowSize
		}
	}
	c.receiveWindow = c.bytesRead + c.windowSize
	return c.receiveWindow
}

// ensureMinimumWindowIncrement raises the increment so that a stream-level
// window's growth is reflected at the connection level; used only by the
// connection flow controller.
func (c *baseFlowController) ensureMinimumWindowIncrement(inc protocol.ByteCount) {
	if inc > c.windowSize {
		if inc <= c.maxWindowSize {
			c.windowSize = inc
		} else {
			c.windowSize = c.maxWindowSize
		}
	}
}
