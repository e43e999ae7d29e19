package flowcontrol

import (
	"testing"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseFlowControllerSendWindow(t *testing.T) {
	c := &baseFlowController{}
	c.AddBytesSent(5)
	assert.Equal(t, protocol.ByteCount(5), c.bytesSent)
	assert.Equal(t, protocol.ByteCount(0), c.sendWindowSize())

	c.UpdateSendWindow(15)
	assert.Equal(t, protocol.ByteCount(10), c.sendWindowSize())
}

func TestBaseFlowControllerSendWindowNeverShrinks(t *testing.T) {
	c := &baseFlowController{}
	c.UpdateSendWindow(20)
	assert.Equal(t, protocol.ByteCount(20), c.sendWindowSize())
	c.UpdateSendWindow(10)
	assert.Equal(t, protocol.ByteCount(20), c.sendWindowSize())
}

func TestBaseFlowControllerOverspendClampsToZero(t *testing.T) {
	c := &baseFlowController{}
	c.AddBytesSent(15)
	c.UpdateSendWindow(10)
	assert.Zero(t, c.sendWindowSize())
}

func TestBaseFlowControllerIsBlocked(t *testing.T) {
	c := &baseFlowController{}
	c.UpdateSendWindow(100)
	blocked, _ := c.IsBlocked()
	assert.False(t, blocked)

	c.AddBytesSent(100)
	blocked, offset := c.IsBlocked()
	assert.True(t, blocked)
	assert.Equal(t, protocol.ByteCount(100), offset)
}

func TestBaseFlowControllerUpdateHighestReceived(t *testing.T) {
	c := &baseFlowController{receiveWindow: 100}

	inc, err := c.updateHighestReceived(50)
	require.NoError(t, err)
	assert.Equal(t, protocol.ByteCount(50), inc)

	inc, err = c.updateHighestReceived(50)
	require.NoError(t, err)
	assert.Zero(t, inc)

	_, err = c.updateHighestReceived(200)
	assert.Error(t, err)
}

func TestBaseFlowControllerWindowUpdateRespectsThreshold(t *testing.T) {
	c := &baseFlowController{
		receiveWindow: 100,
		windowSize:    100,
		maxWindowSize: 1000,
	}
	c.addBytesRead(10)
	assert.Zero(t, c.getWindowUpdate(), "not enough of the window consumed yet")

	c.addBytesRead(50)
	offset := c.getWindowUpdate()
	assert.Equal(t, protocol.ByteCount(260), offset, "the gap to the observed max was tight, so the increment doubled before extending the window")
	assert.Equal(t, offset, c.receiveWindow)
}

func TestBaseFlowControllerAutotuneDoublesIncrementUnderPressure(t *testing.T) {
	c := &baseFlowController{
		receiveWindow:   100,
		windowSize:      100,
		maxWindowSize:   1000,
		highestReceived: 90,
	}
	c.addBytesRead(60)
	c.getWindowUpdate()
	assert.Equal(t, protocol.ByteCount(200), c.windowSize, "headroom over observed-max was tight, increment should double")
}

func TestBaseFlowControllerAutotuneCapsAtMaxWindowSize(t *testing.T) {
	c := &baseFlowController{
		receiveWindow:   100,
		windowSize:      100,
		maxWindowSize:   150,
		highestReceived: 90,
	}
	c.addBytesRead(60)
	c.getWindowUpdate()
	assert.Equal(t, protocol.ByteCount(150), c.windowSize)
}

func TestBaseFlowControllerEnsureMinimumWindowIncrement(t *testing.T) {
	c := &baseFlowController{windowSize: 100, maxWindowSize: 1000}
	c.ensureMinimumWindowIncrement(500)
	assert.Equal(t, protocol.ByteCount(500), c.windowSize)

	c.ensureMinimumWindowIncrement(200)
	assert.Equal(t, protocol.ByteCount(500), c.windowSize, "increment never shrinks")

	c.ensureMinimumWindowIncrement(5000)
	assert.Equal(t, protocol.ByteCount(1000), c.windowSize, "clamped at the cap")
}
