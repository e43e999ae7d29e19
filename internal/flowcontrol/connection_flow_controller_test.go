package flowcontrol

import (
	"testing"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionFlowControllerIncrementHighestReceived(t *testing.T) {
	c := newConnectionFlowController(100, 1000, 0)
	require.NoError(t, c.IncrementHighestReceived(60))
	assert.Equal(t, protocol.ByteCount(60), c.highestReceived)

	require.NoError(t, c.IncrementHighestReceived(40))
	assert.Equal(t, protocol.ByteCount(100), c.highestReceived)

	err := c.IncrementHighestReceived(1)
	assert.Error(t, err, "101 bytes observed against a 100 byte window is a flow control violation")
}

func TestConnectionFlowControllerEnsureMinimumWindowIncrement(t *testing.T) {
	c := newConnectionFlowController(100, 1000, 0)
	c.EnsureMinimumWindowIncrement(500)
	assert.Equal(t, protocol.ByteCount(500), c.windowSize)
}

func TestConnectionFlowControllerGetWindowUpdate(t *testing.T) {
	c := newConnectionFlowController(100, 1000, 0)
	c.AddBytesRead(80)
	offset := c.GetWindowUpdate()
	assert.NotZero(t, offset)
	assert.Equal(t, offset, c.receiveWindow)
}
