package flowcontrol

import (
	"testing"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamFlowControllerContributesToConnection(t *testing.T) {
	connFC := newConnectionFlowController(1000, 10000, 0)
	streamFC := newStreamFlowController(4, connFC, 100, 1000, 0)

	streamFC.AddBytesRead(50)
	connFC.mutex.Lock()
	read := connFC.bytesRead
	connFC.mutex.Unlock()
	assert.Equal(t, protocol.ByteCount(50), read)
}

func TestStreamFlowControllerUpdateHighestReceivedPropagatesIncrement(t *testing.T) {
	connFC := newConnectionFlowController(1000, 10000, 0)
	streamFC := newStreamFlowController(4, connFC, 1000, 10000, 0)

	require.NoError(t, streamFC.UpdateHighestReceived(100, false))
	connFC.mutex.Lock()
	highest := connFC.highestReceived
	connFC.mutex.Unlock()
	assert.Equal(t, protocol.ByteCount(100), highest)

	require.NoError(t, streamFC.UpdateHighestReceived(100, false), "a repeated offset is not an error")
}

func TestStreamFlowControllerViolation(t *testing.T) {
	streamFC := newStreamFlowController(4, nil, 100, 1000, 0)
	err := streamFC.UpdateHighestReceived(200, false)
	assert.Error(t, err)
}

func TestStreamFlowControllerWithoutConnectionController(t *testing.T) {
	streamFC := newStreamFlowController(2, nil, 100, 1000, 0)
	streamFC.AddBytesRead(10)
	require.NoError(t, streamFC.UpdateHighestReceived(50, false))
}

func TestStreamFlowControllerAbandonCreditsConnection(t *testing.T) {
	connFC := newConnectionFlowController(1000, 10000, 0)
	streamFC := newStreamFlowController(4, connFC, 1000, 10000, 0)

	require.NoError(t, streamFC.UpdateHighestReceived(300, false))
	streamFC.AddBytesRead(100)
	streamFC.Abandon()

	connFC.mutex.Lock()
	read := connFC.bytesRead
	connFC.mutex.Unlock()
	assert.Equal(t, protocol.ByteCount(300), read, "unread bytes from the reset stream are credited back")
}
