package quic

import (
	"context"
	"testing"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T, perspective protocol.Perspective) *connection {
	t.Helper()
	config := populateConfig(&Config{EnableDatagrams: true})
	destConnID, err := protocol.GenerateConnectionID(8)
	require.NoError(t, err)
	srcConnID, err := protocol.GenerateConnectionID(8)
	require.NoError(t, err)
	return newConnection(
		context.Background(),
		nil,
		newPacketHandlerMap(),
		protocol.ConnectionID{},
		srcConnID,
		destConnID,
		protocol.StatelessResetToken{},
		config,
		perspective,
		discardLogger(),
		testVersion,
	)
}

func TestLocalTransportParametersClient(t *testing.T) {
	c := newTestConnection(t, protocol.PerspectiveClient)
	tp := c.localTransportParameters()
	assert.Equal(t, c.srcConnID, tp.InitialSourceConnectionID)
	assert.Equal(t, protocol.ByteCount(c.config.InitialConnectionReceiveWindow), tp.InitialMaxData)
	assert.Equal(t, protocol.ByteCount(protocol.MaxPacketBufferSize), tp.MaxDatagramFrameSize)
	assert.Nil(t, tp.OriginalDestConnectionID)
}

func TestLocalTransportParametersServer(t *testing.T) {
	c := newTestConnection(t, protocol.PerspectiveServer)
	c.origDestConnID = c.srcConnID
	tp := c.localTransportParameters()
	assert.Equal(t, c.origDestConnID, tp.OriginalDestConnectionID)
}

func TestNewStatelessResetTokenWithoutKey(t *testing.T) {
	c := newTestConnection(t, protocol.PerspectiveServer)
	connID, err := protocol.GenerateConnectionID(8)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatelessResetToken{}, c.newStatelessResetToken(connID))
}

func TestNewStatelessResetTokenIsDeterministic(t *testing.T) {
	c := newTestConnection(t, protocol.PerspectiveServer)
	var key StatelessResetKey
	key[0] = 0x42
	c.config.StatelessResetKey = &key

	connID, err := protocol.GenerateConnectionID(8)
	require.NoError(t, err)

	tok1 := c.newStatelessResetToken(connID)
	tok2 := c.newStatelessResetToken(connID)
	assert.Equal(t, tok1, tok2)
	assert.NotEqual(t, protocol.StatelessResetToken{}, tok1)

	otherConnID, err := protocol.GenerateConnectionID(8)
	require.NoError(t, err)
	assert.NotEqual(t, tok1, c.newStatelessResetToken(otherConnID))
}

func TestHandleFramesAckEliciting(t *testing.T) {
	c := newTestConnection(t, protocol.PerspectiveServer)

	isAckEliciting, err := c.handleFrames([]wire.Frame{&wire.PingFrame{}}, protocol.Encryption1RTT, receivedPacket{})
	require.NoError(t, err)
	assert.True(t, isAckEliciting)

	isAckEliciting, err = c.handleFrames([]wire.Frame{&wire.ConnectionCloseFrame{ReasonPhrase: "bye"}}, protocol.Encryption1RTT, receivedPacket{})
	require.NoError(t, err)
	assert.False(t, isAckEliciting)
}

func TestQueueControlFrameSchedulesSending(t *testing.T) {
	c := newTestConnection(t, protocol.PerspectiveClient)
	c.queueControlFrame(&wire.PingFrame{})
	select {
	case <-c.sendingScheduled:
	default:
		t.Fatal("expected sending to be scheduled")
	}
}

func TestScheduleSendingIsNonBlocking(t *testing.T) {
	c := newTestConnection(t, protocol.PerspectiveClient)
	c.scheduleSending()
	c.scheduleSending()
	select {
	case <-c.sendingScheduled:
	default:
		t.Fatal("expected sending to be scheduled")
	}
}

func TestCloseWithReasonIsIdempotent(t *testing.T) {
	c := newTestConnection(t, protocol.PerspectiveClient)
	c.closeWithReason(closeReason{err: context.Canceled})
	c.closeWithReason(closeReason{err: context.Canceled})
	select {
	case reason := <-c.closeChan:
		assert.Equal(t, context.Canceled, reason.err)
	default:
		t.Fatal("expected a close reason to be queued")
	}
}
