package quic

import (
	"net"
	"testing"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPacketHandler struct {
	received []receivedPacket
}

func (h *stubPacketHandler) handlePacket(p receivedPacket)            { h.received = append(h.received, p) }
func (h *stubPacketHandler) destroy(error)                            {}
func (h *stubPacketHandler) closeWithTransportError(TransportErrorCode) {}

func TestGenerateInitialPacketNumberIsInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		pn := generateInitialPacketNumber()
		assert.GreaterOrEqual(t, int64(pn), int64(0))
		assert.Less(t, int64(pn), int64(1<<31))
	}
}

func TestDiscardLoggerDoesNotPanic(t *testing.T) {
	logger := discardLogger()
	require.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Debug("hello", "key", "value") })
}

func TestDispatchPacketRoutesToOwner(t *testing.T) {
	runner := newPacketHandlerMap()
	connID, err := protocol.GenerateConnectionID(8)
	require.NoError(t, err)
	handler := &stubPacketHandler{}
	require.True(t, runner.Add(connID, handler))

	// A short-header packet: first byte with the long-header bit clear,
	// followed by connID, matching shortHeaderConnIDLen below.
	data := append([]byte{0x40}, connID.Bytes()...)
	data = append(data, 0x01, 0x02, 0x03)

	dispatchPacket(data, &net.UDPAddr{}, runner, connID.Len(), discardLogger())
	require.Len(t, handler.received, 1)
	assert.Equal(t, data, handler.received[0].data)
	assert.WithinDuration(t, time.Now(), handler.received[0].rcvTime, time.Second)
}

func TestDispatchPacketDropsUnknownConnID(t *testing.T) {
	runner := newPacketHandlerMap()
	unknown, err := protocol.GenerateConnectionID(8)
	require.NoError(t, err)
	data := append([]byte{0x40}, unknown.Bytes()...)
	assert.NotPanics(t, func() {
		dispatchPacket(data, &net.UDPAddr{}, runner, unknown.Len(), discardLogger())
	})
}
