package quic

import (
	"testing"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVersion = protocol.Version1

func TestRetransmissionQueueInitialData(t *testing.T) {
	q := newRetransmissionQueue()
	_, ok := q.GetFrame(protocol.EncryptionInitial, protocol.MaxByteCount, testVersion)
	assert.False(t, ok)
	assert.False(t, q.HasData(protocol.EncryptionInitial))

	f := &wire.MaxDataFrame{MaximumData: 0x42}
	q.addInitial(f)
	assert.True(t, q.HasData(protocol.EncryptionInitial))
	_, ok = q.GetFrame(protocol.EncryptionInitial, f.Length(testVersion)-1, testVersion)
	assert.False(t, ok)
	got, ok := q.GetFrame(protocol.EncryptionInitial, f.Length(testVersion), testVersion)
	require.True(t, ok)
	assert.Equal(t, f, got.Frame)
	assert.False(t, q.HasData(protocol.EncryptionInitial))
}

func TestRetransmissionQueueInitialCryptoAndControl(t *testing.T) {
	q := newRetransmissionQueue()
	cf := &wire.MaxDataFrame{MaximumData: 0x42}
	f := &wire.CryptoFrame{Data: []byte("foobar")}
	q.addInitial(f)
	q.addInitial(cf)
	assert.True(t, q.HasData(protocol.EncryptionInitial))

	got1, ok := q.GetFrame(protocol.EncryptionInitial, protocol.MaxByteCount, testVersion)
	require.True(t, ok)
	assert.Equal(t, f, got1.Frame)
	got2, ok := q.GetFrame(protocol.EncryptionInitial, protocol.MaxByteCount, testVersion)
	require.True(t, ok)
	assert.Equal(t, cf, got2.Frame)
	assert.False(t, q.HasData(protocol.EncryptionInitial))
}

func TestRetransmissionQueueDropsInitial(t *testing.T) {
	q := newRetransmissionQueue()
	q.addInitial(&wire.CryptoFrame{Data: []byte("foobar")})
	q.addInitial(&wire.MaxDataFrame{MaximumData: 0x42})
	q.DropPackets(protocol.EncryptionInitial)
	assert.False(t, q.HasData(protocol.EncryptionInitial))
	_, ok := q.GetFrame(protocol.EncryptionInitial, protocol.MaxByteCount, testVersion)
	assert.False(t, ok)
}

func TestRetransmissionQueueHandshakeData(t *testing.T) {
	q := newRetransmissionQueue()
	f := &wire.MaxDataFrame{MaximumData: 0x42}
	q.addHandshake(f)
	assert.True(t, q.HasData(protocol.EncryptionHandshake))
	got, ok := q.GetFrame(protocol.EncryptionHandshake, f.Length(testVersion), testVersion)
	require.True(t, ok)
	assert.Equal(t, f, got.Frame)
	assert.False(t, q.HasData(protocol.EncryptionHandshake))
}

func TestRetransmissionQueueAppData(t *testing.T) {
	q := newRetransmissionQueue()
	_, ok := q.GetFrame(protocol.Encryption1RTT, protocol.MaxByteCount, testVersion)
	assert.False(t, ok)

	f := &wire.MaxDataFrame{MaximumData: 0x42}
	q.addAppData(f)
	_, ok = q.GetFrame(protocol.Encryption1RTT, f.Length(testVersion)-1, testVersion)
	assert.False(t, ok)
	got, ok := q.GetFrame(protocol.Encryption1RTT, f.Length(testVersion), testVersion)
	require.True(t, ok)
	assert.Equal(t, f, got.Frame)
}

func TestRetransmissionQueueRequeuesOnLoss(t *testing.T) {
	q := newRetransmissionQueue()
	f := &wire.MaxDataFrame{MaximumData: 0x1234}
	q.addAppData(f)
	got, ok := q.GetFrame(protocol.Encryption1RTT, protocol.MaxByteCount, testVersion)
	require.True(t, ok)
	require.NotNil(t, got.OnLost)

	got.OnLost(got.Frame)
	assert.True(t, q.HasData(protocol.Encryption1RTT))
	requeued, ok := q.GetFrame(protocol.Encryption1RTT, protocol.MaxByteCount, testVersion)
	require.True(t, ok)
	assert.Equal(t, f, requeued.Frame)
}
