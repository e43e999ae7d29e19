package wire

import (
	"bytes"
	"testing"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/quicvarint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAckFrameRoundTrip(t *testing.T) {
	f := &AckFrame{
		AckRanges: []AckRange{{Smallest: 5, Largest: 10}},
		DelayTime: 150 * time.Microsecond,
	}
	b, err := f.Append(nil, 3, protocol.Version1)
	require.NoError(t, err)

	parsed, err := parseAckFrame(AckFrameType, bytes.NewReader(b[1:]), 3, protocol.Version1)
	require.NoError(t, err)
	assert.Equal(t, f.AckRanges, parsed.AckRanges)
	// DelayTime round-trips only up to the exponent's resolution: the
	// low 3 bits of the microsecond count are shifted away on the wire.
	wantMicros := (int64(f.DelayTime/time.Microsecond) >> 3) << 3
	assert.Equal(t, time.Duration(wantMicros)*time.Microsecond, parsed.DelayTime)
}

func TestAckFrameRejectsOverflowingDelay(t *testing.T) {
	var b []byte
	b = quicvarint.Append(b, 10)    // largest acked
	b = quicvarint.Append(b, 1<<61) // delay, overflows once shifted
	b = quicvarint.Append(b, 0)     // num blocks
	b = quicvarint.Append(b, 1)     // first block length

	_, err := parseAckFrame(AckFrameType, bytes.NewReader(b), 20, protocol.Version1)
	assert.ErrorIs(t, err, errAckDelayOverflow)
}

func TestAckFrameAcceptsMaximalNonOverflowingDelay(t *testing.T) {
	const exponent = 10
	delay := maxAckDelayMicros >> exponent

	var b []byte
	b = quicvarint.Append(b, 10)
	b = quicvarint.Append(b, delay)
	b = quicvarint.Append(b, 0)
	b = quicvarint.Append(b, 1)

	f, err := parseAckFrame(AckFrameType, bytes.NewReader(b), exponent, protocol.Version1)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(delay<<exponent)*time.Microsecond, f.DelayTime)
}
