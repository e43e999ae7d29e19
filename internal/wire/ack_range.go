package wire

import "github.com/quicframe/quicframe/internal/protocol"

// AckRange is a contiguous range of acked packet numbers, inclusive on
// both ends, as decoded from an ACK frame's (gap, length) pairs.
type AckRange struct {
	Smallest protocol.PacketNumber
	Largest  protocol.PacketNumber
}

// Len returns the number of packet numbers covered by the range.
func (r AckRange) Len() protocol.PacketNumber {
	return r.Largest - r.Smallest + 1
}
