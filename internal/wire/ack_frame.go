package wire

import (
	"bytes"
	"errors"
	"math"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/quicvarint"
)

// maxAckDelayMicros is the largest raw (pre-shift) microsecond value that,
// once left-shifted by an ACK delay exponent, still fits in a
// time.Duration without overflowing once converted to nanoseconds.
const maxAckDelayMicros = uint64(math.MaxInt64) / uint64(time.Microsecond)

// ReceiveTimestamp is one entry of the optional per-range receive
// timestamp extension (mirrors the timestamps mvfst attaches to help RTT
// sampling over lossy links). parseAckFrame and Append neither read nor
// write these entries, and no transport parameter negotiates them.
type ReceiveTimestamp struct {
	DeltaFromPrevious uint64 // microseconds, delta-encoded as on the wire
	Gap                uint64
}

// AckFrame is an ACK frame, with or without ECN counts.
type AckFrame struct {
	AckRanges []AckRange
	DelayTime time.Duration

	ECT0, ECT1, ECNCE uint64
	ECNPresent        bool

	ReceiveTimestamps []ReceiveTimestamp

	fromPool bool
}

var errInvalidAckRanges = errors.New("wire: ACK frame contains invalid ACK ranges")
var errAckDelayOverflow = errors.New("wire: ACK delay overflows a microsecond duration")

// LargestAcked returns the largest packet number acked by this frame.
func (f *AckFrame) LargestAcked() protocol.PacketNumber {
	return f.AckRanges[0].Largest
}

// LowestAcked returns the smallest packet number acked by this frame.
func (f *AckFrame) LowestAcked() protocol.PacketNumber {
	return f.AckRanges[len(f.AckRanges)-1].Smallest
}

// AcksPacket reports whether pn is covered by one of the frame's ranges.
func (f *AckFrame) AcksPacket(pn protocol.PacketNumber) bool {
	if pn < f.LowestAcked() || pn > f.LargestAcked() {
		return false
	}
	for _, r := range f.AckRanges {
		if pn >= r.Smallest && pn <= r.Largest {
			return true
		}
	}
	return false
}

// HasMissingRanges reports whether this ACK reports a gap, i.e. covers more
// than one contiguous range of packet numbers.
func (f *AckFrame) HasMissingRanges() bool {
	return len(f.AckRanges) > 1
}

func (f *AckFrame) validate() error {
	if len(f.AckRanges) == 0 {
		return errInvalidAckRanges
	}
	for i, r := range f.AckRanges {
		if r.Smallest > r.Largest {
			return errInvalidAckRanges
		}
		if i > 0 && r.Largest >= f.AckRanges[i-1].Smallest {
			return errInvalidAckRanges
		}
	}
	return nil
}

func parseAckFrame(frameType FrameType, r *bytes.Reader, ackDelayExponent uint8, _ protocol.Version) (*AckFrame, error) {
	f := GetAckFrame()

	largestAcked, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	delay, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	if ackDelayExponent >= 64 || delay > maxAckDelayMicros>>ackDelayExponent {
		return nil, errAckDelayOverflow
	}
	f.DelayTime = time.Duration(delay<<ackDelayExponent) * time.Microsecond

	numBlocks, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	firstBlockLen, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	largest := protocol.PacketNumber(largestAcked)
	smallest := largest - protocol.PacketNumber(firstBlockLen) + 1
	if smallest < 0 {
		return nil, errInvalidAckRanges
	}
	f.AckRanges = append(f.AckRanges, AckRange{Smallest: smallest, Largest: largest})

	for i := uint64(0); i < numBlocks; i++ {
		gap, err := quicvarint.Read(r)
		if err != nil {
			return nil, err
		}
		length, err := quicvarint.Read(r)
		if err != nil {
			return nil, err
		}
		largest = smallest - protocol.PacketNumber(gap) - 2
		smallest = largest - protocol.PacketNumber(length) + 1
		if largest < 0 || smallest < 0 {
			return nil, errInvalidAckRanges
		}
		f.AckRanges = append(f.AckRanges, AckRange{Smallest: smallest, Largest: largest})
	}

	if frameType == AckECNFrameType {
		f.ECNPresent = true
		if f.ECT0, err = quicvarint.Read(r); err != nil {
			return nil, err
		}
		if f.ECT1, err = quicvarint.Read(r); err != nil {
			return nil, err
		}
		if f.ECNCE, err = quicvarint.Read(r); err != nil {
			return nil, err
		}
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Append serializes the ACK frame. ackDelayExponent must match the value
// this endpoint advertised in its transport parameters.
func (f *AckFrame) Append(b []byte, ackDelayExponent uint8, v protocol.Version) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	frameType := AckFrameType
	if f.ECNPresent {
		frameType = AckECNFrameType
	}
	b = quicvarint.Append(b, uint64(frameType))
	b = quicvarint.Append(b, uint64(f.LargestAcked()))
	delay := uint64(f.DelayTime/time.Microsecond) >> ackDelayExponent
	b = quicvarint.Append(b, delay)
	b = quicvarint.Append(b, uint64(len(f.AckRanges)-1))

	first := f.AckRanges[0]
	b = quicvarint.Append(b, uint64(first.Len()))
	prevSmallest := first.Smallest
	for _, r := range f.AckRanges[1:] {
		gap := uint64(prevSmallest - r.Largest - 2)
		b = quicvarint.Append(b, gap)
		b = quicvarint.Append(b, uint64(r.Len()))
		prevSmallest = r.Smallest
	}
	if f.ECNPresent {
		b = quicvarint.Append(b, f.ECT0)
		b = quicvarint.Append(b, f.ECT1)
		b = quicvarint.Append(b, f.ECNCE)
	}
	return b, nil
}

// AckFrameAdapter wraps a decoded AckFrame so it satisfies the Frame
// interface for generic dispatch through the frame parser. AckFrame itself
// can't implement Frame directly: its Append/Length take an explicit
// ackDelayExponent (needed because the encoder and decoder may use
// different exponents), which collides with Frame's fixed signature.
// Received ACKs are only inspected, never re-serialized, so the default
// exponent used here is never actually exercised.
type AckFrameAdapter struct {
	*AckFrame
}

func (a *AckFrameAdapter) Append(b []byte, v protocol.Version) ([]byte, error) {
	return a.AckFrame.Append(b, protocol.AckDelayExponentDefault, v)
}

func (a *AckFrameAdapter) Length(v protocol.Version) protocol.ByteCount {
	return a.AckFrame.Length(protocol.AckDelayExponentDefault)
}

// Length returns the number of bytes Append would write.
func (f *AckFrame) Length(ackDelayExponent uint8) protocol.ByteCount {
	frameType := AckFrameType
	if f.ECNPresent {
		frameType = AckECNFrameType
	}
	length := quicvarint.Len(uint64(frameType)) + quicvarint.Len(uint64(f.LargestAcked()))
	delay := uint64(f.DelayTime/time.Microsecond) >> ackDelayExponent
	length += quicvarint.Len(delay)
	length += quicvarint.Len(uint64(len(f.AckRanges) - 1))
	length += quicvarint.Len(uint64(f.AckRanges[0].Len()))

	prevSmallest := f.AckRanges[0].Smallest
	for _, r := range f.AckRanges[1:] {
		gap := uint64(prevSmallest - r.Largest - 2)
		length += quicvarint.Len(gap)
		length += quicvarint.Len(uint64(r.Len()))
		prevSmallest = r.Smallest
	}
	if f.ECNPresent {
		length += quicvarint.Len(f.ECT0) + quicvarint.Len(f.ECT1) + quicvarint.Len(f.ECNCE)
	}
	return protocol.ByteCount(length)
}

// Reset clears the frame so it can be returned to the pool.
func (f *AckFrame) Reset() {
	f.AckRanges = f.AckRanges[:0]
	f.ReceiveTimestamps = nil
	f.ECNPresent = false
	f.ECT0, f.ECT1, f.ECNCE = 0, 0, 0
	f.DelayTime = 0
}
