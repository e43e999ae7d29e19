package wire

import "github.com/quicframe/quicframe/internal/protocol"

// A Frame is a QUIC wire frame. Every frame type in this package implements
// it. Append serializes the frame onto b and returns the extended slice;
// Length reports how many bytes Append would add, so callers (the packet
// builder, C4) can budget space before committing to write.
type Frame interface {
	Append(b []byte, v protocol.Version) ([]byte, error)
	Length(v protocol.Version) protocol.ByteCount
}

// FrameFormatError is returned when a frame's encoded form violates its own
// invariants (e.g. RESET_STREAM_AT with reliable_size > final_size). It is
// never a decryption failure; callers translate it into a
// FRAME_ENCODING_ERROR connection close.
type FrameFormatError struct {
	msg string
}

func (e *FrameFormatError) Error() string { return "frame format error: " + e.msg }

func newFrameFormatError(msg string) error { return &FrameFormatError{msg: msg} }
