package ackhandler

import "github.com/quicframe/quicframe/internal/wire"

// Frame wraps a wire.Frame with the callbacks the sender needs once its
// fate is decided: OnAcked fires when the packet carrying it is acked,
// OnLost when the packet is declared lost and the frame needs to be
// retransmitted. Acking a frame also fires onAcked for every frame in its
// retransmittedAs list; no code adds entries to that list, so in practice
// only the frame's own OnAcked runs.
type Frame struct {
	wire.Frame
	OnLost  func(wire.Frame)
	OnAcked func(wire.Frame)

	retransmittedAs []*Frame
}

func (f *Frame) onAcked() {
	for _, r := range f.retransmittedAs {
		r.onAcked()
	}
	if f.OnAcked != nil {
		f.OnAcked(f.Frame)
	}
}

// IsFrameAckEliciting reports whether f requires the peer to send an
// acknowledgment; everything but ACK frames themselves does.
func IsFrameAckEliciting(f Frame) bool {
	switch f.Frame.(type) {
	case *wire.AckFrame:
		return false
	default:
		return true
	}
}

// HasAckElicitingFrames reports whether any of fs would require the peer to
// send an acknowledgment.
func HasAckElicitingFrames(fs []Frame) bool {
	for _, f := range fs {
		if IsFrameAckEliciting(f) {
			return true
		}
	}
	return false
}
