package quic

import (
	"time"

	"github.com/quicframe/quicframe/internal/flowcontrol"
	"github.com/quicframe/quicframe/internal/protocol"
)

// streamI is what the streams map and connection need from a bidirectional
// stream: both halves of the public Stream interface, plus the internal
// frame-handling hooks each half exposes separately.
type streamI interface {
	Stream
	receiveStreamI
	sendStreamI
}

// stream is a bidirectional stream: independent send and receive halves
// that share only a stream ID and a combined deadline setter.
type stream struct {
	*sendStream
	*receiveStream

	streamID protocol.StreamID
}

var _ Stream = &stream{}
var _ streamI = &stream{}

func newStream(
	streamID protocol.StreamID,
	sender streamSender,
	sendFC flowcontrol.StreamFlowController,
	receiveFC flowcontrol.StreamFlowController,
	version protocol.Version,
) *stream {
	return &stream{
		sendStream:    newSendStream(streamID, sender, sendFC, version),
		receiveStream: newReceiveStream(streamID, sender, receiveFC),
		streamID:      streamID,
	}
}

func (s *stream) StreamID() protocol.StreamID {
	return s.streamID
}

func (s *stream) SetDeadline(t time.Time) error {
	_ = s.sendStream.SetWriteDeadline(t)
	_ = s.receiveStream.SetReadDeadline(t)
	return nil
}

// closeForShutdown tears down both halves without notifying the peer.
func (s *stream) closeForShutdown(err error) {
	s.sendStream.closeForShutdown(err)
	s.receiveStream.closeForShutdown(err)
}
