package quic

import (
	"context"
	"fmt"

	"github.com/quicframe/quicframe/internal/flowcontrol"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// streamsMap owns the four independent stream-ID namespaces IETF QUIC
// defines (RFC 9000 Section 2.1): bidirectional and unidirectional, each
// split into locally- and peer-initiated halves.
type streamsMap struct {
	perspective protocol.Perspective
	sender      streamSender
	connFC      flowcontrol.ConnectionFlowController
	version     protocol.Version

	initialStreamSendWindow    protocol.ByteCount
	initialStreamReceiveWindow protocol.ByteCount
	maxStreamReceiveWindow     protocol.ByteCount

	outgoingBidiStreams *outgoingItemsMap[streamI]
	outgoingUniStreams  *outgoingItemsMap[sendStreamI]
	incomingBidiStreams *incomingItemsMap[streamI]
	incomingUniStreams  *incomingItemsMap[receiveStreamI]
}

func newStreamsMap(
	sender streamSender,
	connFC flowcontrol.ConnectionFlowController,
	maxIncomingBidiStreams, maxIncomingUniStreams protocol.StreamNum,
	perspective protocol.Perspective,
	version protocol.Version,
) *streamsMap {
	m := &streamsMap{
		perspective:                perspective,
		sender:                     sender,
		connFC:                     connFC,
		version:                    version,
		initialStreamSendWindow:    protocol.DefaultInitialMaxStreamData,
		initialStreamReceiveWindow: protocol.DefaultInitialMaxStreamData,
		maxStreamReceiveWindow:     protocol.DefaultMaxReceiveStreamFlowControlWindow,
	}
	m.outgoingBidiStreams = newOutgoingItemsMap(
		protocol.StreamTypeBidi,
		func(num protocol.StreamNum) streamI { return m.newBidiStream(num) },
		sender.queueControlFrame,
	)
	m.outgoingUniStreams = newOutgoingItemsMap(
		protocol.StreamTypeUni,
		func(num protocol.StreamNum) sendStreamI { return m.newSendOnlyStream(num) },
		sender.queueControlFrame,
	)
	m.incomingBidiStreams = newIncomingItemsMap(
		protocol.StreamTypeBidi,
		maxIncomingBidiStreams,
		sender.queueControlFrame,
		func(num protocol.StreamNum) streamI { return m.newStreamFor(m.peerStreamID(protocol.StreamTypeBidi, num)) },
	)
	m.incomingUniStreams = newIncomingItemsMap(
		protocol.StreamTypeUni,
		maxIncomingUniStreams,
		sender.queueControlFrame,
		func(num protocol.StreamNum) receiveStreamI { return m.newReceiveOnlyStream(num) },
	)
	return m
}

func (m *streamsMap) localStreamID(stype protocol.StreamType, num protocol.StreamNum) protocol.StreamID {
	return num.StreamID(stype, m.perspective)
}

func (m *streamsMap) peerStreamID(stype protocol.StreamType, num protocol.StreamNum) protocol.StreamID {
	return num.StreamID(stype, m.perspective.Opposite())
}

func (m *streamsMap) newBidiStream(num protocol.StreamNum) streamI {
	return m.newStreamFor(m.localStreamID(protocol.StreamTypeBidi, num))
}

func (m *streamsMap) newStreamFor(id protocol.StreamID) streamI {
	sendFC := flowcontrol.NewStreamFlowController(id, m.connFC, m.initialStreamReceiveWindow, m.maxStreamReceiveWindow, m.initialStreamSendWindow)
	recvFC := flowcontrol.NewStreamFlowController(id, m.connFC, m.initialStreamReceiveWindow, m.maxStreamReceiveWindow, m.initialStreamSendWindow)
	return newStream(id, m.sender, sendFC, recvFC, m.version)
}

func (m *streamsMap) newSendOnlyStream(num protocol.StreamNum) sendStreamI {
	id := m.localStreamID(protocol.StreamTypeUni, num)
	fc := flowcontrol.NewStreamFlowController(id, m.connFC, m.initialStreamReceiveWindow, m.maxStreamReceiveWindow, m.initialStreamSendWindow)
	return newSendStream(id, m.sender, fc, m.version)
}

func (m *streamsMap) newReceiveOnlyStream(num protocol.StreamNum) receiveStreamI {
	id := m.peerStreamID(protocol.StreamTypeUni, num)
	fc := flowcontrol.NewStreamFlowController(id, m.connFC, m.initialStreamReceiveWindow, m.maxStreamReceiveWindow, m.initialStreamSendWindow)
	return newReceiveStream(id, m.sender, fc)
}

func (m *streamsMap) OpenStream() (Stream, error) {
	return m.outgoingBidiStreams.OpenStream()
}

func (m *streamsMap) OpenStreamSync(ctx context.Context) (Stream, error) {
	return openSync[streamI](ctx, m.outgoingBidiStreams)
}

func (m *streamsMap) OpenUniStream() (SendStream, error) {
	return m.outgoingUniStreams.OpenStream()
}

func (m *streamsMap) OpenUniStreamSync(ctx context.Context) (SendStream, error) {
	return openSync[sendStreamI](ctx, m.outgoingUniStreams)
}

func (m *streamsMap) AcceptStream(ctx context.Context) (Stream, error) {
	return acceptSync[streamI](ctx, m.incomingBidiStreams)
}

func (m *streamsMap) AcceptUniStream(ctx context.Context) (ReceiveStream, error) {
	return acceptSync[receiveStreamI](ctx, m.incomingUniStreams)
}

// openSync runs OpenStreamSync on a background goroutine so it can also
// respect ctx; the happy path (room available immediately) never blocks.
func openSync[T streamControlItem](ctx context.Context, m interface {
	OpenStreamSync() (T, error)
}) (T, error) {
	type result struct {
		s   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := m.OpenStreamSync()
		done <- result{s, err}
	}()
	select {
	case r := <-done:
		return r.s, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func acceptSync[T streamControlItem](ctx context.Context, m interface {
	AcceptStream() (T, error)
}) (T, error) {
	type result struct {
		s   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := m.AcceptStream()
		done <- result{s, err}
	}()
	select {
	case r := <-done:
		return r.s, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// GetOrOpenSendStream looks up the send half of a stream by ID, for the
// framer to pop queued data from. Peer-initiated unidirectional streams
// have no send half from our side and are rejected.
func (m *streamsMap) GetOrOpenSendStream(id protocol.StreamID) (sendStreamI, error) {
	num := id.StreamNum()
	local := id.InitiatedBy() == m.perspective
	switch {
	case id.Type() == protocol.StreamTypeBidi && local:
		return m.outgoingBidiStreams.GetStream(num)
	case id.Type() == protocol.StreamTypeBidi && !local:
		return m.incomingBidiStreams.GetOrOpenStream(num)
	case id.Type() == protocol.StreamTypeUni && local:
		return m.outgoingUniStreams.GetStream(num)
	default:
		return nil, fmt.Errorf("peer attempted to open send stream %d", id)
	}
}

// HandleStreamFrame dispatches a STREAM frame to the stream it addresses,
// opening the stream (and any lower-numbered ones of the same type) first
// if the peer hasn't been seen opening it yet.
func (m *streamsMap) HandleStreamFrame(frame *wire.StreamFrame) error {
	id := frame.StreamID
	num := id.StreamNum()
	local := id.InitiatedBy() == m.perspective
	if id.Type() == protocol.StreamTypeBidi {
		var str streamI
		var err error
		if local {
			str, err = m.outgoingBidiStreams.GetStream(num)
		} else {
			str, err = m.incomingBidiStreams.GetOrOpenStream(num)
		}
		if err != nil || str == nil {
			return err
		}
		return str.handleStreamFrame(frame)
	}
	if local {
		return fmt.Errorf("peer sent STREAM frame for send-only stream %d", id)
	}
	str, err := m.incomingUniStreams.GetOrOpenStream(num)
	if err != nil || str == nil {
		return err
	}
	return str.handleStreamFrame(frame)
}

func (m *streamsMap) HandleResetStreamFrame(frame *wire.ResetStreamFrame) error {
	id := frame.StreamID
	num := id.StreamNum()
	local := id.InitiatedBy() == m.perspective
	if id.Type() == protocol.StreamTypeBidi {
		var str streamI
		var err error
		if local {
			str, err = m.outgoingBidiStreams.GetStream(num)
		} else {
			str, err = m.incomingBidiStreams.GetOrOpenStream(num)
		}
		if err != nil || str == nil {
			return err
		}
		return str.handleResetStreamFrame(frame)
	}
	if local {
		return fmt.Errorf("peer sent RESET_STREAM frame for send-only stream %d", id)
	}
	str, err := m.incomingUniStreams.GetOrOpenStream(num)
	if err != nil || str == nil {
		return err
	}
	return str.handleResetStreamFrame(frame)
}

func (m *streamsMap) HandleStopSendingFrame(frame *wire.StopSendingFrame) error {
	str, err := m.GetOrOpenSendStream(frame.StreamID)
	if err != nil || str == nil {
		return err
	}
	str.handleStopSendingFrame(frame)
	return nil
}

func (m *streamsMap) HandleMaxStreamDataFrame(frame *wire.MaxStreamDataFrame) error {
	str, err := m.GetOrOpenSendStream(frame.StreamID)
	if err != nil || str == nil {
		return err
	}
	str.handleMaxStreamDataFrame(frame)
	return nil
}

func (m *streamsMap) HandleMaxStreamsFrame(frame *wire.MaxStreamsFrame) {
	if frame.Type == protocol.StreamTypeBidi {
		m.outgoingBidiStreams.SetMaxStream(frame.MaxStreams)
	} else {
		m.outgoingUniStreams.SetMaxStream(frame.MaxStreams)
	}
}

func (m *streamsMap) DeleteStream(id protocol.StreamID) error {
	num := id.StreamNum()
	local := id.InitiatedBy() == m.perspective
	switch {
	case id.Type() == protocol.StreamTypeBidi && local:
		return m.outgoingBidiStreams.DeleteStream(num)
	case id.Type() == protocol.StreamTypeBidi && !local:
		return m.incomingBidiStreams.DeleteStream(num)
	case id.Type() == protocol.StreamTypeUni && local:
		return m.outgoingUniStreams.DeleteStream(num)
	default:
		return m.incomingUniStreams.DeleteStream(num)
	}
}

// UpdateLimits applies the peer's initial transport parameters, widening
// the concurrent-stream limits we may open against and the per-stream send
// window newly created streams start with.
func (m *streamsMap) UpdateLimits(params *wire.TransportParameters) {
	m.outgoingBidiStreams.SetMaxStream(params.MaxBidiStreamNum)
	m.outgoingUniStreams.SetMaxStream(params.MaxUniStreamNum)
	m.initialStreamSendWindow = max(params.InitialMaxStreamDataBidiRemote, params.InitialMaxStreamDataUni)
}

func (m *streamsMap) CloseWithError(err error) {
	m.outgoingBidiStreams.CloseWithError(err)
	m.outgoingUniStreams.CloseWithError(err)
	m.incomingBidiStreams.CloseWithError(err)
	m.incomingUniStreams.CloseWithError(err)
}
