package quic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quicframe/quicframe/internal/ackhandler"
	"github.com/quicframe/quicframe/internal/flowcontrol"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

type sendStream struct {
	mutex sync.Mutex

	ctx       context.Context
	ctxCancel context.CancelFunc

	streamID protocol.StreamID
	sender   streamSender

	writeOffset protocol.ByteCount

	cancelWriteErr      error
	closeForShutdownErr error

	closedForShutdown bool // set when closeForShutdown is called
	finishedWriting   bool // set once Close() is called
	canceledWrite     bool // set when CancelWrite is called, or a STOP_SENDING frame is received
	finSent           bool // set once a STREAM frame with the FIN bit has been popped

	dataForWriting      []byte
	retransmissionQueue []*wire.StreamFrame // lost frames, retransmitted ahead of fresh data
	writeChan           chan struct{}
	writeDeadline       time.Time

	flowController flowcontrol.StreamFlowController
	version        protocol.Version
}

var _ SendStream = &sendStream{}
var _ sendStreamI = &sendStream{}

func newSendStream(
	streamID protocol.StreamID,
	sender streamSender,
	flowController flowcontrol.StreamFlowController,
	version protocol.Version,
) *sendStream {
	s := &sendStream{
		streamID:       streamID,
		sender:         sender,
		flowController: flowController,
		writeChan:      make(chan struct{}, 1),
		version:        version,
	}
	s.ctx, s.ctxCancel = context.WithCancel(context.Background())
	return s
}

func (s *sendStream) StreamID() protocol.StreamID {
	return s.streamID
}

func (s *sendStream) Write(p []byte) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.finishedWriting {
		return 0, fmt.Errorf("write on closed stream %d", s.streamID)
	}
	if s.canceledWrite {
		return 0, s.cancelWriteErr
	}
	if s.closeForShutdownErr != nil {
		return 0, s.closeForShutdownErr
	}
	if !s.writeDeadline.IsZero() && !time.Now().Before(s.writeDeadline) {
		return 0, errDeadline
	}
	if len(p) == 0 {
		return 0, nil
	}

	s.dataForWriting = make([]byte, len(p))
	copy(s.dataForWriting, p)
	s.sender.onHasStreamData(s.streamID)
	s.sender.scheduleSending()

	var bytesWritten int
	var err error
	for {
		bytesWritten = len(p) - len(s.dataForWriting)
		deadline := s.writeDeadline
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			s.dataForWriting = nil
			err = errDeadline
			break
		}
		if s.dataForWriting == nil || s.canceledWrite || s.closedForShutdown {
			break
		}

		s.mutex.Unlock()
		if deadline.IsZero() {
			<-s.writeChan
		} else {
			select {
			case <-s.writeChan:
			case <-time.After(time.Until(deadline)):
			}
		}
		s.mutex.Lock()
	}

	if s.closeForShutdownErr != nil {
		err = s.closeForShutdownErr
	} else if s.cancelWriteErr != nil {
		err = s.cancelWriteErr
	}
	return bytesWritten, err
}

func (s *sendStream) hasData() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.dataForWriting != nil || (s.finishedWriting && !s.finSent)
}

// popStreamFrame returns the next STREAM frame for this stream, wrapped
// with the callbacks that account for it once it is acked or lost. maxBytes
// bounds the frame's total length, header included.
func (s *sendStream) popStreamFrame(maxBytes protocol.ByteCount) (_ ackhandler.Frame, ok, hasMore bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closeForShutdownErr != nil {
		return ackhandler.Frame{}, false, false
	}

	if len(s.retransmissionQueue) > 0 {
		return s.popRetransmission(maxBytes)
	}

	frame := &wire.StreamFrame{
		StreamID:       s.streamID,
		Offset:         s.writeOffset,
		DataLenPresent: true,
	}
	frameLen := frame.Length(s.version)
	if frameLen >= maxBytes { // a STREAM frame must carry at least one byte of data
		return ackhandler.Frame{}, false, s.hasDataLocked()
	}
	frame.Data, frame.Fin = s.getDataForWriting(frame.MaxDataLen(maxBytes, s.version))
	if len(frame.Data) == 0 && !frame.Fin {
		return ackhandler.Frame{}, false, false
	}
	if frame.Fin {
		s.finSent = true
	} else if isBlocked, offset := s.flowController.IsBlocked(); isBlocked {
		s.sender.queueControlFrame(&wire.StreamDataBlockedFrame{
			StreamID:          s.streamID,
			MaximumStreamData: offset,
		})
	}
	af := ackhandler.Frame{Frame: frame}
	af.OnLost = s.queueRetransmission
	af.OnAcked = s.frameAcked
	return af, true, s.hasDataLocked()
}

// popRetransmission must be called with the mutex held and a non-empty
// retransmissionQueue; it hands back the head frame, splitting it if it
// doesn't fit in maxBytes.
func (s *sendStream) popRetransmission(maxBytes protocol.ByteCount) (ackhandler.Frame, bool, bool) {
	frame := s.retransmissionQueue[0]
	frame.DataLenPresent = true
	split, needsSplit := frame.MaybeSplitOffFrame(maxBytes, s.version)
	if needsSplit {
		if split == nil { // doesn't fit at all in maxBytes
			return ackhandler.Frame{}, false, true
		}
		af := ackhandler.Frame{Frame: split, OnLost: s.queueRetransmission, OnAcked: s.frameAcked}
		return af, true, true
	}
	s.retransmissionQueue = s.retransmissionQueue[1:]
	af := ackhandler.Frame{Frame: frame, OnLost: s.queueRetransmission, OnAcked: s.frameAcked}
	return af, true, len(s.retransmissionQueue) > 0 || s.hasDataLocked()
}

func (s *sendStream) hasDataLocked() bool {
	return len(s.retransmissionQueue) > 0 || s.dataForWriting != nil || (s.finishedWriting && !s.finSent)
}

// queueRetransmission is the OnLost callback: a lost STREAM frame just goes
// back onto retransmissionQueue, to be resent ahead of any fresh data.
func (s *sendStream) queueRetransmission(f wire.Frame) {
	sf := f.(*wire.StreamFrame)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closedForShutdown {
		return
	}
	s.retransmissionQueue = append(s.retransmissionQueue, sf)
	s.sender.onHasStreamData(s.streamID)
	s.sender.scheduleSending()
}

func (s *sendStream) frameAcked(wire.Frame) {}

func (s *sendStream) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.canceledWrite {
		return fmt.Errorf("close called for canceled stream %d", s.streamID)
	}
	s.finishedWriting = true
	s.sender.onHasStreamData(s.streamID)
	s.sender.scheduleSending()
	s.ctxCancel()
	return nil
}

func (s *sendStream) CancelWrite(errorCode StreamErrorCode) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cancelWriteImpl(errorCode, fmt.Errorf("write on stream %d canceled with error code %d", s.streamID, errorCode))
}

// cancelWriteImpl must be called with the mutex held.
func (s *sendStream) cancelWriteImpl(errorCode StreamErrorCode, writeErr error) {
	if s.canceledWrite || s.finishedWriting {
		return
	}
	s.canceledWrite = true
	s.cancelWriteErr = writeErr
	s.signalWrite()
	s.sender.queueControlFrame(&wire.ResetStreamFrame{
		StreamID:  s.streamID,
		ErrorCode: errorCode,
		FinalSize: s.writeOffset,
	})
	s.ctxCancel()
}

func (s *sendStream) handleStopSendingFrame(frame *wire.StopSendingFrame) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	writeErr := streamCanceledError{
		errorCode: frame.ErrorCode,
		error:     fmt.Errorf("stream %d was reset with error code %d", s.streamID, frame.ErrorCode),
	}
	s.cancelWriteImpl(frame.ErrorCode, writeErr)
}

func (s *sendStream) handleMaxStreamDataFrame(frame *wire.MaxStreamDataFrame) {
	s.flowController.UpdateSendWindow(frame.MaximumStreamData)
}

func (s *sendStream) Context() context.Context {
	return s.ctx
}

func (s *sendStream) SetWriteDeadline(t time.Time) error {
	s.mutex.Lock()
	oldDeadline := s.writeDeadline
	s.writeDeadline = t
	s.mutex.Unlock()
	if t.Before(oldDeadline) {
		s.signalWrite()
	}
	return nil
}

// closeForShutdown closes the stream abruptly without informing the peer:
// no FIN or RESET_STREAM is sent, and blocked Write calls unblock at once.
func (s *sendStream) closeForShutdown(err error) {
	s.mutex.Lock()
	s.closedForShutdown = true
	s.closeForShutdownErr = err
	s.mutex.Unlock()
	s.signalWrite()
	s.ctxCancel()
}

func (s *sendStream) getDataForWriting(maxBytes protocol.ByteCount) ([]byte, bool) {
	if s.dataForWriting == nil {
		return nil, s.finishedWriting && !s.finSent
	}

	maxBytes = min(maxBytes, s.flowController.SendWindowSize())
	if maxBytes == 0 {
		return nil, false
	}

	var ret []byte
	if protocol.ByteCount(len(s.dataForWriting)) > maxBytes {
		ret = s.dataForWriting[:maxBytes]
		s.dataForWriting = s.dataForWriting[maxBytes:]
	} else {
		ret = s.dataForWriting
		s.dataForWriting = nil
		s.signalWrite()
	}
	s.writeOffset += protocol.ByteCount(len(ret))
	s.flowController.AddBytesSent(protocol.ByteCount(len(ret)))
	return ret, s.finishedWriting && s.dataForWriting == nil && !s.finSent
}

func (s *sendStream) finished() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closedForShutdown || s.finSent || s.canceledWrite
}

func (s *sendStream) getWriteOffset() protocol.ByteCount {
	return s.writeOffset
}

// signalWrite performs a non-blocking send on writeChan.
func (s *sendStream) signalWrite() {
	select {
	case s.writeChan <- struct{}{}:
	default:
	}
}
