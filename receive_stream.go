package quic

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/quicframe/quicframe/internal/flowcontrol"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// receiveStreamI is the internal interface the connection and its packet
// handlers use to deliver frames to a stream's read side.
type receiveStreamI interface {
	ReceiveStream

	handleStreamFrame(*wire.StreamFrame) error
	handleResetStreamFrame(*wire.ResetStreamFrame) error
	closeForShutdown(error)
	getWindowUpdate() protocol.ByteCount
}

type receiveStream struct {
	mutex sync.Mutex

	streamID protocol.StreamID
	sender   streamSender

	sorter       *frameSorter
	currentChunk []byte
	currentFin   bool

	closeForShutdownErr error
	cancelReadErr       error
	resetRemotelyErr    error

	closedForShutdown bool // set when closeForShutdown is called
	finRead           bool // set once the FIN has been delivered to the caller
	canceledRead      bool // set when CancelRead is called
	resetRemotely     bool // set when handleResetStreamFrame is called

	readChan     chan struct{}
	readDeadline time.Time

	flowController flowcontrol.StreamFlowController
}

var _ ReceiveStream = &receiveStream{}
var _ receiveStreamI = &receiveStream{}

func newReceiveStream(
	streamID protocol.StreamID,
	sender streamSender,
	flowController flowcontrol.StreamFlowController,
) *receiveStream {
	return &receiveStream{
		streamID:       streamID,
		sender:         sender,
		flowController: flowController,
		sorter:         newFrameSorter(),
		readChan:       make(chan struct{}, 1),
	}
}

func (s *receiveStream) StreamID() protocol.StreamID {
	return s.streamID
}

func (s *receiveStream) Read(p []byte) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.finRead {
		return 0, io.EOF
	}
	if s.canceledRead {
		return 0, s.cancelReadErr
	}
	if s.resetRemotely {
		return 0, s.resetRemotelyErr
	}
	if s.closedForShutdown {
		return 0, s.closeForShutdownErr
	}

	bytesRead := 0
	for bytesRead < len(p) {
		if len(s.currentChunk) == 0 {
			chunk, fin := s.sorter.Pop()
			if chunk == nil {
				if bytesRead > 0 {
					return bytesRead, nil
				}
				if fin {
					s.finRead = true
					return 0, io.EOF
				}
				if s.closedForShutdown {
					return 0, s.closeForShutdownErr
				}
				if s.canceledRead {
					return 0, s.cancelReadErr
				}
				if s.resetRemotely {
					return 0, s.resetRemotelyErr
				}
				deadline := s.readDeadline
				if !deadline.IsZero() && !time.Now().Before(deadline) {
					return 0, errDeadline
				}

				s.mutex.Unlock()
				if deadline.IsZero() {
					<-s.readChan
				} else {
					select {
					case <-s.readChan:
					case <-time.After(time.Until(deadline)):
					}
				}
				s.mutex.Lock()
				continue
			}
			s.currentChunk = chunk
			s.currentFin = fin
		}

		n := copy(p[bytesRead:], s.currentChunk)
		s.currentChunk = s.currentChunk[n:]
		bytesRead += n

		if !s.resetRemotely {
			s.flowController.AddBytesRead(protocol.ByteCount(n))
		}

		if len(s.currentChunk) == 0 && s.currentFin {
			s.finRead = true
			if bytesRead > 0 {
				return bytesRead, nil
			}
			return 0, io.EOF
		}
	}
	return bytesRead, nil
}

func (s *receiveStream) CancelRead(errorCode StreamErrorCode) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.finRead || s.canceledRead {
		return
	}
	s.canceledRead = true
	s.cancelReadErr = fmt.Errorf("read on stream %d canceled with error code %d", s.streamID, errorCode)
	s.signalRead()
	s.sender.queueControlFrame(&wire.StopSendingFrame{
		StreamID:  s.streamID,
		ErrorCode: errorCode,
	})
}

func (s *receiveStream) handleStreamFrame(frame *wire.StreamFrame) error {
	maxOffset := frame.Offset + protocol.ByteCount(len(frame.Data))
	if err := s.flowController.UpdateHighestReceived(maxOffset, frame.Fin); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.sorter.Push(frame.Data, frame.Offset, frame.Fin); err != nil {
		return err
	}
	s.signalRead()
	return nil
}

func (s *receiveStream) handleResetStreamFrame(frame *wire.ResetStreamFrame) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closedForShutdown {
		return nil
	}
	if err := s.flowController.UpdateHighestReceived(frame.FinalSize, true); err != nil {
		return err
	}
	if s.resetRemotely {
		return nil // duplicate
	}
	s.resetRemotely = true
	s.resetRemotelyErr = streamCanceledError{
		errorCode: frame.ErrorCode,
		error:     fmt.Errorf("stream %d was reset with error code %d", s.streamID, frame.ErrorCode),
	}
	s.signalRead()
	return nil
}

func (s *receiveStream) SetReadDeadline(t time.Time) error {
	s.mutex.Lock()
	oldDeadline := s.readDeadline
	s.readDeadline = t
	s.mutex.Unlock()
	if t.Before(oldDeadline) {
		s.signalRead()
	}
	return nil
}

// closeForShutdown closes the stream abruptly without informing the peer:
// no STOP_SENDING is sent, and blocked Read calls unblock at once.
func (s *receiveStream) closeForShutdown(err error) {
	s.mutex.Lock()
	s.closedForShutdown = true
	s.closeForShutdownErr = err
	s.mutex.Unlock()
	s.signalRead()
}

func (s *receiveStream) getWindowUpdate() protocol.ByteCount {
	return s.flowController.GetWindowUpdate()
}

func (s *receiveStream) signalRead() {
	select {
	case s.readChan <- struct{}{}:
	default:
	}
}
