package quic

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/quicframe/quicframe/internal/wire"
)

// maxDatagramRcvQueueLen bounds how many received DATAGRAM frames are
// buffered before Receive is called; further ones are dropped.
const maxDatagramRcvQueueLen = 32

// maxDatagramPeekAttempts bounds how many times Peek may hand back the same
// queued frame without a matching Pop before the queue gives up on it,
// so a write loop that keeps failing to fit the frame doesn't spin forever.
const maxDatagramPeekAttempts = 3

// errDatagramQueuedTooLong is returned to AddAndWait's caller when a queued
// datagram couldn't be packed into an outgoing packet after repeated tries.
var errDatagramQueuedTooLong = errors.New("quic: datagram dropped, queued for too long")

// datagramQueue implements the send and receive sides of unreliable
// DATAGRAM frames (RFC 9221). Queued-for-sending frames are handed to the
// write loop one at a time via Peek/Pop; received ones are buffered for the
// application's Receive calls.
type datagramQueue struct {
	sendQueue chan *queuedDatagramFrame
	nextFrame *queuedDatagramFrame

	rcvMx    sync.Mutex
	rcvQueue [][]byte
	rcvd     chan struct{}

	closeErr error
	closed   chan struct{}

	hasData func()

	dequeued chan error

	logger *slog.Logger
}

type queuedDatagramFrame struct {
	frame     *wire.DatagramFrame
	peekCount int
}

func newDatagramQueue(hasData func(), logger *slog.Logger) *datagramQueue {
	return &datagramQueue{
		hasData:   hasData,
		sendQueue: make(chan *queuedDatagramFrame, 1),
		rcvd:      make(chan struct{}, 1),
		dequeued:  make(chan error),
		closed:    make(chan struct{}),
		logger:    logger,
	}
}

// AddAndWait queues a new DATAGRAM frame for sending. It blocks until the
// frame has been dequeued (sent, dropped, or the connection closed) or ctx
// is done.
func (h *datagramQueue) AddAndWait(ctx context.Context, f *wire.DatagramFrame) error {
	frame := &queuedDatagramFrame{frame: f}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case h.sendQueue <- frame:
		h.hasData()
	case <-h.closed:
		return h.closeErr
	}

	select {
	case err := <-h.dequeued:
		return err
	case <-h.closed:
		return h.closeErr
	}
}

// Peek gets the next DATAGRAM frame for sending. If actually sent, Pop must
// be called before the next call to Peek.
func (h *datagramQueue) Peek() *wire.DatagramFrame {
	if h.nextFrame != nil {
		return h.dequeueNextFrame()
	}
	select {
	case h.nextFrame = <-h.sendQueue:
		return h.dequeueNextFrame()
	default:
		return nil
	}
}

func (h *datagramQueue) dequeueNextFrame() *wire.DatagramFrame {
	h.nextFrame.peekCount++
	if h.nextFrame.peekCount > maxDatagramPeekAttempts {
		h.Pop(errDatagramQueuedTooLong)
		return nil
	}
	return h.nextFrame.frame
}

func (h *datagramQueue) Pop(err error) {
	if h.nextFrame == nil {
		panic("datagramQueue: Pop called with no frame queued")
	}
	h.nextFrame = nil
	h.dequeued <- err
}

// HandleDatagramFrame handles a received DATAGRAM frame.
func (h *datagramQueue) HandleDatagramFrame(f *wire.DatagramFrame) {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	var queued bool
	h.rcvMx.Lock()
	if len(h.rcvQueue) < maxDatagramRcvQueueLen {
		h.rcvQueue = append(h.rcvQueue, data)
		queued = true
		select {
		case h.rcvd <- struct{}{}:
		default:
		}
	}
	h.rcvMx.Unlock()
	if !queued && h.logger != nil {
		h.logger.Debug("discarding DATAGRAM frame, receive queue full", "bytes", len(f.Data))
	}
}

// Receive gets a received DATAGRAM frame, blocking until one arrives, ctx
// is done, or the connection closes.
func (h *datagramQueue) Receive(ctx context.Context) ([]byte, error) {
	for {
		h.rcvMx.Lock()
		if len(h.rcvQueue) > 0 {
			data := h.rcvQueue[0]
			h.rcvQueue = h.rcvQueue[1:]
			h.rcvMx.Unlock()
			return data, nil
		}
		h.rcvMx.Unlock()
		select {
		case <-h.rcvd:
			continue
		case <-h.closed:
			return nil, h.closeErr
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (h *datagramQueue) CloseWithError(e error) {
	h.closeErr = e
	close(h.closed)
}
