package quic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quicframe/quicframe/internal/ackhandler"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// sendStreamI is what the streams map and packet packer need from a
// stream's send half, beyond the public SendStream interface.
type sendStreamI interface {
	SendStream

	hasData() bool
	popStreamFrame(maxBytes protocol.ByteCount) (_ ackhandler.Frame, ok, hasMore bool)
	handleStopSendingFrame(*wire.StopSendingFrame)
	handleMaxStreamDataFrame(*wire.MaxStreamDataFrame)
	closeForShutdown(error)
	getWriteOffset() protocol.ByteCount
	finished() bool
}

// streamSender is the callback surface a stream uses to talk back to its
// connection: queueing non-STREAM frames, registering itself with the
// framer once it has data to send, and waking the send loop.
type streamSender interface {
	queueControlFrame(wire.Frame)
	onHasStreamData(protocol.StreamID)
	scheduleSending()
}

// streamControlItem is the subset of behavior the generic stream maps need
// from a stream, regardless of direction.
type streamControlItem interface {
	closeForShutdown(error)
}

var errTooManyOpenStreams = errors.New("too many open streams")

// streamOpenErr is returned from OpenStream when the peer's advertised
// stream limit has been reached or OpenStreamSync callers are already
// waiting; it unwraps to errTooManyOpenStreams.
type streamOpenErr struct{ error }

func (streamOpenErr) Unwrap() error { return errTooManyOpenStreams }

// streamError reports a problem with one or more stream numbers. message
// is a printf-style template with a single verb for the stream number.
type streamError struct {
	message string
	nums    []protocol.StreamNum
}

func (e *streamError) Error() string {
	strs := make([]string, len(e.nums))
	for i, n := range e.nums {
		strs[i] = fmt.Sprintf(e.message, n)
	}
	return strings.Join(strs, ", ")
}

// streamCanceledError is handed to a blocked Write/Read call when the peer
// reset or stopped the stream while it was pending.
type streamCanceledError struct {
	errorCode uint64
	error
}

func (e streamCanceledError) Unwrap() error { return e.error }

// deadlineError is returned by a stream's Read/Write once its deadline has
// passed, satisfying net.Error the way net.Conn timeouts do.
type deadlineError struct{}

func (deadlineError) Error() string   { return "deadline exceeded" }
func (deadlineError) Timeout() bool   { return true }
func (deadlineError) Temporary() bool { return true }

var errDeadline error = &deadlineError{}
