package quic

import (
	"sync"

	"github.com/quicframe/quicframe/internal/flowcontrol"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// windowUpdateQueue batches MAX_DATA/MAX_STREAM_DATA frames: a stream that
// wants to advertise a new window registers itself once via AddStream, and
// QueueAll collects every pending update right before a packet is built.
type windowUpdateQueue struct {
	mutex sync.Mutex

	queue map[protocol.StreamID]receiveStreamI

	connFlowController flowcontrol.ConnectionFlowController
	callback            func(wire.Frame)

	// allowWindowIncrease gates connection-level autotuning against the
	// user-supplied Config.AllowConnectionWindowIncrease hook. Nil means
	// always allow, matching the zero value of Config's callback field.
	allowWindowIncrease func(protocol.ByteCount) bool
}

func newWindowUpdateQueue(connFC flowcontrol.ConnectionFlowController, allowWindowIncrease func(protocol.ByteCount) bool, cb func(wire.Frame)) *windowUpdateQueue {
	return &windowUpdateQueue{
		queue:               make(map[protocol.StreamID]receiveStreamI),
		connFlowController:  connFC,
		allowWindowIncrease:  allowWindowIncrease,
		callback:             cb,
	}
}

func (q *windowUpdateQueue) AddStream(id protocol.StreamID, str receiveStreamI) {
	q.mutex.Lock()
	q.queue[id] = str
	q.mutex.Unlock()
}

func (q *windowUpdateQueue) RemoveStream(id protocol.StreamID) {
	q.mutex.Lock()
	delete(q.queue, id)
	q.mutex.Unlock()
}

// QueueAll hands every pending window update to the callback (the
// connection's control-frame queue), clearing the stream registration list.
func (q *windowUpdateQueue) QueueAll() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if offset := q.connFlowController.GetWindowUpdate(); offset > 0 {
		if q.allowWindowIncrease == nil || q.allowWindowIncrease(offset) {
			q.callback(&wire.MaxDataFrame{MaximumData: offset})
		}
	}
	for id, str := range q.queue {
		delete(q.queue, id)
		offset := str.getWindowUpdate()
		if offset == 0 {
			continue
		}
		q.callback(&wire.MaxStreamDataFrame{
			StreamID:          id,
			MaximumStreamData: offset,
		})
	}
}
