package quic

import (
	"fmt"
	"sync"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// incomingItemsMap tracks peer-initiated streams of one type: streams the
// peer has opened but we haven't accepted yet, and the MAX_STREAMS limit we
// advertise back. Opening stream num N implicitly opens every lower-numbered
// stream of the same type that doesn't exist yet (RFC 9000 Section 2.1).
type incomingItemsMap[T streamControlItem] struct {
	mutex   sync.Mutex
	newItem chan struct{} // receives when the first stream becomes acceptable

	streamType protocol.StreamType

	streams map[protocol.StreamNum]T

	nextStreamToAccept protocol.StreamNum // the lowest stream number not yet returned by AcceptStream
	nextStreamToOpen   protocol.StreamNum // the highest stream number opened so far, plus one
	maxStream          protocol.StreamNum // the highest stream number the peer may open
	maxNumStreams      protocol.StreamNum // the number of streams we allow concurrently open at once

	queueMaxStreamID func(*wire.MaxStreamsFrame)
	newStream        func(protocol.StreamNum) T

	closeErr error
}

func newIncomingItemsMap[T streamControlItem](
	streamType protocol.StreamType,
	maxNumStreams protocol.StreamNum,
	queueControlFrame func(wire.Frame),
	newStream func(protocol.StreamNum) T,
) *incomingItemsMap[T] {
	return &incomingItemsMap[T]{
		newItem:          make(chan struct{}, 1),
		streamType:       streamType,
		streams:          make(map[protocol.StreamNum]T),
		nextStreamToOpen: 1,
		nextStreamToAccept: 1,
		maxStream:        maxNumStreams,
		maxNumStreams:    maxNumStreams,
		queueMaxStreamID: func(f *wire.MaxStreamsFrame) { queueControlFrame(f) },
		newStream:        newStream,
	}
}

// GetOrOpenStream returns the stream with the given number, opening it (and
// every lower-numbered not-yet-seen stream of this type) if necessary.
// A nil, nil return means the stream used to exist and has since been
// deleted.
func (m *incomingItemsMap[T]) GetOrOpenStream(num protocol.StreamNum) (T, error) {
	m.mutex.Lock()
	if num < m.nextStreamToOpen {
		s, ok := m.streams[num]
		m.mutex.Unlock()
		if !ok {
			var zero T
			return zero, nil // deleted already
		}
		return s, nil
	}

	if num > m.maxStream {
		m.mutex.Unlock()
		var zero T
		return zero, fmt.Errorf("peer tried to open stream %d (current limit: %d)", num, m.maxStream)
	}
	for newNum := m.nextStreamToOpen; newNum <= num; newNum++ {
		m.streams[newNum] = m.newStream(newNum)
		if newNum == m.nextStreamToAccept {
			m.maybeSignalNewStream()
		}
	}
	m.nextStreamToOpen = num + 1
	s := m.streams[num]
	m.mutex.Unlock()
	return s, nil
}

func (m *incomingItemsMap[T]) maybeSignalNewStream() {
	select {
	case m.newItem <- struct{}{}:
	default:
	}
}

func (m *incomingItemsMap[T]) AcceptStream() (T, error) {
	m.mutex.Lock()
	var num protocol.StreamNum
	for {
		if m.closeErr != nil {
			m.mutex.Unlock()
			var zero T
			return zero, m.closeErr
		}
		num = m.nextStreamToAccept
		if _, ok := m.streams[num]; ok {
			break
		}
		m.mutex.Unlock()
		<-m.newItem
		m.mutex.Lock()
	}
	str := m.streams[num]
	m.nextStreamToAccept++
	m.mutex.Unlock()
	return str, nil
}

func (m *incomingItemsMap[T]) DeleteStream(num protocol.StreamNum) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.streams[num]; !ok {
		return &streamError{
			message: "Tried to delete unknown stream %d",
			nums:    []protocol.StreamNum{num},
		}
	}
	delete(m.streams, num)

	numNewStreams := m.maxNumStreams - (m.maxStream - num)
	if numNewStreams <= 0 {
		return nil
	}
	m.maxStream += numNewStreams
	m.queueMaxStreamID(&wire.MaxStreamsFrame{
		Type:       m.streamType,
		MaxStreams: m.maxStream,
	})
	return nil
}

func (m *incomingItemsMap[T]) CloseWithError(err error) {
	m.mutex.Lock()
	m.closeErr = err
	for _, str := range m.streams {
		str.closeForShutdown(err)
	}
	m.mutex.Unlock()
	m.maybeSignalNewStream()
}
