package quic

import (
	"fmt"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// connIDManagerEntry is one connection ID the peer has advertised via
// NEW_CONNECTION_ID but that isn't active yet.
type connIDManagerEntry struct {
	sequenceNumber      uint64
	connectionID        protocol.ConnectionID
	statelessResetToken [16]byte
}

// connIDManager tracks the connection IDs the peer has offered (via
// NEW_CONNECTION_ID frames) for us to address packets to, retiring old
// ones as RetirePriorTo advances. The queue is a plain slice, kept sorted
// by sequence number: bounded by MaxActiveConnectionIDs, it never grows
// large enough to need anything fancier.
type connIDManager struct {
	queue []connIDManagerEntry

	activeSequenceNumber      uint64
	activeConnectionID        protocol.ConnectionID
	activeStatelessResetToken *[16]byte

	addStatelessResetToken func([16]byte)
	queueControlFrame      func(wire.Frame)
}

func newConnIDManager(
	initialDestConnID protocol.ConnectionID,
	addStatelessResetToken func([16]byte),
	queueControlFrame func(wire.Frame),
) *connIDManager {
	return &connIDManager{
		activeConnectionID:     initialDestConnID,
		addStatelessResetToken: addStatelessResetToken,
		queueControlFrame:      queueControlFrame,
	}
}

func (h *connIDManager) Add(f *wire.NewConnectionIDFrame) error {
	if err := h.add(f); err != nil {
		return err
	}
	if len(h.queue) >= protocol.MaxActiveConnectionIDs {
		h.updateConnectionID()
	}
	return nil
}

func (h *connIDManager) add(f *wire.NewConnectionIDFrame) error {
	// Retire queued entries below RetirePriorTo; the active ID is retired
	// separately below, never from this loop.
	i := 0
	for i < len(h.queue) && h.queue[i].sequenceNumber < f.RetirePriorTo {
		h.queueControlFrame(&wire.RetireConnectionIDFrame{SequenceNumber: h.queue[i].sequenceNumber})
		i++
	}
	h.queue = h.queue[i:]

	entry := connIDManagerEntry{
		sequenceNumber:      f.SequenceNumber,
		connectionID:        f.ConnectionID,
		statelessResetToken: f.StatelessResetToken,
	}
	pos, found := h.find(f.SequenceNumber)
	if found {
		existing := h.queue[pos]
		if !existing.connectionID.Equal(f.ConnectionID) {
			return fmt.Errorf("received conflicting connection IDs for sequence number %d", f.SequenceNumber)
		}
		if existing.statelessResetToken != f.StatelessResetToken {
			return fmt.Errorf("received conflicting stateless reset tokens for sequence number %d", f.SequenceNumber)
		}
	} else {
		h.queue = append(h.queue, connIDManagerEntry{})
		copy(h.queue[pos+1:], h.queue[pos:])
		h.queue[pos] = entry
	}

	if h.activeSequenceNumber < f.RetirePriorTo {
		h.updateConnectionID()
	}
	return nil
}

// find returns the index of sequenceNumber in the sorted queue, or the
// index it should be inserted at if not present.
func (h *connIDManager) find(sequenceNumber uint64) (int, bool) {
	for i, e := range h.queue {
		if e.sequenceNumber == sequenceNumber {
			return i, true
		}
		if e.sequenceNumber > sequenceNumber {
			return i, false
		}
	}
	return len(h.queue), false
}

func (h *connIDManager) updateConnectionID() {
	h.queueControlFrame(&wire.RetireConnectionIDFrame{SequenceNumber: h.activeSequenceNumber})
	if len(h.queue) == 0 {
		return
	}
	front := h.queue[0]
	h.queue = h.queue[1:]
	h.activeSequenceNumber = front.sequenceNumber
	h.activeConnectionID = front.connectionID
	token := front.statelessResetToken
	h.activeStatelessResetToken = &token
	h.addStatelessResetToken(token)
}

// ChangeInitialConnID is called when the server performs a Retry, or
// switches connection ID in its first Initial response.
func (h *connIDManager) ChangeInitialConnID(newConnID protocol.ConnectionID) {
	if h.activeSequenceNumber != 0 {
		panic("expected first connection ID to have sequence number 0")
	}
	h.activeConnectionID = newConnID
}

// SetStatelessResetToken records the token the peer supplied in its
// transport parameters for the connection ID we started with.
func (h *connIDManager) SetStatelessResetToken(token [16]byte) {
	if h.activeSequenceNumber != 0 {
		panic("expected first connection ID to have sequence number 0")
	}
	h.activeStatelessResetToken = &token
	h.addStatelessResetToken(token)
}

func (h *connIDManager) Get() protocol.ConnectionID {
	return h.activeConnectionID
}
