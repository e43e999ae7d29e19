package ackhandler

import (
	"container/list"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// interval is a closed range of received packet numbers, [Start, End].
type interval struct {
	Start, End protocol.PacketNumber
}

// receivedPacketHistory tracks which packet numbers have been received, as a
// list of disjoint, ordered intervals. It never holds more than
// protocol.MaxNumAckRanges ranges; once full, the oldest range is dropped
// rather than letting an adversarial peer grow this without bound.
type receivedPacketHistory struct {
	ranges *list.List

	deletedBelow protocol.PacketNumber
}

func newReceivedPacketHistory() *receivedPacketHistory {
	return &receivedPacketHistory{ranges: list.New(), deletedBelow: protocol.InvalidPacketNumber}
}

// ReceivedPacket records pn as received, returning false if it was already
// known (a duplicate, or below the deleted floor).
func (h *receivedPacketHistory) ReceivedPacket(pn protocol.PacketNumber) bool {
	if pn <= h.deletedBelow {
		return false
	}

	if h.ranges.Len() == 0 {
		h.ranges.PushBack(interval{Start: pn, End: pn})
		return true
	}

	for el := h.ranges.Back(); el != nil; el = el.Prev() {
		r := el.Value.(interval)

		if pn >= r.Start && pn <= r.End {
			return false
		}

		if pn == r.End+1 {
			r.End = pn
			el.Value = r
			h.maybeMergeForward(el)
			return true
		}

		if pn == r.Start-1 {
			r.Start = pn
			el.Value = r
			h.maybeMergeBackward(el)
			return true
		}

		if pn > r.End {
			h.ranges.InsertAfter(interval{Start: pn, End: pn}, el)
			h.maybeTrim()
			return true
		}
	}

	h.ranges.PushFront(interval{Start: pn, End: pn})
	h.maybeTrim()
	return true
}

// maybeMergeForward closes the gap between el and the range that follows it,
// if pn extended el's End right up to that next range's Start.
func (h *receivedPacketHistory) maybeMergeForward(el *list.Element) {
	next := el.Next()
	if next == nil {
		return
	}
	r := el.Value.(interval)
	nr := next.Value.(interval)
	if r.End+1 >= nr.Start {
		r.End = nr.End
		el.Value = r
		h.ranges.Remove(next)
	}
}

func (h *receivedPacketHistory) maybeMergeBackward(el *list.Element) {
	prev := el.Prev()
	if prev == nil {
		return
	}
	r := el.Value.(interval)
	pr := prev.Value.(interval)
	if pr.End+1 >= r.Start {
		r.Start = pr.Start
		el.Value = r
		h.ranges.Remove(prev)
	}
}

func (h *receivedPacketHistory) maybeTrim() {
	for h.ranges.Len() > protocol.MaxNumAckRanges {
		front := h.ranges.Front()
		r := front.Value.(interval)
		if r.End > h.deletedBelow {
			h.deletedBelow = r.End
		}
		h.ranges.Remove(front)
	}
}

// DeleteBelow drops every packet number smaller than pn, shrinking or
// removing ranges as needed.
func (h *receivedPacketHistory) DeleteBelow(pn protocol.PacketNumber) {
	if pn > h.deletedBelow {
		h.deletedBelow = pn - 1
	}
	var next *list.Element
	for el := h.ranges.Front(); el != nil; el = next {
		next = el.Next()
		r := el.Value.(interval)
		if r.End < pn {
			h.ranges.Remove(el)
			continue
		}
		if r.Start < pn {
			r.Start = pn
			el.Value = r
		}
		break
	}
}

// IsPotentiallyDuplicate reports whether pn has already been received, or
// might have been before its range was deleted.
func (h *receivedPacketHistory) IsPotentiallyDuplicate(pn protocol.PacketNumber) bool {
	if pn <= h.deletedBelow {
		return true
	}
	for el := h.ranges.Back(); el != nil; el = el.Prev() {
		r := el.Value.(interval)
		if pn >= r.Start && pn <= r.End {
			return true
		}
		if pn > r.End {
			return false
		}
	}
	return false
}

// AppendAckRanges appends every tracked range, newest (highest) first, to
// ackRanges and returns the result.
func (h *receivedPacketHistory) AppendAckRanges(ackRanges []wire.AckRange) []wire.AckRange {
	for el := h.ranges.Back(); el != nil; el = el.Prev() {
		r := el.Value.(interval)
		ackRanges = append(ackRanges, wire.AckRange{Smallest: r.Start, Largest: r.End})
	}
	return ackRanges
}

// GetHighestAckRange returns the newest tracked range, or the zero value if
// none exist yet.
func (h *receivedPacketHistory) GetHighestAckRange() wire.AckRange {
	if h.ranges.Len() == 0 {
		return wire.AckRange{}
	}
	r := h.ranges.Back().Value.(interval)
	return wire.AckRange{Smallest: r.Start, Largest: r.End}
}
