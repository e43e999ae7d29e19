package ackhandler

import (
	"fmt"

	"github.com/quicframe/quicframe/internal/protocol"
)

// sentPacketHistory holds every outstanding packet in one packet number
// space, indexed by offset from firstPN. A nil entry is a skipped packet
// number: reserved by packetNumberGenerator but never sent, or a packet
// that carried no ack-eliciting frames, kept here only so Iterate and
// getIndex see a contiguous range.
type sentPacketHistory struct {
	packets        []*Packet
	firstPN        protocol.PacketNumber
	numOutstanding int
}

func newSentPacketHistory() *sentPacketHistory {
	return &sentPacketHistory{
		packets: make([]*Packet, 0, 32),
		firstPN: protocol.InvalidPacketNumber,
	}
}

func (h *sentPacketHistory) getIndex(pn protocol.PacketNumber) (int, bool) {
	if len(h.packets) == 0 {
		return 0, false
	}
	index := int(pn - h.firstPN)
	if index < 0 || index >= len(h.packets) {
		return 0, false
	}
	return index, true
}

func (h *sentPacketHistory) append(pn protocol.PacketNumber, p *Packet) {
	if len(h.packets) == 0 {
		h.firstPN = pn
	} else {
		h.fillGapBefore(pn)
	}
	h.packets = append(h.packets, p)
}

// fillGapBefore pads the slice with nil placeholders so pn lands at the
// next index, even if packet numbers were skipped without a call recording
// them (e.g. a dropped packet number space).
func (h *sentPacketHistory) fillGapBefore(pn protocol.PacketNumber) {
	next := h.firstPN + protocol.PacketNumber(len(h.packets))
	for next < pn {
		h.packets = append(h.packets, nil)
		next++
	}
}

// SentAckElicitingPacket records a newly sent, ack-eliciting packet as
// outstanding.
func (h *sentPacketHistory) SentAckElicitingPacket(p *Packet) {
	p.includedInBytesInFlight = true
	h.append(p.PacketNumber, p)
	h.numOutstanding++
}

// SentNonAckElicitingPacket records a sent packet that carries no
// ack-eliciting frames (e.g. a pure ACK). It's never outstanding, but the
// packet number still needs a placeholder so getIndex stays contiguous.
func (h *sentPacketHistory) SentNonAckElicitingPacket(pn protocol.PacketNumber) {
	h.append(pn, nil)
}

// skippedPacket records a packet number the generator skipped over: never
// sent, reserved only to make optimistic acks detectable.
func (h *sentPacketHistory) skippedPacket(pn protocol.PacketNumber) {
	h.append(pn, nil)
}

// FirstOutstanding returns the oldest outstanding packet, or nil if none.
func (h *sentPacketHistory) FirstOutstanding() *Packet {
	for _, p := range h.packets {
		if p.outstanding() {
			return p
		}
	}
	return nil
}

// Len returns the number of entries, including skipped placeholders and
// already-acked-or-lost packets not yet cleaned up.
func (h *sentPacketHistory) Len() int { return len(h.packets) }

// HasOutstandingPackets reports whether any packet still counts as
// in-flight.
func (h *sentPacketHistory) HasOutstandingPackets() bool { return h.numOutstanding > 0 }

// Iterate calls cb for every packet in ascending packet number order,
// including skipped placeholders (as a nil *Packet), until cb returns
// false or an error.
func (h *sentPacketHistory) Iterate(cb func(*Packet) (cont bool, err error)) error {
	for _, p := range h.packets {
		cont, err := cb(p)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// Remove deletes the packet with the given number, e.g. once it's acked.
func (h *sentPacketHistory) Remove(pn protocol.PacketNumber) error {
	idx, ok := h.getIndex(pn)
	if !ok {
		return fmt.Errorf("ackhandler: packet %d not found in sent packet history", pn)
	}
	if p := h.packets[idx]; p.outstanding() {
		h.numOutstanding--
	}
	h.packets[idx] = nil
	h.cleanupStart()
	return nil
}

// DeclareLost marks the packet with the given number as no longer
// outstanding (it stays in the history; callers may still want its frames
// for retransmission) and returns it.
func (h *sentPacketHistory) DeclareLost(pn protocol.PacketNumber) *Packet {
	idx, ok := h.getIndex(pn)
	if !ok {
		return nil
	}
	p := h.packets[idx]
	if p.outstanding() {
		p.includedInBytesInFlight = false
		h.numOutstanding--
	}
	return p
}

// cleanupStart drops nil entries (removed or skipped) from the front of the
// slice so it doesn't grow without bound.
func (h *sentPacketHistory) cleanupStart() {
	i := 0
	for i < len(h.packets) && h.packets[i] == nil {
		i++
	}
	if i > 0 {
		h.packets = h.packets[i:]
		h.firstPN += protocol.PacketNumber(i)
	}
}

// LowestPacketNumber returns the packet number of the oldest entry still
// held, or InvalidPacketNumber if the history is empty.
func (h *sentPacketHistory) LowestPacketNumber() protocol.PacketNumber {
	if len(h.packets) == 0 {
		return protocol.InvalidPacketNumber
	}
	return h.firstPN
}
