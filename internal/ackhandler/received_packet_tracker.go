package ackhandler

import (
	"log/slog"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/utils"
	"github.com/quicframe/quicframe/internal/wire"
)

// receivedPacketTracker is a ReceivedPacketHandler for a single packet
// number space: it records which packet numbers have arrived and decides
// when an ACK is owed.
type receivedPacketTracker struct {
	largestObserved             protocol.PacketNumber
	largestObservedReceivedTime time.Time

	ignoreBelow protocol.PacketNumber

	packetHistory *receivedPacketHistory

	ackElicitingPacketsReceivedSinceLastAck int
	ackAlarm                                time.Time
	ackQueued                               bool
	lastAck                                 *wire.AckFrame

	ect0, ect1, ecnce uint64

	rttStats *utils.RTTStats
	logger   *slog.Logger
	version  protocol.Version
}

func newReceivedPacketTracker(rttStats *utils.RTTStats, logger *slog.Logger, version protocol.Version) *receivedPacketTracker {
	return &receivedPacketTracker{
		packetHistory: newReceivedPacketHistory(),
		rttStats:      rttStats,
		logger:        logger,
		version:       version,
	}
}

// ReceivedPacket records pn as received. isAckEliciting must reflect
// whether the packet itself carried anything other than an ACK frame.
func (t *receivedPacketTracker) ReceivedPacket(pn protocol.PacketNumber, ecn protocol.ECN, rcvTime time.Time, isAckEliciting bool) error {
	if pn >= t.largestObserved {
		t.largestObserved = pn
		t.largestObservedReceivedTime = rcvTime
	}

	if pn < t.ignoreBelow {
		return nil
	}

	isMissing := t.isMissing(pn)
	if !t.packetHistory.ReceivedPacket(pn) {
		return nil
	}
	t.countECN(ecn)

	if !isAckEliciting {
		return nil
	}
	t.ackElicitingPacketsReceivedSinceLastAck++

	if t.logger != nil {
		t.logger.Debug("received ack-eliciting packet", "packet_number", pn, "smoothed_rtt", t.rttStats.SmoothedRTT())
	}

	switch {
	case t.lastAck == nil:
		// The very first ack-eliciting packet is always acked right away,
		// so the peer gets an RTT sample as early as possible.
		t.ackQueued = true
	case isMissing:
		t.ackQueued = true
	case t.ackElicitingPacketsReceivedSinceLastAck >= int(protocol.DefaultAckFrequencyPolicy.AckElicitingThreshold):
		t.ackQueued = true
	}

	if t.ackQueued {
		t.ackAlarm = time.Time{}
	} else if t.ackAlarm.IsZero() {
		t.ackAlarm = rcvTime.Add(protocol.MaxAckDelay)
	}
	return nil
}

// isMissing reports whether pn arrives behind the current receive
// frontier, i.e. it fills a gap rather than extending the newest range —
// worth telling the peer about right away instead of waiting for the next
// scheduled ACK.
func (t *receivedPacketTracker) isMissing(pn protocol.PacketNumber) bool {
	expected := t.ignoreBelow
	if e := t.packetHistory.GetHighestAckRange().Largest + 1; e > expected {
		expected = e
	}
	return pn < expected
}

func (t *receivedPacketTracker) countECN(ecn protocol.ECN) {
	switch ecn {
	case protocol.ECT0:
		t.ect0++
	case protocol.ECT1:
		t.ect1++
	case protocol.ECNCE:
		t.ecnce++
	}
}

// IsPotentiallyDuplicate reports whether pn might already have arrived.
func (t *receivedPacketTracker) IsPotentiallyDuplicate(pn protocol.PacketNumber) bool {
	if pn < t.ignoreBelow {
		return true
	}
	return t.packetHistory.IsPotentiallyDuplicate(pn)
}

// IgnoreBelow raises the floor below which packet numbers are no longer
// individually tracked, e.g. once 0-RTT keys are dropped after the
// handshake completes and 0-RTT packets can no longer arrive.
func (t *receivedPacketTracker) IgnoreBelow(pn protocol.PacketNumber) {
	if pn <= t.ignoreBelow {
		return
	}
	t.ignoreBelow = pn
	t.packetHistory.DeleteBelow(pn)
}

func (t *receivedPacketTracker) DropPackets() {
	t.packetHistory = newReceivedPacketHistory()
}

// GetAlarmTimeout returns when a delayed ACK must be sent by, or the zero
// value if no ACK is currently owed on a timer.
func (t *receivedPacketTracker) GetAlarmTimeout() time.Time {
	return t.ackAlarm
}

// GetAckFrame builds the ACK to send now. If onlyIfQueued is true, it
// returns nil unless an ACK has actually been decided (queued, or the
// delayed-ack timer expired); otherwise it also opportunistically returns
// an ACK covering anything ack-eliciting received since the last one, for
// piggy-backing onto a packet that's being sent anyway.
func (t *receivedPacketTracker) GetAckFrame(onlyIfQueued bool) *wire.AckFrame {
	alarmExpired := !t.ackAlarm.IsZero() && !t.ackAlarm.After(time.Now())
	if onlyIfQueued {
		if !t.ackQueued && !alarmExpired {
			return nil
		}
	} else if !t.ackQueued && !alarmExpired && t.ackElicitingPacketsReceivedSinceLastAck == 0 {
		return nil
	}

	ack := &wire.AckFrame{
		AckRanges: t.packetHistory.AppendAckRanges(nil),
		DelayTime: maxDuration0(time.Since(t.largestObservedReceivedTime)),
	}
	if t.ect0 > 0 || t.ect1 > 0 || t.ecnce > 0 {
		ack.ECNPresent = true
		ack.ECT0, ack.ECT1, ack.ECNCE = t.ect0, t.ect1, t.ecnce
	}

	t.lastAck = ack
	t.ackQueued = false
	t.ackAlarm = time.Time{}
	t.ackElicitingPacketsReceivedSinceLastAck = 0
	return ack
}

func maxDuration0(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
