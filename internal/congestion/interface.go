// Package congestion implements the pacer and the BBRv2 congestion
// controller that gate how much and how fast a connection may send.
package congestion

import (
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
)

// SendAlgorithm is the fixed capability set every congestion controller
// exposes. quicframe runs exactly one implementation, BBRv2, but keeps the
// connection's call sites behind this interface rather than a concrete
// type so a fixed-capability alternative (e.g. for tests) can substitute
// without touching the send path.
type SendAlgorithm interface {
	OnPacketSent(sentTime time.Time, bytesInFlight protocol.ByteCount, size protocol.ByteCount, isAppLimited bool)
	OnPacketAckOrLoss(acked *AckedPacketInfo, loss *LossEvent)
	GetWritableBytes(bytesInFlight protocol.ByteCount) protocol.ByteCount
	GetCongestionWindow() protocol.ByteCount
	SetAppLimited()
	GetBandwidth() Bandwidth
}

// AckedPacketInfo is the subset of an acknowledged outstanding packet's
// bookkeeping the congestion controller needs to take a bandwidth sample.
// ackhandler constructs one of these per newly-acked packet from its own
// richer packet record.
type AckedPacketInfo struct {
	SentTime             time.Time
	Size                 protocol.ByteCount
	IsAppLimited         bool
	TotalBytesSentAtSend protocol.ByteCount
	TotalBytesAckedAtAck protocol.ByteCount
	// LastAckedPacketSentTime and LastAckedPacketAckTime are the send/ack
	// timestamps of the previous packet acked before this one, used to
	// compute the send- and ack-elapsed intervals for the bandwidth sample.
	LastAckedPacketSentTime time.Time
	LastAckedPacketAckTime  time.Time
	LastTotalBytesAcked     protocol.ByteCount
	InflightAtSend          protocol.ByteCount
}

// AckEvent summarizes one ACK frame's worth of newly and previously acked
// packets, passed to OnPacketAckOrLoss alongside an optional LossEvent.
type AckEvent struct {
	AckTime              time.Time
	AdjustedAckTime      time.Time
	AckedBytes           protocol.ByteCount
	TotalBytesAcked      protocol.ByteCount
	Implicit             bool
	LargestNewlyAcked    *AckedPacketInfo
	NewlyAckedPackets    []AckedPacketInfo
	LargestAckedSentTime time.Time
}

// LostPacketInfo is one packet the loss detector just declared lost.
type LostPacketInfo struct {
	Size protocol.ByteCount
}

// LossEvent is the set of packets the ack/loss detector declared lost in
// response to the same incoming ACK frame that produced an AckEvent.
type LossEvent struct {
	LostBytes            protocol.ByteCount
	LostPackets          []LostPacketInfo
	PersistentCongestion bool
}
