package ackhandler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/quicframe/quicframe/internal/congestion"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/qerr"
	"github.com/quicframe/quicframe/internal/utils"
	"github.com/quicframe/quicframe/internal/wire"
)

const (
	// timeThreshold is the reordering window, as a multiple of the RTT,
	// before time-based loss detection considers a packet lost.
	timeThreshold = 9.0 / 8
	// packetThreshold is the reordering window, in packets, before
	// packet-threshold loss detection considers a packet lost.
	packetThreshold = 3
	// amplificationFactor bounds how many more bytes an endpoint may send
	// than it has received from an unvalidated peer address.
	amplificationFactor = 3
)

type packetNumberSpace struct {
	history *sentPacketHistory
	pns     *packetNumberGenerator

	lossTime                   time.Time
	lastAckElicitingPacketTime time.Time

	largestAcked protocol.PacketNumber
	largestSent  protocol.PacketNumber
}

func newPacketNumberSpace(initialPN protocol.PacketNumber) *packetNumberSpace {
	return &packetNumberSpace{
		history:      newSentPacketHistory(),
		pns:          newPacketNumberGenerator(initialPN, protocol.SkipPacketAveragePeriod),
		largestSent:  protocol.InvalidPacketNumber,
		largestAcked: protocol.InvalidPacketNumber,
	}
}

// sentPacketHandler is the core of loss recovery (RFC 9002): it tracks
// every outstanding packet across the three packet number spaces, arms the
// loss-detection/PTO timer, and feeds every ack or loss into the
// congestion controller.
type sentPacketHandler struct {
	initialPackets   *packetNumberSpace
	handshakePackets *packetNumberSpace
	appDataPackets   *packetNumberSpace

	peerCompletedAddressValidation bool
	peerAddressValidated           bool
	handshakeConfirmed              bool

	bytesReceived protocol.ByteCount
	bytesSent     protocol.ByteCount
	bytesInFlight protocol.ByteCount

	// lowestNotConfirmedAcked is the lowest packet number we've sent an
	// ACK for but haven't had that ACK itself confirmed as received.
	// Only meaningful in the 1-RTT space.
	lowestNotConfirmedAcked protocol.PacketNumber

	totalBytesAcked protocol.ByteCount

	congestion      congestion.SendAlgorithm
	pacer           *congestion.Pacer
	rttStats        *utils.RTTStats
	maxDatagramSize protocol.ByteCount

	ptoCount        uint32
	ptoMode         SendMode
	numProbesToSend int

	alarm time.Time

	perspective protocol.Perspective

	logger *slog.Logger
}

var _ SentPacketHandler = &sentPacketHandler{}

// NewSentPacketHandler builds the loss-recovery state for one connection.
func NewSentPacketHandler(
	initialPacketNumber protocol.PacketNumber,
	maxDatagramSize protocol.ByteCount,
	rttStats *utils.RTTStats,
	sendAlgorithm congestion.SendAlgorithm,
	pacer *congestion.Pacer,
	pers protocol.Perspective,
	logger *slog.Logger,
) *sentPacketHandler {
	return &sentPacketHandler{
		peerCompletedAddressValidation: pers == protocol.PerspectiveServer,
		peerAddressValidated:           pers == protocol.PerspectiveClient,
		initialPackets:                 newPacketNumberSpace(initialPacketNumber),
		handshakePackets:               newPacketNumberSpace(0),
		appDataPackets:                 newPacketNumberSpace(0),
		lowestNotConfirmedAcked:        0,
		rttStats:                       rttStats,
		congestion:                     sendAlgorithm,
		pacer:                          pacer,
		maxDatagramSize:                maxDatagramSize,
		perspective:                    pers,
		logger:                         logger,
	}
}

func (h *sentPacketHandler) getPacketNumberSpace(level protocol.EncryptionLevel) *packetNumberSpace {
	switch level {
	case protocol.EncryptionInitial:
		return h.initialPackets
	case protocol.EncryptionHandshake:
		return h.handshakePackets
	case protocol.Encryption0RTT, protocol.Encryption1RTT:
		return h.appDataPackets
	default:
		panic("ackhandler: invalid packet number space")
	}
}

func (h *sentPacketHandler) DropPackets(level protocol.EncryptionLevel) {
	if h.perspective == protocol.PerspectiveClient && level == protocol.EncryptionInitial {
		// A coalesced Handshake packet can seal before SentPacket() was
		// called for the Initial packet it rides behind; dropping now
		// would discard that Initial packet's bookkeeping.
		return
	}
	h.dropPackets(level)
}

func (h *sentPacketHandler) dropPackets(level protocol.EncryptionLevel) {
	if h.perspective == protocol.PerspectiveClient && level == protocol.EncryptionHandshake {
		h.peerCompletedAddressValidation = true
	}
	if level == protocol.EncryptionInitial || level == protocol.EncryptionHandshake {
		pnSpace := h.getPacketNumberSpace(level)
		pnSpace.history.Iterate(func(p *Packet) (bool, error) {
			if p.outstanding() {
				h.bytesInFlight -= p.Length
			}
			return true, nil
		})
	}
	switch level {
	case protocol.EncryptionInitial:
		h.initialPackets = nil
	case protocol.EncryptionHandshake:
		h.handshakePackets = nil
	case protocol.Encryption0RTT:
		h.appDataPackets.history.Iterate(func(p *Packet) (bool, error) {
			if p == nil {
				return true, nil
			}
			if p.EncryptionLevel != protocol.Encryption0RTT {
				return false, nil
			}
			h.queueFramesForRetransmission(p)
			if p.outstanding() {
				h.bytesInFlight -= p.Length
			}
			h.appDataPackets.history.Remove(p.PacketNumber)
			return true, nil
		})
	default:
		panic(fmt.Sprintf("ackhandler: cannot drop keys for encryption level %s", level))
	}
	h.ptoCount = 0
	h.numProbesToSend = 0
	h.ptoMode = SendNone
	h.setLossDetectionTimer()
}

func (h *sentPacketHandler) ReceivedBytes(n protocol.ByteCount) {
	h.bytesReceived += n
}

func (h *sentPacketHandler) packetsInFlight() int {
	n := h.appDataPackets.history.Len()
	if h.handshakePackets != nil {
		n += h.handshakePackets.history.Len()
	}
	if h.initialPackets != nil {
		n += h.initialPackets.history.Len()
	}
	return n
}

// SentPacket registers a newly sent packet as outstanding.
func (h *sentPacketHandler) SentPacket(now time.Time, pn, largestAcked protocol.PacketNumber, streamFrames, otherFrames []Frame, level protocol.EncryptionLevel, size protocol.ByteCount, isPathMTUProbePacket, isPathProbePacket bool) {
	h.bytesSent += size
	if h.perspective == protocol.PerspectiveClient && level == protocol.EncryptionHandshake && h.initialPackets != nil {
		h.dropPackets(protocol.EncryptionInitial)
	}

	p := &Packet{
		PacketNumber:          pn,
		LargestAcked:          largestAcked,
		Frames:                otherFrames,
		StreamFrames:          streamFrames,
		Length:                size,
		EncryptionLevel:       level,
		SendTime:              now,
		IsPathMTUProbePacket:  isPathMTUProbePacket,
		IsPathProbePacket:     isPathProbePacket,
		inflightAtSend:        h.bytesInFlight,
		totalBytesSentAtSend:  h.bytesSent,
	}
	isAckEliciting := h.sentPacketImpl(p)
	pnSpace := h.getPacketNumberSpace(level)
	if isAckEliciting {
		pnSpace.history.SentAckElicitingPacket(p)
	} else {
		pnSpace.history.SentNonAckElicitingPacket(pn)
	}
	pnSpace.largestSent = pn
	if isAckEliciting || !h.peerCompletedAddressValidation {
		h.setLossDetectionTimer()
	}
}

func (h *sentPacketHandler) sentPacketImpl(p *Packet) (isAckEliciting bool) {
	isAckEliciting = p.isAckEliciting()
	pnSpace := h.getPacketNumberSpace(p.EncryptionLevel)
	if isAckEliciting {
		pnSpace.lastAckElicitingPacketTime = p.SendTime
		p.includedInBytesInFlight = true
		h.bytesInFlight += p.Length
		if h.numProbesToSend > 0 {
			h.numProbesToSend--
		}
	}
	p.isAppLimitedWhenSent = h.congestion.GetWritableBytes(h.bytesInFlight) <= 0
	h.congestion.OnPacketSent(p.SendTime, h.bytesInFlight, p.Length, p.isAppLimitedWhenSent)
	h.pacer.OnPacketSent(p.SendTime, p.Length)
	return isAckEliciting
}

// ReceivedAck processes one incoming ACK frame.
func (h *sentPacketHandler) ReceivedAck(ack *wire.AckFrame, level protocol.EncryptionLevel, rcvTime time.Time) (bool, error) {
	pnSpace := h.getPacketNumberSpace(level)

	largestAcked := ack.LargestAcked()
	if largestAcked > pnSpace.largestSent {
		return false, qerr.NewLocalTransportError(qerr.ProtocolViolation, "received ACK for an unsent packet")
	}
	pnSpace.largestAcked = max(pnSpace.largestAcked, largestAcked)

	// Sample the RTT from the largest newly-acked packet, if it's still
	// in the history.
	if idx, ok := pnSpace.history.getIndex(largestAcked); ok {
		if p := pnSpace.history.packets[idx]; p != nil {
			var ackDelay time.Duration
			if level == protocol.Encryption1RTT {
				ackDelay = min(ack.DelayTime, h.rttStats.MaxAckDelay())
			}
			h.rttStats.UpdateRTT(rcvTime.Sub(p.SendTime), ackDelay, rcvTime)
			if s, ok := h.congestion.(interface{ OnRTTSample(time.Duration) }); ok {
				s.OnRTTSample(h.rttStats.LatestRTT())
			}
			if h.logger != nil {
				h.logger.Debug("updated RTT", "smoothed", h.rttStats.SmoothedRTT(), "meanDeviation", h.rttStats.MeanDeviation())
			}
		}
	}

	if h.perspective == protocol.PerspectiveClient && !h.peerCompletedAddressValidation &&
		(level == protocol.EncryptionHandshake || level == protocol.Encryption1RTT) {
		h.peerCompletedAddressValidation = true
		h.setLossDetectionTimer()
	}

	acked, err := h.detectAndRemoveAckedPackets(ack, level)
	if err != nil {
		return false, err
	}
	if len(acked) == 0 {
		return false, nil
	}
	lost, lostBytes, err := h.detectAndRemoveLostPackets(rcvTime, level)
	if err != nil {
		return false, err
	}

	h.feedCongestionController(acked, lost, lostBytes, rcvTime)

	if h.peerCompletedAddressValidation {
		h.ptoCount = 0
	}
	h.numProbesToSend = 0

	h.setLossDetectionTimer()
	acked1RTT := level == protocol.Encryption1RTT && len(acked) > 0
	return acked1RTT, nil
}

// feedCongestionController turns the raw acked/lost packet lists from one
// ACK-processing pass into the aggregate shapes congestion.SendAlgorithm
// expects, and calls it once per newly acked packet (chaining the previous
// packet's send/ack time so the bandwidth sampler can compute its interval),
// attaching the loss event to the first such call so it isn't double-counted.
func (h *sentPacketHandler) feedCongestionController(acked, lost []*Packet, lostBytes protocol.ByteCount, rcvTime time.Time) {
	var loss *congestion.LossEvent
	if len(lost) > 0 {
		infos := make([]congestion.LostPacketInfo, len(lost))
		for i, p := range lost {
			infos[i] = congestion.LostPacketInfo{Size: p.Length}
		}
		loss = &congestion.LossEvent{LostBytes: lostBytes, LostPackets: infos}
	}

	if len(acked) == 0 {
		h.congestion.OnPacketAckOrLoss(nil, loss)
		return
	}

	var lastSentTime, lastAckTime time.Time
	var lastTotalAcked protocol.ByteCount
	for i, p := range acked {
		h.totalBytesAcked += p.Length
		info := &congestion.AckedPacketInfo{
			SentTime:                p.SendTime,
			Size:                    p.Length,
			IsAppLimited:            p.isAppLimitedWhenSent,
			TotalBytesSentAtSend:    p.totalBytesSentAtSend,
			TotalBytesAckedAtAck:    h.totalBytesAcked,
			LastAckedPacketSentTime: lastSentTime,
			LastAckedPacketAckTime:  lastAckTime,
			LastTotalBytesAcked:     lastTotalAcked,
			InflightAtSend:          p.inflightAtSend,
		}
		var lossForThisCall *congestion.LossEvent
		if i == 0 {
			lossForThisCall = loss
		}
		h.congestion.OnPacketAckOrLoss(info, lossForThisCall)
		lastSentTime = p.SendTime
		lastAckTime = rcvTime
		lastTotalAcked = h.totalBytesAcked
	}
}

func (h *sentPacketHandler) detectAndRemoveAckedPackets(ack *wire.AckFrame, level protocol.EncryptionLevel) ([]*Packet, error) {
	pnSpace := h.getPacketNumberSpace(level)
	var acked []*Packet
	lowest, largest := ack.LowestAcked(), ack.LargestAcked()

	if err := pnSpace.history.Iterate(func(p *Packet) (bool, error) {
		if p == nil {
			return true, nil
		}
		if p.PacketNumber < lowest {
			return true, nil
		}
		if p.PacketNumber > largest {
			return false, nil
		}
		if ack.AcksPacket(p.PacketNumber) {
			acked = append(acked, p)
		}
		return true, nil
	}); err != nil {
		return nil, err
	}

	for _, p := range acked {
		if p.LargestAcked != protocol.InvalidPacketNumber && level == protocol.Encryption1RTT {
			h.lowestNotConfirmedAcked = max(h.lowestNotConfirmedAcked, p.LargestAcked+1)
		}
		for _, f := range p.Frames {
			f.onAcked()
		}
		for _, f := range p.StreamFrames {
			f.onAcked()
		}
		if p.outstanding() {
			h.bytesInFlight -= p.Length
		}
		if err := pnSpace.history.Remove(p.PacketNumber); err != nil {
			return nil, err
		}
	}
	return acked, nil
}

func (h *sentPacketHandler) getLossTimeAndSpace() (time.Time, protocol.EncryptionLevel) {
	var level protocol.EncryptionLevel
	var lossTime time.Time

	if h.initialPackets != nil {
		lossTime = h.initialPackets.lossTime
		level = protocol.EncryptionInitial
	}
	if h.handshakePackets != nil && (lossTime.IsZero() || (!h.handshakePackets.lossTime.IsZero() && h.handshakePackets.lossTime.Before(lossTime))) {
		lossTime = h.handshakePackets.lossTime
		level = protocol.EncryptionHandshake
	}
	if lossTime.IsZero() || (!h.appDataPackets.lossTime.IsZero() && h.appDataPackets.lossTime.Before(lossTime)) {
		lossTime = h.appDataPackets.lossTime
		level = protocol.Encryption1RTT
	}
	return lossTime, level
}

func (h *sentPacketHandler) getPTOTimeAndSpace(now time.Time) (time.Time, protocol.EncryptionLevel) {
	if !h.hasOutstandingPackets() {
		t := now.Add(h.rttStats.PTO(false) << h.ptoCount)
		if h.initialPackets != nil {
			return t, protocol.EncryptionInitial
		}
		return t, protocol.EncryptionHandshake
	}

	var level protocol.EncryptionLevel
	var pto time.Time

	if h.initialPackets != nil {
		level = protocol.EncryptionInitial
		if t := h.initialPackets.lastAckElicitingPacketTime; !t.IsZero() {
			pto = t.Add(h.rttStats.PTO(false) << h.ptoCount)
		}
	}
	if h.handshakePackets != nil && !h.handshakePackets.lastAckElicitingPacketTime.IsZero() {
		t := h.handshakePackets.lastAckElicitingPacketTime.Add(h.rttStats.PTO(false) << h.ptoCount)
		if pto.IsZero() || t.Before(pto) {
			pto = t
			level = protocol.EncryptionHandshake
		}
	}
	if h.handshakeConfirmed && !h.appDataPackets.lastAckElicitingPacketTime.IsZero() {
		t := h.appDataPackets.lastAckElicitingPacketTime.Add(h.rttStats.PTO(true) << h.ptoCount)
		if pto.IsZero() || t.Before(pto) {
			pto = t
			level = protocol.Encryption1RTT
		}
	}
	return pto, level
}

func (h *sentPacketHandler) hasOutstandingCryptoPackets() bool {
	var hasInitial, hasHandshake bool
	if h.initialPackets != nil {
		hasInitial = h.initialPackets.history.HasOutstandingPackets()
	}
	if h.handshakePackets != nil {
		hasHandshake = h.handshakePackets.history.HasOutstandingPackets()
	}
	return hasInitial || hasHandshake
}

func (h *sentPacketHandler) hasOutstandingPackets() bool {
	return (h.handshakeConfirmed && h.appDataPackets.history.HasOutstandingPackets()) || h.hasOutstandingCryptoPackets()
}

func (h *sentPacketHandler) setLossDetectionTimer() {
	if lossTime, _ := h.getLossTimeAndSpace(); !lossTime.IsZero() {
		h.alarm = lossTime
		return
	}
	if !h.hasOutstandingPackets() && h.peerCompletedAddressValidation {
		h.alarm = time.Time{}
		return
	}
	ptoTime, _ := h.getPTOTimeAndSpace(time.Now())
	h.alarm = ptoTime
}

func (h *sentPacketHandler) detectAndRemoveLostPackets(now time.Time, level protocol.EncryptionLevel) ([]*Packet, protocol.ByteCount, error) {
	pnSpace := h.getPacketNumberSpace(level)
	pnSpace.lossTime = time.Time{}

	maxRTT := max(h.rttStats.LatestRTT(), h.rttStats.SmoothedRTT())
	lossDelay := time.Duration(timeThreshold * float64(maxRTT))
	lossDelay = max(lossDelay, protocol.TimerGranularity)

	lostSendTime := now.Add(-lossDelay)

	var lost []*Packet
	var lostBytes protocol.ByteCount
	if err := pnSpace.history.Iterate(func(p *Packet) (bool, error) {
		if p == nil {
			return true, nil
		}
		if p.PacketNumber > pnSpace.largestAcked {
			return false, nil
		}
		switch {
		case p.SendTime.Before(lostSendTime):
			lost = append(lost, p)
			lostBytes += p.Length
		case pnSpace.largestAcked >= p.PacketNumber+packetThreshold:
			lost = append(lost, p)
			lostBytes += p.Length
		case pnSpace.lossTime.IsZero():
			pnSpace.lossTime = p.SendTime.Add(lossDelay)
		}
		return true, nil
	}); err != nil {
		return nil, 0, err
	}

	for _, p := range lost {
		h.queueFramesForRetransmission(p)
		if p.outstanding() {
			h.bytesInFlight -= p.Length
		}
		if err := pnSpace.history.Remove(p.PacketNumber); err != nil {
			return nil, 0, err
		}
	}
	return lost, lostBytes, nil
}

func (h *sentPacketHandler) OnLossDetectionTimeout(now time.Time) error {
	if h.hasOutstandingPackets() || !h.peerCompletedAddressValidation {
		if err := h.onVerifiedLossDetectionTimeout(now); err != nil {
			return err
		}
	}
	h.setLossDetectionTimer()
	return nil
}

func (h *sentPacketHandler) onVerifiedLossDetectionTimeout(now time.Time) error {
	if earliestLossTime, level := h.getLossTimeAndSpace(); !earliestLossTime.IsZero() {
		lost, lostBytes, err := h.detectAndRemoveLostPackets(now, level)
		if err != nil {
			return err
		}
		if len(lost) > 0 {
			h.feedCongestionController(nil, lost, lostBytes, now)
		}
		return nil
	}

	h.ptoCount++
	var level protocol.EncryptionLevel
	if h.bytesInFlight > 0 {
		_, level = h.getPTOTimeAndSpace(now)
		h.numProbesToSend += 2
		switch level {
		case protocol.EncryptionInitial:
			h.ptoMode = SendPTOInitial
		case protocol.EncryptionHandshake:
			h.ptoMode = SendPTOHandshake
		case protocol.Encryption1RTT:
			h.ptoMode = SendPTOAppData
		default:
			return fmt.Errorf("ackhandler: PTO timer fired in unexpected encryption level %s", level)
		}
		return nil
	}
	if h.perspective == protocol.PerspectiveServer {
		return fmt.Errorf("ackhandler: PTO fired, but bytes in flight is 0")
	}
	h.numProbesToSend++
	switch {
	case h.initialPackets != nil:
		h.ptoMode = SendPTOInitial
	case h.handshakePackets != nil:
		h.ptoMode = SendPTOHandshake
	default:
		return fmt.Errorf("ackhandler: PTO fired, but bytes in flight is 0 and Initial/Handshake already dropped")
	}
	return nil
}

func (h *sentPacketHandler) GetLossDetectionTimeout() time.Time { return h.alarm }

func (h *sentPacketHandler) PeekPacketNumber(level protocol.EncryptionLevel) (protocol.PacketNumber, protocol.PacketNumberLen) {
	pnSpace := h.getPacketNumberSpace(level)
	lowestUnacked := pnSpace.largestAcked + 1
	if p := pnSpace.history.FirstOutstanding(); p != nil {
		lowestUnacked = p.PacketNumber
	}
	pn := pnSpace.pns.Peek()
	return pn, protocol.GetPacketNumberLengthForHeader(pn, lowestUnacked)
}

func (h *sentPacketHandler) PopPacketNumber(level protocol.EncryptionLevel) protocol.PacketNumber {
	return h.getPacketNumberSpace(level).pns.Pop()
}

func (h *sentPacketHandler) SendMode(now time.Time) SendMode {
	numTracked := h.packetsInFlight()
	if h.AmplificationWindow() == 0 {
		return SendNone
	}
	if numTracked >= protocol.MaxTrackedSentPackets {
		return SendNone
	}
	if h.numProbesToSend > 0 {
		return h.ptoMode
	}
	writable := h.congestion.GetWritableBytes(h.bytesInFlight)
	if writable <= 0 {
		return SendAck
	}
	if numTracked >= protocol.MaxOutstandingSentPackets {
		return SendAck
	}
	return SendAny
}

func (h *sentPacketHandler) TimeUntilSend() time.Time { return h.pacer.TimeUntilSend() }

func (h *sentPacketHandler) HasPacingBudget(now time.Time) bool {
	return h.pacer.Budget(now) >= h.maxDatagramSize
}

// AmplificationWindow bounds how many more bytes may be sent to an
// unvalidated peer address (RFC 9000 Section 8).
func (h *sentPacketHandler) AmplificationWindow() protocol.ByteCount {
	if h.peerAddressValidated {
		return protocol.MaxByteCount
	}
	if h.bytesSent >= amplificationFactor*h.bytesReceived {
		return 0
	}
	return amplificationFactor*h.bytesReceived - h.bytesSent
}

func (h *sentPacketHandler) QueueProbePacket(level protocol.EncryptionLevel) bool {
	pnSpace := h.getPacketNumberSpace(level)
	p := pnSpace.history.FirstOutstanding()
	if p == nil {
		return false
	}
	h.queueFramesForRetransmission(p)
	if p.outstanding() {
		h.bytesInFlight -= p.Length
	}
	if err := pnSpace.history.Remove(p.PacketNumber); err != nil {
		panic(err)
	}
	return true
}

func (h *sentPacketHandler) queueFramesForRetransmission(p *Packet) {
	for _, f := range p.Frames {
		if f.OnLost != nil {
			f.OnLost(f.Frame)
		}
	}
	for _, f := range p.StreamFrames {
		if f.OnLost != nil {
			f.OnLost(f.Frame)
		}
	}
}

// ResetForRetry discards Initial and 0-RTT state after a Retry, queueing
// their frames for retransmission; both packet number spaces continue from
// the next packet number of their previous generators.
func (h *sentPacketHandler) ResetForRetry(now time.Time) {
	h.bytesInFlight = 0
	var firstSendTime time.Time
	h.initialPackets.history.Iterate(func(p *Packet) (bool, error) {
		if p == nil {
			return true, nil
		}
		if firstSendTime.IsZero() {
			firstSendTime = p.SendTime
		}
		h.queueFramesForRetransmission(p)
		return true, nil
	})
	h.appDataPackets.history.Iterate(func(p *Packet) (bool, error) {
		if p != nil {
			h.queueFramesForRetransmission(p)
		}
		return true, nil
	})

	if h.ptoCount == 0 && !firstSendTime.IsZero() {
		h.rttStats.UpdateRTT(now.Sub(firstSendTime), 0, now)
	}
	h.initialPackets = newPacketNumberSpace(h.initialPackets.pns.Pop())
	h.appDataPackets = newPacketNumberSpace(h.appDataPackets.pns.Pop())
	h.alarm = time.Time{}
	h.ptoCount = 0
}

func (h *sentPacketHandler) SetHandshakeConfirmed() {
	h.handshakeConfirmed = true
	h.setLossDetectionTimer()
}

func (h *sentPacketHandler) GetStats() Stats {
	return Stats{
		MinRTT:      h.rttStats.MinRTT(),
		SmoothedRTT: h.rttStats.SmoothedRTT(),
		LatestRTT:   h.rttStats.LatestRTT(),
	}
}
