package congestion

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
)

// State is BBRv2's top-level phase.
type State uint8

const (
	StateStartup State = iota
	StateDrain
	StateProbeBwDown
	StateProbeBwCruise
	StateProbeBwRefill
	StateProbeBwUp
	StateProbeRTT
)

func (s State) String() string {
	switch s {
	case StateStartup:
		return "Startup"
	case StateDrain:
		return "Drain"
	case StateProbeBwDown:
		return "ProbeBW-Down"
	case StateProbeBwCruise:
		return "ProbeBW-Cruise"
	case StateProbeBwRefill:
		return "ProbeBW-Refill"
	case StateProbeBwUp:
		return "ProbeBW-Up"
	case StateProbeRTT:
		return "ProbeRTT"
	default:
		return "unknown"
	}
}

func (s State) isProbeBW() bool {
	return s == StateProbeBwDown || s == StateProbeBwCruise || s == StateProbeBwRefill || s == StateProbeBwUp
}

const (
	maxBwFilterLen          = 2 // in ProbeBW cycles
	minRttFilterLen         = 10 * time.Second
	probeRTTInterval        = 5 * time.Second
	probeRTTDuration        = 200 * time.Millisecond
	maxExtraAckedFilterLen  = 10 // in packet-timed round trips

	startupPacingGain         = 2.89
	drainPacingGain           = 0.5
	probeBwDownPacingGain     = 0.9
	probeBwCruiseRefillGain   = 1.0
	probeBwUpPacingGain       = 1.25
	probeRTTPacingGain        = 1.0

	startupCwndGain       = 2.89
	probeBwCruiseCwndGain = 2.0
	probeBwDownCwndGain   = 2.0
	probeBwUpCwndGain     = 2.25
	probeRTTCwndGain      = 0.5

	beta           = 0.7
	lossThreshold  = 0.02
	headroomFactor = 0.15

	minCwndInMSS = 4
)

// bbr2 implements the BBRv2 congestion controller's state machine:
// Startup → Drain → ProbeBW{Down,Cruise,Refill,Up} → ProbeRTT → ProbeBW…
// grounded on mvfst's Bbr2CongestionController.
type bbr2 struct {
	logger          *slog.Logger
	maxDatagramSize protocol.ByteCount
	pacer           *Pacer

	state      State
	pacingGain float64
	cwndGain   float64

	cwndBytes         protocol.ByteCount
	previousCwndBytes protocol.ByteCount
	sendQuantum       protocol.ByteCount
	inflightBytes     protocol.ByteCount
	totalBytesSent    protocol.ByteCount
	totalBytesAcked   protocol.ByteCount

	bandwidth       Bandwidth
	bandwidthLatest Bandwidth
	bandwidthLo     *Bandwidth
	maxBwFilter     *windowedMaxFilter
	cycleCount      int64

	inflightLatest protocol.ByteCount
	inflightHi     *protocol.ByteCount
	inflightLo     *protocol.ByteCount

	minRtt               time.Duration
	latestSample         time.Duration
	minRttTimestamp      time.Time
	probeRttMinValue     time.Duration
	probeRttMinTimestamp time.Time
	probeRttExpired      bool
	probeRttDoneTime     *time.Time

	fullBwReached bool
	fullBw        Bandwidth
	fullBwCount   int
	fullBwNow     bool

	roundStart         bool
	roundCount         int64
	nextRoundDelivered protocol.ByteCount

	lossRoundStart         bool
	lossBytesInRound       protocol.ByteCount
	lossEventsInRound      int
	lossPctInLastRound     float64
	lossEventsInLastRound  int
	lossRoundEndBytesSent  protocol.ByteCount

	cwndLimitedInRound bool

	appLimited             bool
	appLimitedLastSendTime time.Time

	idleRestart              bool
	extraAckedStartTimestamp time.Time
	extraAckedDelivered      protocol.ByteCount
	maxExtraAckedFilter      *windowedMaxFilter

	probeBWCycleStart       time.Time
	bwProbeWait             time.Duration
	roundsSinceBwProbe      int64
	bwProbeShouldHandleLoss bool
	probeUpRounds           int
	probeUpAcks             protocol.ByteCount
	probeUpCount            protocol.ByteCount

	enableRenoCoexistence bool
	renoCoexistenceCwnd   protocol.ByteCount
}

var _ SendAlgorithm = &bbr2{}

// NewBBR2 builds a BBRv2 controller starting in Startup with initCwnd as
// its initial congestion window.
func NewBBR2(maxDatagramSize protocol.ByteCount, initCwndPackets int, pacer *Pacer, logger *slog.Logger) *bbr2 {
	b := &bbr2{
		logger:          logger,
		maxDatagramSize: maxDatagramSize,
		pacer:           pacer,
		cwndBytes:       protocol.ByteCount(initCwndPackets) * maxDatagramSize,
		maxBwFilter:     newWindowedMaxFilter(maxBwFilterLen - 1),
		maxExtraAckedFilter: newWindowedMaxFilter(maxExtraAckedFilterLen),
		minRtt:          math.MaxInt64,
	}
	b.enterStartup()
	return b
}

func (b *bbr2) minCwnd() protocol.ByteCount {
	return minCwndInMSS * b.maxDatagramSize
}

// OnPacketSent implements SendAlgorithm.
func (b *bbr2) OnPacketSent(sentTime time.Time, bytesInFlight, size protocol.ByteCount, isAppLimited bool) {
	if b.inflightBytes == 0 && b.appLimited {
		b.idleRestart = true
		b.extraAckedStartTimestamp = sentTime
		b.extraAckedDelivered = 0
		if b.state.isProbeBW() {
			b.setPacing()
		}
	}
	b.totalBytesSent += size
	b.inflightBytes += size
	if b.inflightBytes > b.cwndBytes*9/10 {
		b.cwndLimitedInRound = true
	}
}

// OnPacketAckOrLoss implements SendAlgorithm.
func (b *bbr2) OnPacketAckOrLoss(acked *AckedPacketInfo, loss *LossEvent) {
	var ack *AckEvent
	if acked != nil {
		ack = &AckEvent{
			AckTime:              acked.SentTime,
			AdjustedAckTime:      acked.SentTime,
			AckedBytes:           acked.Size,
			TotalBytesAcked:      acked.TotalBytesAckedAtAck,
			LargestNewlyAcked:    acked,
			NewlyAckedPackets:    []AckedPacketInfo{*acked},
			LargestAckedSentTime: acked.SentTime,
		}
	}
	b.onAckOrLoss(ack, loss)
}

func (b *bbr2) onAckOrLoss(ack *AckEvent, loss *LossEvent) {
	if ack != nil {
		b.inflightBytes -= min(b.inflightBytes, ack.AckedBytes)
	}
	var lostBytes protocol.ByteCount
	if loss != nil {
		lostBytes = loss.LostBytes
		b.inflightBytes -= min(b.inflightBytes, lostBytes)
	}

	if ack == nil {
		return
	}
	if ack.Implicit {
		b.setCwnd(ack.AckedBytes)
		return
	}

	if b.appLimited && !b.appLimitedLastSendTime.After(ack.LargestAckedSentTime) {
		b.appLimited = false
	}

	b.updateLatestDeliverySignals(ack)
	b.updateRound(ack)

	if b.roundStart {
		b.cwndLimitedInRound = false
	}

	b.updateCongestionSignals(loss)
	b.updateAckAggregation(ack)
	b.checkFullBwReached()
	b.checkStartupDone()
	b.checkDrain()

	inflightAtLargestAcked := b.inflightBytes
	if ack.LargestNewlyAcked != nil {
		inflightAtLargestAcked = ack.LargestNewlyAcked.InflightAtSend
	}
	b.updateProbeBwCyclePhase(ack.AckedBytes, inflightAtLargestAcked, lostBytes)
	b.updateMinRtt()
	b.checkProbeRtt(ack.AckedBytes)
	b.advanceLatestDeliverySignals(ack)
	b.boundBwForModel()

	b.setPacing()
	b.setSendQuantum()
	b.setCwnd(ack.AckedBytes)
}

// GetWritableBytes implements SendAlgorithm.
func (b *bbr2) GetWritableBytes(bytesInFlight protocol.ByteCount) protocol.ByteCount {
	if b.cwndBytes > bytesInFlight {
		return b.cwndBytes - bytesInFlight
	}
	return 0
}

// GetCongestionWindow implements SendAlgorithm.
func (b *bbr2) GetCongestionWindow() protocol.ByteCount { return b.cwndBytes }

// SetAppLimited implements SendAlgorithm.
func (b *bbr2) SetAppLimited() {
	b.appLimited = true
	b.appLimitedLastSendTime = time.Now()
}

// GetBandwidth implements SendAlgorithm.
func (b *bbr2) GetBandwidth() Bandwidth { return b.bandwidth }

func (b *bbr2) enterStartup() {
	b.state = StateStartup
	b.updateGains()
}

func (b *bbr2) enterDrain() {
	b.state = StateDrain
	b.updateGains()
	if b.logger != nil {
		b.logger.Debug("bbr2 entering drain", "cwnd", b.cwndBytes, "bandwidth", b.bandwidth)
	}
}

func (b *bbr2) enterProbeBW() { b.startProbeBwDown() }

func (b *bbr2) enterProbeRTT() {
	b.state = StateProbeRTT
	b.updateGains()
}

func (b *bbr2) startProbeBwDown() {
	b.resetCongestionSignals()
	b.probeUpCount = protocol.MaxByteCount
	b.roundsSinceBwProbe = int64(rand.Intn(2))
	b.bwProbeWait = time.Duration(2000+rand.Intn(1000)) * time.Millisecond
	b.probeBWCycleStart = time.Now()
	b.state = StateProbeBwDown
	b.updateGains()
	b.startRound()
	if !b.appLimited {
		b.cycleCount++
	}
}

func (b *bbr2) startProbeBwCruise() {
	b.state = StateProbeBwCruise
	b.updateGains()
}

func (b *bbr2) startProbeBwRefill() {
	b.resetLowerBounds()
	b.probeUpRounds = 0
	b.probeUpAcks = 0
	b.state = StateProbeBwRefill
	b.updateGains()
	b.startRound()
}

func (b *bbr2) startProbeBwUp() {
	b.probeBWCycleStart = time.Now()
	b.state = StateProbeBwUp
	b.updateGains()
	b.startRound()
	b.resetFullBw()
	b.raiseInflightHiSlope()
}

func (b *bbr2) updateGains() {
	switch b.state {
	case StateStartup:
		b.pacingGain, b.cwndGain = startupPacingGain, startupCwndGain
	case StateDrain:
		b.pacingGain, b.cwndGain = drainPacingGain, startupCwndGain
	case StateProbeBwUp:
		b.pacingGain, b.cwndGain = probeBwUpPacingGain, probeBwUpCwndGain
	case StateProbeBwDown:
		b.pacingGain, b.cwndGain = probeBwDownPacingGain, probeBwDownCwndGain
	case StateProbeBwCruise, StateProbeBwRefill:
		b.pacingGain, b.cwndGain = probeBwCruiseRefillGain, probeBwCruiseCwndGain
	case StateProbeRTT:
		b.pacingGain, b.cwndGain = probeRTTPacingGain, probeRTTCwndGain
	}
}

func (b *bbr2) resetCongestionSignals() {
	b.lossBytesInRound = 0
	b.lossEventsInRound = 0
	b.bandwidthLatest = 0
	b.inflightLatest = 0
}

func (b *bbr2) resetLowerBounds() {
	b.bandwidthLo = nil
	b.inflightLo = nil
}

func (b *bbr2) resetFullBw() {
	b.fullBw = 0
	b.fullBwNow = false
	b.fullBwCount = 0
}

func (b *bbr2) startRound() {
	b.nextRoundDelivered = b.totalBytesAcked
}

func (b *bbr2) updateRound(ack *AckEvent) {
	b.totalBytesAcked = ack.TotalBytesAcked
	if b.totalBytesAcked >= b.nextRoundDelivered {
		b.startRound()
		b.roundCount++
		b.roundsSinceBwProbe++
		b.roundStart = true
	} else {
		b.roundStart = false
	}
}

func (b *bbr2) bandwidthSampleFromAck(ack *AckEvent) Bandwidth {
	var best Bandwidth
	for i := range ack.NewlyAckedPackets {
		pkt := &ack.NewlyAckedPackets[i]
		if pkt.Size == 0 {
			continue
		}
		lastSentTime := pkt.LastAckedPacketSentTime
		sendElapsed := pkt.SentTime.Sub(lastSentTime)
		lastAckTime := pkt.LastAckedPacketAckTime
		ackElapsed := ack.AdjustedAckTime.Sub(lastAckTime)
		interval := sendElapsed
		if ackElapsed > interval {
			interval = ackElapsed
		}
		if interval <= 0 {
			return 0
		}
		delivered := ack.TotalBytesAcked - pkt.LastTotalBytesAcked
		bw := BandwidthFromDelta(delivered, interval)
		if bw > best {
			best = bw
		}
	}
	return best
}

func (b *bbr2) updateLatestDeliverySignals(ack *AckEvent) {
	b.lossRoundStart = false
	if sample := b.bandwidthSampleFromAck(ack); sample > b.bandwidthLatest {
		b.bandwidthLatest = sample
	}
	if uint64(b.bandwidthLatest) > uint64(b.inflightLatest) {
		b.inflightLatest = protocol.ByteCount(b.bandwidthLatest)
	}

	if ack.LargestNewlyAcked != nil && b.totalBytesSent > b.lossRoundEndBytesSent {
		if denom := b.totalBytesSent - b.lossRoundEndBytesSent; denom > 0 {
			b.lossPctInLastRound = float64(b.lossBytesInRound) / float64(denom)
		}
		b.lossEventsInLastRound = b.lossEventsInRound
		b.lossRoundEndBytesSent = b.totalBytesSent
		b.lossRoundStart = true
	}
}

func (b *bbr2) updateCongestionSignals(loss *LossEvent) {
	if b.bandwidthLatest > Bandwidth(b.maxBwFilter.GetBest()) || !b.appLimited {
		b.maxBwFilter.Update(int64(b.bandwidthLatest), b.cycleCount)
	}
	if loss != nil && loss.LostBytes > 0 {
		b.lossBytesInRound += loss.LostBytes
		b.lossEventsInRound++
	}
	if !b.lossRoundStart {
		return
	}
	if b.state == StateProbeBwUp {
		b.lossBytesInRound, b.lossEventsInRound = 0, 0
		return
	}
	if b.lossBytesInRound > 0 {
		if b.bandwidthLo == nil {
			bw := Bandwidth(b.maxBwFilter.GetBest())
			b.bandwidthLo = &bw
		}
		if b.inflightLo == nil {
			v := b.cwndBytes
			b.inflightLo = &v
		}
		lo := Bandwidth(float64(*b.bandwidthLo) * beta)
		if b.bandwidthLatest > lo {
			lo = b.bandwidthLatest
		}
		b.bandwidthLo = &lo

		iloFloat := protocol.ByteCount(float64(*b.inflightLo) * beta)
		ilo := iloFloat
		if b.inflightLatest > ilo {
			ilo = b.inflightLatest
		}
		b.inflightLo = &ilo
	}
	b.lossBytesInRound, b.lossEventsInRound = 0, 0
}

func (b *bbr2) updateAckAggregation(ack *AckEvent) {
	interval := ack.AckTime.Sub(b.extraAckedStartTimestamp)
	expected := b.bandwidth.TimesDuration(interval)
	if b.extraAckedDelivered < expected {
		b.extraAckedDelivered = 0
		b.extraAckedStartTimestamp = ack.AckTime
		expected = 0
	}
	b.extraAckedDelivered += ack.AckedBytes
	extra := b.extraAckedDelivered - expected
	if extra > b.cwndBytes {
		extra = b.cwndBytes
	}
	b.maxExtraAckedFilter.Update(int64(extra), b.roundCount)
}

func (b *bbr2) checkFullBwReached() {
	if b.fullBwNow || b.appLimited {
		return
	}
	if Bandwidth(b.maxBwFilter.GetBest()) >= Bandwidth(float64(b.fullBw)*1.25) {
		b.resetFullBw()
		b.fullBw = Bandwidth(b.maxBwFilter.GetBest())
		return
	}
	if !b.roundStart {
		return
	}
	b.fullBwCount++
	b.fullBwNow = b.fullBwCount >= 3
	if b.fullBwNow {
		b.fullBwReached = true
	}
	b.checkStartupHighLoss()
}

func (b *bbr2) checkStartupHighLoss() {
	if b.fullBwReached || !b.roundStart || b.appLimited {
		return
	}
	if b.lossPctInLastRound > lossThreshold && b.lossEventsInLastRound >= 6 {
		b.fullBwReached = true
		v := b.bdpWithGain(b.cwndGain)
		if b.inflightLatest > v {
			v = b.inflightLatest
		}
		b.inflightHi = &v
	}
}

func (b *bbr2) checkStartupDone() {
	if b.state == StateStartup && b.fullBwReached {
		b.enterDrain()
	}
}

func (b *bbr2) checkDrain() {
	if b.state == StateDrain && b.inflightBytes <= b.targetInflightWithGain(1.0) {
		b.enterProbeBW()
	}
}

func (b *bbr2) updateProbeBwCyclePhase(ackedBytes, inflightAtLargestAcked, lostBytes protocol.ByteCount) {
	if !b.fullBwReached {
		return
	}
	b.adaptUpperBounds(ackedBytes, inflightAtLargestAcked, lostBytes)
	if !b.state.isProbeBW() {
		return
	}
	switch b.state {
	case StateProbeBwDown:
		if b.checkTimeToProbeBW() {
			return
		}
		if b.checkTimeToCruise() {
			b.startProbeBwCruise()
		}
	case StateProbeBwCruise:
		b.checkTimeToProbeBW()
	case StateProbeBwRefill:
		if b.roundStart {
			b.bwProbeShouldHandleLoss = true
			b.startProbeBwUp()
		}
	case StateProbeBwUp:
		if b.checkTimeToGoDown() {
			b.startProbeBwDown()
		}
	}
}

func (b *bbr2) adaptUpperBounds(ackedBytes, inflightAtLargestAcked, lostBytes protocol.ByteCount) {
	if !b.checkInflightTooHigh(inflightAtLargestAcked, lostBytes) {
		if b.inflightHi == nil {
			return
		}
		if inflightAtLargestAcked > *b.inflightHi {
			b.inflightHi = &inflightAtLargestAcked
		}
		if b.state == StateProbeBwUp {
			b.probeInflightHiUpward(ackedBytes)
		}
	}
}

func (b *bbr2) checkTimeToProbeBW() bool {
	if b.hasElapsedInPhase(b.bwProbeWait) || b.isRenoCoexistenceProbeTime() {
		b.startProbeBwRefill()
		return true
	}
	return false
}

func (b *bbr2) checkTimeToCruise() bool {
	if b.inflightBytes > b.targetInflightWithHeadroom() {
		return false
	}
	return b.inflightBytes <= b.targetInflightWithGain(b.cwndGain)
}

func (b *bbr2) checkTimeToGoDown() bool {
	if b.cwndLimitedInRound && b.inflightHi != nil && b.cwndBytes >= *b.inflightHi {
		b.resetFullBw()
		b.fullBw = Bandwidth(b.maxBwFilter.GetBest())
		return false
	}
	return b.fullBwNow
}

func (b *bbr2) hasElapsedInPhase(interval time.Duration) bool {
	return time.Now().After(b.probeBWCycleStart.Add(interval))
}

func (b *bbr2) checkInflightTooHigh(inflightAtLargestAcked, lostBytes protocol.ByteCount) bool {
	if b.isInflightTooHigh(inflightAtLargestAcked, lostBytes) {
		if b.bwProbeShouldHandleLoss {
			b.handleInflightTooHigh(inflightAtLargestAcked)
		}
		return true
	}
	return false
}

func (b *bbr2) isInflightTooHigh(inflightAtLargestAcked, lostBytes protocol.ByteCount) bool {
	return float64(lostBytes) > float64(inflightAtLargestAcked)*lossThreshold
}

// handleInflightTooHigh applies the S7 scenario: inflight_hi is reduced to
// max(inflight_at_largest_acked, target·beta), and ProbeBW-Up exits to
// ProbeBW-Down.
func (b *bbr2) handleInflightTooHigh(inflightAtLargestAcked protocol.ByteCount) {
	b.bwProbeShouldHandleLoss = false
	if !b.appLimited {
		target := protocol.ByteCount(float64(b.targetInflightWithGain(b.cwndGain)) * beta)
		v := inflightAtLargestAcked
		if target > v {
			v = target
		}
		b.inflightHi = &v
		if b.logger != nil {
			b.logger.Debug("bbr2 reducing inflight_hi on high loss", "state", b.state, "inflight_hi", v)
		}
	}
	if b.state == StateProbeBwUp {
		b.startProbeBwDown()
	}
}

func (b *bbr2) targetInflightWithHeadroom() protocol.ByteCount {
	if b.inflightHi == nil {
		return protocol.MaxByteCount
	}
	headroom := protocol.ByteCount(math.Max(1, headroomFactor*float64(*b.inflightHi)))
	v := *b.inflightHi - headroom
	if v < b.minCwnd() {
		v = b.minCwnd()
	}
	return v
}

func (b *bbr2) probeInflightHiUpward(ackedBytes protocol.ByteCount) {
	if b.inflightHi == nil || !b.cwndLimitedInRound || b.cwndBytes < *b.inflightHi {
		return
	}
	b.probeUpAcks += ackedBytes
	if b.probeUpAcks >= b.probeUpCount {
		delta := b.probeUpAcks / b.probeUpCount
		b.probeUpAcks -= delta * b.probeUpCount
		v := *b.inflightHi + delta
		b.inflightHi = &v
	}
	if b.roundStart {
		b.raiseInflightHiSlope()
	}
}

func (b *bbr2) updateMinRtt() {
	if b.idleRestart {
		b.probeRttMinTimestamp = time.Now()
		b.probeRttMinValue = math.MaxInt64
	}
	if b.probeRttMinTimestamp.IsZero() {
		b.probeRttExpired = true
	} else {
		b.probeRttExpired = time.Now().After(b.probeRttMinTimestamp.Add(probeRTTInterval))
	}
	lrtt := b.latestSample
	if lrtt > 0 && (lrtt < b.probeRttMinValue || b.probeRttExpired) {
		b.probeRttMinValue = lrtt
		b.probeRttMinTimestamp = time.Now()
	}

	minRttExpired := b.minRttTimestamp.IsZero() || time.Now().After(b.minRttTimestamp.Add(minRttFilterLen))
	if b.probeRttMinValue < b.minRtt || minRttExpired {
		b.minRtt = b.probeRttMinValue
		b.minRttTimestamp = b.probeRttMinTimestamp
	}
}

func (b *bbr2) checkProbeRtt(ackedBytes protocol.ByteCount) {
	if b.state != StateProbeRTT && b.probeRttExpired && !b.idleRestart {
		b.enterProbeRTT()
		b.saveCwnd()
		b.probeRttDoneTime = nil
		b.startRound()
	}
	if b.state == StateProbeRTT {
		b.handleProbeRtt()
	}
	if ackedBytes > 0 {
		b.idleRestart = false
	}
}

func (b *bbr2) handleProbeRtt() {
	b.SetAppLimited()
	if b.probeRttDoneTime == nil && b.inflightBytes <= b.probeRTTCwnd() {
		t := time.Now().Add(probeRTTDuration)
		b.probeRttDoneTime = &t
		b.startRound()
	} else if b.probeRttDoneTime != nil && b.roundStart {
		b.checkProbeRttDone()
	}
}

func (b *bbr2) checkProbeRttDone() {
	if (b.probeRttDoneTime != nil && time.Now().After(*b.probeRttDoneTime)) || b.inflightBytes == 0 {
		b.probeRttMinTimestamp = time.Now()
		b.restoreCwnd()
		b.exitProbeRtt()
	}
}

func (b *bbr2) exitProbeRtt() {
	b.resetLowerBounds()
	if b.fullBwReached {
		b.startProbeBwDown()
		b.startProbeBwCruise()
	} else {
		b.enterStartup()
	}
}

func (b *bbr2) advanceLatestDeliverySignals(ack *AckEvent) {
	if b.lossRoundStart {
		b.bandwidthLatest = b.bandwidthSampleFromAck(ack)
		b.inflightLatest = protocol.ByteCount(b.bandwidthLatest)
	}
}

func (b *bbr2) probeRTTCwnd() protocol.ByteCount {
	v := b.bdpWithGain(probeRTTCwndGain)
	if v < b.minCwnd() {
		return b.minCwnd()
	}
	return v
}

func (b *bbr2) boundBwForModel() {
	b.bandwidth = Bandwidth(b.maxBwFilter.GetBest())
	if b.state != StateStartup && b.bandwidthLo != nil && b.bandwidth > *b.bandwidthLo {
		b.bandwidth = *b.bandwidthLo
	}
}

func (b *bbr2) addQuantizationBudget(input protocol.ByteCount) protocol.ByteCount {
	offload := 3 * b.sendQuantum
	if offload > input {
		input = offload
	}
	if b.minCwnd() > input {
		input = b.minCwnd()
	}
	if b.state == StateProbeBwUp {
		input += 2 * b.maxDatagramSize
	}
	return input
}

func (b *bbr2) saveCwnd() {
	if b.state != StateProbeRTT {
		b.previousCwndBytes = b.cwndBytes
	} else if b.cwndBytes > b.previousCwndBytes {
		b.previousCwndBytes = b.cwndBytes
	}
}

func (b *bbr2) restoreCwnd() {
	if b.previousCwndBytes > b.cwndBytes {
		b.cwndBytes = b.previousCwndBytes
	}
}

func (b *bbr2) targetInflightWithGain(gain float64) protocol.ByteCount {
	return b.addQuantizationBudget(b.bdpWithGain(gain))
}

func (b *bbr2) bdpWithGain(gain float64) protocol.ByteCount {
	if b.minRtt == math.MaxInt64 || b.bandwidth == 0 {
		return protocol.ByteCount(gain * float64(4*b.maxDatagramSize))
	}
	return protocol.ByteCount(gain * float64(b.bandwidth.TimesDuration(b.minRtt)))
}

func (b *bbr2) setPacing() {
	pacingWindow := protocol.ByteCount(float64(b.bandwidth.TimesDuration(b.minRtt)) * b.pacingGain)
	if b.state == StateStartup && !b.fullBwReached {
		if floor := 4 * b.maxDatagramSize; pacingWindow < floor {
			pacingWindow = floor
		}
	}
	if b.pacer != nil {
		b.pacer.RefreshPacingRate(pacingWindow, b.minRtt)
	}
}

func (b *bbr2) setSendQuantum() {
	rate := Bandwidth(float64(b.bandwidth) * b.pacingGain)
	burst := rate.TimesDuration(pacingTickInterval)
	b.sendQuantum = min(burst, 64*1024)
	if floor := 2 * b.maxDatagramSize; b.sendQuantum < floor {
		b.sendQuantum = floor
	}
}

func (b *bbr2) setCwnd(ackedBytes protocol.ByteCount) {
	inflightMax := b.addQuantizationBudget(b.targetInflightWithGain(b.cwndGain) + protocol.ByteCount(b.maxExtraAckedFilter.GetBest()))

	if b.fullBwReached {
		b.cwndBytes = min(b.cwndBytes+ackedBytes, inflightMax)
	} else if b.cwndBytes < inflightMax {
		b.cwndBytes += ackedBytes
	}
	if b.cwndBytes < b.minCwnd() {
		b.cwndBytes = b.minCwnd()
	}

	if b.state == StateProbeRTT {
		b.cwndBytes = min(b.cwndBytes, b.probeRTTCwnd())
	}

	cwndCap := protocol.MaxByteCount
	if b.inflightHi != nil {
		if b.state.isProbeBW() && b.state != StateProbeBwCruise {
			cwndCap = *b.inflightHi
		} else if b.state == StateProbeRTT || b.state == StateProbeBwCruise {
			cwndCap = b.targetInflightWithHeadroom()
		}
	}
	if b.inflightLo != nil && *b.inflightLo < cwndCap {
		cwndCap = *b.inflightLo
	}
	if cwndCap < b.minCwnd() {
		cwndCap = b.minCwnd()
	}
	b.cwndBytes = min(b.cwndBytes, cwndCap)
}

func (b *bbr2) raiseInflightHiSlope() {
	growth := b.maxDatagramSize << b.probeUpRounds
	if b.probeUpRounds < 30 {
		b.probeUpRounds++
	}
	if growth == 0 {
		growth = b.maxDatagramSize
	}
	b.probeUpCount = max(b.cwndBytes/growth, 1)
}

// isRenoCoexistenceProbeTime implements the SUPPLEMENTED FEATURE of gating
// an early Refill transition by comparing against a parallel Reno-style
// cwnd estimate, so BBRv2 doesn't claim meaningfully less bandwidth than
// a competing Reno flow would at the same loss rate.
func (b *bbr2) isRenoCoexistenceProbeTime() bool {
	if !b.enableRenoCoexistence {
		return false
	}
	renoBDPInPackets := min(b.targetInflightWithGain(1.0), b.cwndBytes) / b.maxDatagramSize
	roundsBeforeProbe := min(int64(renoBDPInPackets), 63)
	b.renoCoexistenceCwnd = renoBDPInPackets * b.maxDatagramSize
	return b.roundsSinceBwProbe >= roundsBeforeProbe
}

// OnRTTSample records a fresh latest_rtt observation from the ack handler's
// RTT estimator, consumed by updateMinRtt on the next ack event.
func (b *bbr2) OnRTTSample(rtt time.Duration) {
	b.latestSample = rtt
}
