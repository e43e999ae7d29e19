package protocol

import "time"

// CongestionAlgorithm tags which congestion controller a connection runs.
// The redesign away from a polymorphic class hierarchy means this is a
// closed enum rather than an interface type switch at the call site; the
// congestion package still exposes a single SendAlgorithm interface, this
// tag is only used for configuration and logging.
type CongestionAlgorithm uint8

const (
	CongestionCubic CongestionAlgorithm = iota
	CongestionReno
	CongestionBBR
	CongestionBBRv2
	CongestionCopa
)

func (c CongestionAlgorithm) String() string {
	switch c {
	case CongestionCubic:
		return "cubic"
	case CongestionReno:
		return "reno"
	case CongestionBBR:
		return "bbr"
	case CongestionBBRv2:
		return "bbr2"
	case CongestionCopa:
		return "copa"
	default:
		return "unknown"
	}
}

// BatchingMode selects how a connection hands completed datagrams to the
// OS: one sendmsg call per packet, or a batch handed to the DSR/GSO path.
type BatchingMode uint8

const (
	BatchingNone BatchingMode = iota
	BatchingGSO
	BatchingDSR
)

// AckFrequencyPolicy controls how aggressively a receiver asks its peer to
// delay ACKs, mirroring the ACK_FREQUENCY frame's fields.
type AckFrequencyPolicy struct {
	// AckElicitingThreshold is the number of ack-eliciting packets that may
	// be received before an ACK must be sent.
	AckElicitingThreshold uint64
	// MaxAckDelay bounds how long a receiver may hold an ACK before sending it.
	MaxAckDelay time.Duration
	// ReorderingThreshold requests immediate ACKs once this many packets
	// have arrived out of order, independent of AckElicitingThreshold.
	ReorderingThreshold uint64
}

// DefaultAckFrequencyPolicy matches quic-go's default ack-eliciting threshold
// and RFC 9000's default max_ack_delay.
var DefaultAckFrequencyPolicy = AckFrequencyPolicy{
	AckElicitingThreshold: 2,
	MaxAckDelay:           25 * time.Millisecond,
	ReorderingThreshold:   1,
}

const (
	// MaxAckDelayDefault is the default max_ack_delay transport parameter.
	MaxAckDelayDefault = 25 * time.Millisecond
	// MaxAckDelayUpperBound is the largest delay a peer may request.
	MaxAckDelayUpperBound = 1 << 14 * time.Millisecond
	// AckDelayExponentDefault is the default ack_delay_exponent transport parameter.
	AckDelayExponentDefault = 3
	// MaxAckDelay is how long a receiver may hold an ack-eliciting packet
	// before it must send an ACK.
	MaxAckDelay = MaxAckDelayDefault
	// MaxNumAckRanges bounds how many disjoint ACK ranges a receiver keeps
	// track of per packet number space, to cap memory use against a peer
	// that deliberately leaves gaps.
	MaxNumAckRanges = 500
)

const (
	// MaxTrackedSentPackets bounds how many outstanding packets a single
	// packet number space holds onto before the sender stops sending
	// entirely (SendMode reports SendNone, so not even ACKs go out).
	MaxTrackedSentPackets = 2 * MaxOutstandingSentPackets
	// MaxOutstandingSentPackets bounds how many outstanding packets a
	// packet number space holds before the sender falls back to only
	// sending ACKs, giving loss recovery a chance to free up room.
	MaxOutstandingSentPackets = 2 * 2000
	// SkipPacketAveragePeriod is the average number of packets sent
	// between two packet numbers the sender skips over, to make
	// off-path optimistic ACK attacks detectable.
	SkipPacketAveragePeriod = 500
)

const (
	// TimerGranularity is the system timer granularity assumed by loss
	// detection; the PTO never resolves to less than this (RFC 9002
	// Section 6.2.1).
	TimerGranularity = time.Millisecond
	// DefaultInitialRTT is the RTT assumed before any sample has arrived
	// (RFC 9002 Section 6.2.2).
	DefaultInitialRTT = 333 * time.Millisecond
)

const (
	// DefaultInitialMaxStreamData is the initial receive window advertised
	// for a single stream before any autotuning has happened.
	DefaultInitialMaxStreamData ByteCount = 512 * (1 << 10)
	// DefaultInitialMaxData is the initial connection-level receive window.
	DefaultInitialMaxData ByteCount = 1536 * (1 << 10)
	// DefaultMaxReceiveStreamFlowControlWindow caps how far autotuning may
	// grow one stream's receive window.
	DefaultMaxReceiveStreamFlowControlWindow ByteCount = 6 * (1 << 20)
	// DefaultMaxReceiveConnectionFlowControlWindow caps how far autotuning
	// may grow the connection-level receive window.
	DefaultMaxReceiveConnectionFlowControlWindow ByteCount = 15 * (1 << 20)
	// MinCoalescedPacketSize is the smallest remaining budget in a datagram
	// worth starting another coalesced packet in, header and AEAD overhead
	// included; below this the packer stops trying further levels.
	MinCoalescedPacketSize ByteCount = 128
)

const (
	// MaxActiveConnectionIDs is the number of connection IDs this endpoint
	// asks its peer to keep available for it at once (the active_connection_id_limit
	// transport parameter this endpoint sends).
	MaxActiveConnectionIDs = 4
	// ClosedSessionDeleteTimeout is how long a closed connection's IDs stay
	// mapped to a closedLocalConn/closedRemoteConn stand-in, so reordered or
	// retransmitted packets still get a sane reply instead of being routed
	// to a new connection that later reuses the same ID space.
	ClosedSessionDeleteTimeout = 1 * time.Minute
)

// KeyPhaseBit is the single-bit key phase carried in the short header, used
// to signal a completed key update (RFC 9001 Section 6).
type KeyPhaseBit bool

const (
	KeyPhaseZero KeyPhaseBit = false
	KeyPhaseOne  KeyPhaseBit = true
)

// Bit flips the key phase.
func (p KeyPhaseBit) Bit() KeyPhaseBit {
	if p {
		return KeyPhaseZero
	}
	return KeyPhaseOne
}

func (p KeyPhaseBit) String() string {
	if p {
		return "1"
	}
	return "0"
}

// MaxStreamFrameSorterGaps bounds how many disjoint gaps a stream's (or the
// crypto stream's) reassembly buffer tracks before giving up on the peer.
const MaxStreamFrameSorterGaps = 1000

// MaxCryptoStreamOffset bounds how far ahead of the read position a CRYPTO
// frame's offset may be, so a peer can't force unbounded reassembly-buffer
// growth before the handshake completes.
const MaxCryptoStreamOffset ByteCount = 16 * (1 << 20)

const (
	// DefaultMaxIncomingStreams is the number of concurrently open
	// bidirectional streams advertised to the peer by default.
	DefaultMaxIncomingStreams = 100
	// DefaultMaxIncomingUniStreams is the number of concurrently open
	// unidirectional streams advertised to the peer by default.
	DefaultMaxIncomingUniStreams = 100
	// MaxStreamsMinimumIncrement is the minimum amount by which the
	// advertised stream limit grows each time MAX_STREAMS is re-sent, so a
	// peer closing and reopening streams one at a time isn't made to wait
	// on a frame for every single one.
	MaxStreamsMinimumIncrement = 20
	// MaxStreamsMultiplier scales the configured stream limit into the
	// window actually advertised, giving the same slack as
	// MaxStreamsMinimumIncrement for large configured limits.
	MaxStreamsMultiplier = 1.05
)

// MinStreamFrameSize is the smallest STREAM frame payload worth adding to a
// packet; below this, the framer leaves the remaining space for the next
// packet rather than fragmenting a stream's data further.
const MinStreamFrameSize ByteCount = 128
