package quic

import (
	"errors"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultIdleTimeout      = 30 * time.Second
	defaultMaxIncomingStreams    = 100
	defaultMaxIncomingUniStreams = 100
	defaultConnectionIDLength    = 4
	defaultKeyUpdatePacketInterval = 100 << 20
	defaultAckElicitingThreshold   = protocol.DefaultAckFrequencyPolicy.AckElicitingThreshold
)

// TokenStore stores address validation tokens received from a server,
// so a later connection attempt to the same server can skip a round trip.
type TokenStore interface {
	Pop(key string) *ClientToken
	Put(key string, token *ClientToken)
}

// ClientToken is an address validation token handed out by a server in a
// NEW_TOKEN frame, plus the RTT sample the server measured when it issued
// the token (reused to seed the next connection's initial RTT estimate).
type ClientToken struct {
	data []byte
	rtt  time.Duration
}

// AckFrequencyPolicy controls how aggressively the peer is asked to delay
// ACKs, mirroring the configuration parameters list's ack_frequency_policy.
type AckFrequencyPolicy = protocol.AckFrequencyPolicy

// StatelessResetKey is used to derive stateless reset tokens that let a peer
// recognize a reset for a connection whose state this endpoint has lost,
// without keeping per-connection state around just to send one.
type StatelessResetKey [32]byte

// Config contains the configurable parameters of a QUIC connection.
type Config struct {
	// Versions is the list of QUIC versions to negotiate, in order of
	// preference. An empty list means protocol.SupportedVersions.
	Versions []protocol.Version

	// HandshakeIdleTimeout is the idle timeout before the handshake
	// completes.
	HandshakeIdleTimeout time.Duration
	// MaxIdleTimeout is the maximum duration of no network activity
	// before the connection is closed.
	MaxIdleTimeout time.Duration
	// KeepAlivePeriod, if nonzero, sends a PING this often to keep a NAT
	// binding alive.
	KeepAlivePeriod time.Duration

	// InitialStreamReceiveWindow and MaxStreamReceiveWindow bound a single
	// stream's flow control window: the window it starts with, and how
	// far autotuning may grow it.
	InitialStreamReceiveWindow uint64
	MaxStreamReceiveWindow     uint64
	// InitialConnectionReceiveWindow and MaxConnectionReceiveWindow do
	// the same for the connection-level flow control window.
	InitialConnectionReceiveWindow uint64
	MaxConnectionReceiveWindow     uint64
	// AllowConnectionWindowIncrease, if set, is consulted before the
	// connection flow control window autotunes upward.
	AllowConnectionWindowIncrease func(conn Connection, delta uint64) bool

	// MaxIncomingStreams and MaxIncomingUniStreams bound how many
	// peer-initiated bidirectional/unidirectional streams may be open at
	// once; further opens block the peer via MAX_STREAMS.
	MaxIncomingStreams    int64
	MaxIncomingUniStreams int64

	// TokenStore is carried into the populated Config but not consulted:
	// tokens received in NEW_TOKEN frames are discarded.
	TokenStore TokenStore

	// ConnectionIDLength is the length, in bytes, of connection IDs this
	// endpoint generates. Zero picks the default.
	ConnectionIDLength int
	// StatelessResetKey, if set, enables stateless resets: a token
	// derived from this key and the connection ID lets this endpoint
	// recognize (and the peer validate) a reset for a connection whose
	// state has been lost.
	StatelessResetKey *StatelessResetKey

	// CongestionControl (see protocol.CongestionAlgorithm) is carried into
	// the populated Config but not consulted: every connection uses BBRv2.
	CongestionControl protocol.CongestionAlgorithm
	// InitialCongestionWindow is the initial congestion window in multiples
	// of the maximum datagram size (32 when zero). MinCongestionWindow is
	// carried into the populated Config but not consulted; BBRv2's floor is
	// a fixed 4 datagrams.
	InitialCongestionWindow uint64
	MinCongestionWindow     uint64

	// AckFrequency is defaulted and carried into the populated Config but
	// not consulted; received-packet tracking always applies
	// protocol.DefaultAckFrequencyPolicy.
	AckFrequency AckFrequencyPolicy
	// KeyUpdatePacketInterval is defaulted and carried into the populated
	// Config but not consulted; 1-RTT keys are rotated after the fixed
	// handshake.KeyUpdateInterval packets of one key phase.
	KeyUpdatePacketInterval uint64

	// EnableDatagrams enables unreliable DATAGRAM frames (RFC 9221).
	EnableDatagrams bool
	// Allow0RTT is handed to the TLS handshake setup. The connection
	// itself sends no 0-RTT packets, and received 0-RTT packets are not
	// decrypted.
	Allow0RTT bool
	// DisablePathMTUDiscovery is carried into the populated Config but not
	// consulted: no path MTU discovery runs, and the packer's datagram
	// budget stays at protocol.MinInitialPacketSize.
	DisablePathMTUDiscovery bool

	initialPacketSize protocol.ByteCount
}

var errInvalidConfig = errors.New("quic: invalid Config")

func validateConfig(config *Config) error {
	if config == nil {
		return nil
	}
	if config.MaxIncomingStreams > 1<<60 || config.MaxIncomingUniStreams > 1<<60 {
		return errInvalidConfig
	}
	return nil
}

// populateConfig fills in defaults for every zero-valued field of a (possibly
// nil) user-supplied Config, returning a fresh copy. The original is never
// mutated.
func populateConfig(config *Config) *Config {
	if config == nil {
		config = &Config{}
	}
	versions := config.Versions
	if len(versions) == 0 {
		versions = protocol.SupportedVersions
	}
	handshakeIdleTimeout := defaultHandshakeTimeout
	if config.HandshakeIdleTimeout != 0 {
		handshakeIdleTimeout = config.HandshakeIdleTimeout
	}
	idleTimeout := time.Duration(defaultIdleTimeout)
	if config.MaxIdleTimeout != 0 {
		idleTimeout = config.MaxIdleTimeout
	}
	initialStreamWindow := uint64(protocol.DefaultInitialMaxStreamData)
	if config.InitialStreamReceiveWindow != 0 {
		initialStreamWindow = config.InitialStreamReceiveWindow
	}
	maxStreamWindow := uint64(protocol.DefaultMaxReceiveStreamFlowControlWindow)
	if config.MaxStreamReceiveWindow != 0 {
		maxStreamWindow = config.MaxStreamReceiveWindow
	}
	initialConnWindow := uint64(protocol.DefaultInitialMaxData)
	if config.InitialConnectionReceiveWindow != 0 {
		initialConnWindow = config.InitialConnectionReceiveWindow
	}
	maxConnWindow := uint64(protocol.DefaultMaxReceiveConnectionFlowControlWindow)
	if config.MaxConnectionReceiveWindow != 0 {
		maxConnWindow = config.MaxConnectionReceiveWindow
	}
	maxIncomingStreams := config.MaxIncomingStreams
	switch {
	case maxIncomingStreams == 0:
		maxIncomingStreams = defaultMaxIncomingStreams
	case maxIncomingStreams < 0:
		maxIncomingStreams = 0
	}
	maxIncomingUniStreams := config.MaxIncomingUniStreams
	switch {
	case maxIncomingUniStreams == 0:
		maxIncomingUniStreams = defaultMaxIncomingUniStreams
	case maxIncomingUniStreams < 0:
		maxIncomingUniStreams = 0
	}
	ackFrequency := config.AckFrequency
	if ackFrequency.AckElicitingThreshold == 0 {
		ackFrequency = protocol.DefaultAckFrequencyPolicy
	}
	keyUpdateInterval := config.KeyUpdatePacketInterval
	if keyUpdateInterval == 0 {
		keyUpdateInterval = defaultKeyUpdatePacketInterval
	}

	return &Config{
		Versions:                              versions,
		HandshakeIdleTimeout:                  handshakeIdleTimeout,
		MaxIdleTimeout:                        idleTimeout,
		KeepAlivePeriod:                       config.KeepAlivePeriod,
		InitialStreamReceiveWindow:            initialStreamWindow,
		MaxStreamReceiveWindow:                maxStreamWindow,
		InitialConnectionReceiveWindow:        initialConnWindow,
		MaxConnectionReceiveWindow:            maxConnWindow,
		AllowConnectionWindowIncrease:         config.AllowConnectionWindowIncrease,
		MaxIncomingStreams:                    maxIncomingStreams,
		MaxIncomingUniStreams:                 maxIncomingUniStreams,
		TokenStore:                            config.TokenStore,
		ConnectionIDLength:                    config.ConnectionIDLength,
		StatelessResetKey:                     config.StatelessResetKey,
		CongestionControl:                     config.CongestionControl,
		InitialCongestionWindow:               config.InitialCongestionWindow,
		MinCongestionWindow:                   config.MinCongestionWindow,
		AckFrequency:                          ackFrequency,
		KeyUpdatePacketInterval:               keyUpdateInterval,
		EnableDatagrams:                       config.EnableDatagrams,
		Allow0RTT:                             config.Allow0RTT,
		DisablePathMTUDiscovery:               config.DisablePathMTUDiscovery,
		initialPacketSize:                     config.initialPacketSize,
	}
}
