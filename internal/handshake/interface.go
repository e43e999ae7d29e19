package handshake

import (
	"crypto/tls"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

// CryptoSetup drives the TLS 1.3 handshake embedded in QUIC and hands out
// the per-level sealers and openers derived from it.
type CryptoSetup interface {
	StartHandshake() error
	Close() error
	HandleMessage(data []byte, level protocol.EncryptionLevel) error

	SetHandshakeConfirmed()
	ConnectionState() ConnectionState

	GetInitialSealer() (LongHeaderSealer, error)
	GetInitialOpener() (LongHeaderOpener, error)
	Get0RTTSealer() (LongHeaderSealer, error)
	Get0RTTOpener() (LongHeaderOpener, error)
	GetHandshakeSealer() (LongHeaderSealer, error)
	GetHandshakeOpener() (LongHeaderOpener, error)
	Get1RTTSealer() (ShortHeaderSealer, error)
	Get1RTTOpener() (ShortHeaderOpener, error)

	GetSessionTicket() ([]byte, error)
}

// handshakeRunner is the connection's side of the crypto setup callbacks.
// Implemented by the connection type, kept minimal and decoupled from the
// TLS-specific machinery above.
type handshakeRunner interface {
	OnReceivedParams(*wire.TransportParameters)
	OnReceivedReadKeys()
	OnHandshakeComplete()
	DropKeys(protocol.EncryptionLevel)
}

// ConnectionState records post-handshake details exposed to applications.
type ConnectionState struct {
	tls.ConnectionState
	Used0RTT bool
}

// ErrKeysDropped is returned by a Get*Sealer/Get*Opener accessor once that
// level's keys have been discarded and will never come back.
var ErrKeysDropped = errKeysDropped{}

type errKeysDropped struct{}

func (errKeysDropped) Error() string { return "handshake: keys were already dropped" }

// ErrKeysNotYetAvailable is returned by a Get*Sealer/Get*Opener accessor
// when that level's keys haven't been derived yet but might be later.
var ErrKeysNotYetAvailable = errKeysNotYetAvailable{}

type errKeysNotYetAvailable struct{}

func (errKeysNotYetAvailable) Error() string { return "handshake: keys not yet available" }
