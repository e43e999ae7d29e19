package handshake

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/qerr"
	"github.com/quicframe/quicframe/internal/wire"
	"github.com/quicframe/quicframe/quicvarint"
)

// quicVersionContextKey lets the TLS stack recover the negotiated QUIC
// version from the context passed to QUICConn.Start, for version-aware
// salt/label selection deep inside crypto/tls's QUIC glue.
type quicVersionContextKey struct{}

// QUICVersionContextKey is exported so higher layers building a QUICConfig
// with a custom context can thread the version through unchanged.
var QUICVersionContextKey = &quicVersionContextKey{}

const sessionStateRevision = 1

// zeroRTTRetentionAfterHandshake is how long the server keeps an installed
// 0-RTT opener around after the handshake completes, to tolerate reordered
// 0-RTT packets arriving after the handshake has already finished. Per the
// open question resolved in the design notes, spurious 0-RTT received
// after this window is simply dropped rather than queued.
const zeroRTTRetentionAfterHandshake = 200 * time.Millisecond

type cryptoSetup struct {
	tlsConf *tls.Config
	conn    *tls.QUICConn

	version protocol.Version

	ourParams  *wire.TransportParameters
	peerParams *wire.TransportParameters

	runner handshakeRunner

	zeroRTTParameters     *wire.TransportParameters
	zeroRTTParametersChan chan<- *wire.TransportParameters
	allow0RTT             bool

	logger *slog.Logger

	perspective protocol.Perspective

	mu sync.Mutex

	handshakeCompleteTime time.Time

	zeroRTTOpener LongHeaderOpener
	zeroRTTSealer LongHeaderSealer

	initialStream io.Writer
	initialOpener LongHeaderOpener
	initialSealer LongHeaderSealer

	handshakeStream io.Writer
	handshakeOpener LongHeaderOpener
	handshakeSealer LongHeaderSealer

	used0RTT bool

	oneRTTStream  io.Writer
	aead          *updatableAEAD
	has1RTTSealer bool
	has1RTTOpener bool
}

var _ CryptoSetup = &cryptoSetup{}

// NewCryptoSetupClient builds the client side of the handshake driver. The
// returned channel receives the 0-RTT transport parameters once the
// ClientHello has been written, or nil if 0-RTT isn't being attempted.
func NewCryptoSetupClient(
	initialStream, handshakeStream, oneRTTStream io.Writer,
	connID protocol.ConnectionID,
	tp *wire.TransportParameters,
	runner handshakeRunner,
	tlsConf *tls.Config,
	enable0RTT bool,
	logger *slog.Logger,
	version protocol.Version,
) (CryptoSetup, <-chan *wire.TransportParameters) {
	cs, zeroRTTChan := newCryptoSetup(initialStream, handshakeStream, oneRTTStream, connID, tp, runner, logger, protocol.PerspectiveClient, version)

	tlsConf = tlsConf.Clone()
	tlsConf.MinVersion = tls.VersionTLS13
	if tlsConf.ClientSessionCache != nil {
		orig := tlsConf.ClientSessionCache
		tlsConf.ClientSessionCache = &clientSessionCache{
			wrapped: orig,
			getData: cs.marshalDataForSessionState,
			setData: cs.handleDataFromSessionState,
		}
	}
	cs.tlsConf = tlsConf
	cs.conn = tls.QUICClient(&tls.QUICConfig{TLSConfig: cs.tlsConf})
	cs.conn.SetTransportParameters(cs.ourParams.Marshal(protocol.PerspectiveClient))
	return cs, zeroRTTChan
}

// NewCryptoSetupServer builds the server side of the handshake driver.
func NewCryptoSetupServer(
	initialStream, handshakeStream, oneRTTStream io.Writer,
	connID protocol.ConnectionID,
	tp *wire.TransportParameters,
	runner handshakeRunner,
	tlsConf *tls.Config,
	allow0RTT bool,
	logger *slog.Logger,
	version protocol.Version,
) CryptoSetup {
	cs, _ := newCryptoSetup(initialStream, handshakeStream, oneRTTStream, connID, tp, runner, logger, protocol.PerspectiveServer, version)
	cs.allow0RTT = allow0RTT

	tlsConf = tlsConf.Clone()
	tlsConf.MinVersion = tls.VersionTLS13
	origWrap := tlsConf.WrapSession
	tlsConf.WrapSession = func(state tls.ConnectionState, sess *tls.SessionState) ([]byte, error) {
		if sess.EarlyData {
			sess.Extra = append(sess.Extra, (&sessionTicket{Parameters: tp}).Marshal())
		}
		if origWrap != nil {
			return origWrap(state, sess)
		}
		return tlsConf.EncryptTicket(state, sess)
	}
	origUnwrap := tlsConf.UnwrapSession
	var unwrapCount int
	tlsConf.UnwrapSession = func(identity []byte, state tls.ConnectionState) (*tls.SessionState, error) {
		unwrapCount++
		var sess *tls.SessionState
		var err error
		if origUnwrap != nil {
			sess, err = origUnwrap(identity, state)
		} else {
			sess, err = tlsConf.DecryptTicket(identity, state)
		}
		if err != nil || sess == nil {
			return nil, err
		}
		if sess.EarlyData && unwrapCount == 1 {
			sess.EarlyData = cs.accept0RTT(sess.Extra)
		} else {
			sess.EarlyData = false
		}
		return sess, nil
	}
	cs.tlsConf = tlsConf
	cs.conn = tls.QUICServer(&tls.QUICConfig{TLSConfig: cs.tlsConf})
	return cs
}

func newCryptoSetup(
	initialStream, handshakeStream, oneRTTStream io.Writer,
	connID protocol.ConnectionID,
	tp *wire.TransportParameters,
	runner handshakeRunner,
	logger *slog.Logger,
	pers protocol.Perspective,
	version protocol.Version,
) (*cryptoSetup, <-chan *wire.TransportParameters) {
	initialSealer, initialOpener, err := NewInitialAEAD(connID, pers, version)
	if err != nil {
		// The caller always validates the version before getting here; an
		// error at this point means our own version table is incomplete.
		panic(fmt.Sprintf("handshake: %s", err))
	}
	ch := make(chan *wire.TransportParameters, 1)
	return &cryptoSetup{
		initialStream:         initialStream,
		initialSealer:         initialSealer,
		initialOpener:         initialOpener,
		handshakeStream:       handshakeStream,
		oneRTTStream:          oneRTTStream,
		aead:                  newUpdatableAEAD(logger, version),
		runner:                runner,
		ourParams:             tp,
		logger:                logger,
		perspective:           pers,
		zeroRTTParametersChan: ch,
		version:               version,
	}, ch
}

func (h *cryptoSetup) StartHandshake() error {
	ctx := context.WithValue(context.Background(), QUICVersionContextKey, h.version)
	if err := h.conn.Start(ctx); err != nil {
		return wrapHandshakeError(err)
	}
	if err := h.drainEvents(); err != nil {
		return err
	}
	if h.perspective == protocol.PerspectiveClient {
		if h.zeroRTTSealer != nil && h.zeroRTTParameters != nil {
			h.zeroRTTParametersChan <- h.zeroRTTParameters
		} else {
			h.zeroRTTParametersChan <- nil
		}
	}
	return nil
}

func (h *cryptoSetup) Close() error { return h.conn.Close() }

func (h *cryptoSetup) HandleMessage(data []byte, level protocol.EncryptionLevel) error {
	if err := h.conn.HandleData(toTLSLevel(level), data); err != nil {
		return wrapHandshakeError(err)
	}
	return h.drainEvents()
}

func (h *cryptoSetup) drainEvents() error {
	for {
		ev := h.conn.NextEvent()
		if ev.Kind == tls.QUICNoEvent {
			return nil
		}
		if err := h.handleEvent(ev); err != nil {
			return wrapHandshakeError(err)
		}
	}
}

func (h *cryptoSetup) handleEvent(ev tls.QUICEvent) error {
	switch ev.Kind {
	case tls.QUICSetReadSecret:
		return h.setReadKey(ev.Level, ev.Suite, ev.Data)
	case tls.QUICSetWriteSecret:
		return h.setWriteKey(ev.Level, ev.Suite, ev.Data)
	case tls.QUICTransportParameters:
		return h.handleTransportParameters(ev.Data)
	case tls.QUICTransportParametersRequired:
		h.conn.SetTransportParameters(h.ourParams.Marshal(h.perspective))
		return nil
	case tls.QUICRejectedEarlyData:
		h.rejected0RTT()
		return nil
	case tls.QUICWriteData:
		return h.writeRecord(ev.Level, ev.Data)
	case tls.QUICHandshakeDone:
		h.handshakeCompleteTime = time.Now()
		h.runner.OnHandshakeComplete()
		return nil
	default:
		return nil
	}
}

func (h *cryptoSetup) handleTransportParameters(data []byte) error {
	var tp wire.TransportParameters
	if err := tp.Unmarshal(data, h.perspective.Opposite()); err != nil {
		return err
	}
	h.peerParams = &tp
	h.runner.OnReceivedParams(h.peerParams)
	return nil
}

func (h *cryptoSetup) setReadKey(level tls.QUICEncryptionLevel, suiteID uint16, secret []byte) error {
	suite, err := getCipherSuite(suiteID)
	if err != nil {
		return err
	}
	encLevel := fromTLSLevel(level)
	labels, _ := protocol.LabelsForVersion(h.version)
	h.mu.Lock()
	switch encLevel {
	case protocol.Encryption0RTT:
		h.zeroRTTOpener = newOpener(createAEAD(suite, secret, labels), createHeaderProtector(suite, secret, labels))
		h.used0RTT = true
	case protocol.EncryptionHandshake:
		h.handshakeOpener = newOpener(createAEAD(suite, secret, labels), createHeaderProtector(suite, secret, labels))
	case protocol.Encryption1RTT:
		h.aead.SetReadKey(suite, secret)
		h.has1RTTOpener = true
	}
	h.mu.Unlock()
	h.runner.OnReceivedReadKeys()
	return nil
}

func (h *cryptoSetup) setWriteKey(level tls.QUICEncryptionLevel, suiteID uint16, secret []byte) error {
	suite, err := getCipherSuite(suiteID)
	if err != nil {
		return err
	}
	encLevel := fromTLSLevel(level)
	labels, _ := protocol.LabelsForVersion(h.version)
	h.mu.Lock()
	defer h.mu.Unlock()
	switch encLevel {
	case protocol.Encryption0RTT:
		h.zeroRTTSealer = newSealer(createAEAD(suite, secret, labels), createHeaderProtector(suite, secret, labels))
	case protocol.EncryptionHandshake:
		h.handshakeSealer = newSealer(createAEAD(suite, secret, labels), createHeaderProtector(suite, secret, labels))
		if h.zeroRTTSealer != nil {
			h.used0RTT = true
		}
	case protocol.Encryption1RTT:
		h.aead.SetWriteKey(suite, secret)
		h.has1RTTSealer = true
		if h.zeroRTTSealer != nil {
			h.zeroRTTSealer = nil
			h.logger.Debug("dropping 0-RTT keys, 1-RTT write keys installed")
		}
	}
	return nil
}

func (h *cryptoSetup) writeRecord(level tls.QUICEncryptionLevel, p []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var w io.Writer
	switch level {
	case tls.QUICEncryptionLevelInitial:
		w = h.initialStream
	case tls.QUICEncryptionLevelHandshake:
		w = h.handshakeStream
	case tls.QUICEncryptionLevelApplication:
		w = h.oneRTTStream
	default:
		return fmt.Errorf("handshake: unexpected write level %v", level)
	}
	_, err := w.Write(p)
	return err
}

func (h *cryptoSetup) accept0RTT(extra [][]byte) bool {
	for _, e := range extra {
		var t sessionTicket
		if err := t.Unmarshal(e); err != nil {
			continue
		}
		if !h.ourParams.ValidFor0RTT(t.Parameters) {
			h.logger.Debug("rejecting 0-RTT: transport parameters changed")
			return false
		}
		if !h.allow0RTT {
			return false
		}
		return true
	}
	return false
}

func (h *cryptoSetup) rejected0RTT() {
	h.mu.Lock()
	had := h.zeroRTTSealer != nil
	h.zeroRTTSealer = nil
	h.mu.Unlock()
	if had {
		h.runner.DropKeys(protocol.Encryption0RTT)
	}
}

func (h *cryptoSetup) marshalDataForSessionState() []byte {
	b := make([]byte, 0, 64)
	b = quicvarint.Append(b, sessionStateRevision)
	if h.peerParams == nil {
		return b
	}
	return append(b, (&sessionTicket{Parameters: h.peerParams}).Marshal()...)
}

func (h *cryptoSetup) handleDataFromSessionState(data []byte) {
	r := bytes.NewReader(data)
	rev, err := quicvarint.Read(r)
	if err != nil || rev != sessionStateRevision {
		return
	}
	rest := make([]byte, r.Len())
	if _, err := io.ReadFull(r, rest); err != nil {
		return
	}
	var t sessionTicket
	if err := t.Unmarshal(rest); err != nil {
		return
	}
	h.zeroRTTParameters = t.Parameters
}

// GetSessionTicket issues a single session ticket for 0-RTT resumption.
// crypto/tls only supports generating one ticket per call, mirroring the
// constraint on the server side of the handshake driver this is grounded on.
func (h *cryptoSetup) GetSessionTicket() ([]byte, error) {
	if h.tlsConf.SessionTicketsDisabled {
		return nil, nil
	}
	if err := h.conn.SendSessionTicket(tls.QUICSessionTicketOptions{EarlyData: h.allow0RTT}); err != nil {
		return nil, err
	}
	ev := h.conn.NextEvent()
	if ev.Kind != tls.QUICWriteData || ev.Level != tls.QUICEncryptionLevelApplication {
		return nil, errors.New("handshake: expected a session ticket write event")
	}
	if next := h.conn.NextEvent(); next.Kind != tls.QUICNoEvent {
		return nil, errors.New("handshake: unexpected event after session ticket")
	}
	return ev.Data, nil
}

func (h *cryptoSetup) SetHandshakeConfirmed() {
	h.mu.Lock()
	dropped := h.handshakeOpener != nil
	h.handshakeOpener = nil
	h.handshakeSealer = nil
	h.mu.Unlock()
	if dropped {
		h.runner.DropKeys(protocol.EncryptionHandshake)
	}
}

func (h *cryptoSetup) GetInitialSealer() (LongHeaderSealer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialSealer == nil {
		return nil, ErrKeysDropped
	}
	return h.initialSealer, nil
}

func (h *cryptoSetup) GetInitialOpener() (LongHeaderOpener, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialOpener == nil {
		return nil, ErrKeysDropped
	}
	return h.initialOpener, nil
}

func (h *cryptoSetup) Get0RTTSealer() (LongHeaderSealer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.zeroRTTSealer == nil {
		return nil, ErrKeysDropped
	}
	return h.zeroRTTSealer, nil
}

func (h *cryptoSetup) Get0RTTOpener() (LongHeaderOpener, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.zeroRTTOpener == nil {
		if h.initialOpener != nil {
			return nil, ErrKeysNotYetAvailable
		}
		return nil, ErrKeysDropped
	}
	return h.zeroRTTOpener, nil
}

func (h *cryptoSetup) GetHandshakeSealer() (LongHeaderSealer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handshakeSealer == nil {
		if h.initialSealer == nil {
			return nil, ErrKeysDropped
		}
		return nil, ErrKeysNotYetAvailable
	}
	return h.handshakeSealer, nil
}

func (h *cryptoSetup) GetHandshakeOpener() (LongHeaderOpener, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handshakeOpener == nil {
		if h.initialOpener == nil {
			return nil, ErrKeysDropped
		}
		return nil, ErrKeysNotYetAvailable
	}
	return h.handshakeOpener, nil
}

func (h *cryptoSetup) Get1RTTSealer() (ShortHeaderSealer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.has1RTTSealer {
		return nil, ErrKeysNotYetAvailable
	}
	return h.aead, nil
}

// Get1RTTOpener additionally drops a lingering 0-RTT opener once it has
// outlived zeroRTTRetentionAfterHandshake: late 0-RTT datagrams arriving
// after that window are discarded outright rather than queued.
func (h *cryptoSetup) Get1RTTOpener() (ShortHeaderOpener, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.zeroRTTOpener != nil && !h.handshakeCompleteTime.IsZero() && time.Since(h.handshakeCompleteTime) > zeroRTTRetentionAfterHandshake {
		h.zeroRTTOpener = nil
	}
	if !h.has1RTTOpener {
		return nil, ErrKeysNotYetAvailable
	}
	return h.aead, nil
}

func (h *cryptoSetup) ConnectionState() ConnectionState {
	return ConnectionState{ConnectionState: h.conn.ConnectionState(), Used0RTT: h.used0RTT}
}

func toTLSLevel(level protocol.EncryptionLevel) tls.QUICEncryptionLevel {
	switch level {
	case protocol.EncryptionInitial:
		return tls.QUICEncryptionLevelInitial
	case protocol.EncryptionHandshake:
		return tls.QUICEncryptionLevelHandshake
	case protocol.Encryption0RTT:
		return tls.QUICEncryptionLevelEarly
	case protocol.Encryption1RTT:
		return tls.QUICEncryptionLevelApplication
	default:
		panic("handshake: unknown encryption level")
	}
}

func fromTLSLevel(level tls.QUICEncryptionLevel) protocol.EncryptionLevel {
	switch level {
	case tls.QUICEncryptionLevelInitial:
		return protocol.EncryptionInitial
	case tls.QUICEncryptionLevelHandshake:
		return protocol.EncryptionHandshake
	case tls.QUICEncryptionLevelEarly:
		return protocol.Encryption0RTT
	case tls.QUICEncryptionLevelApplication:
		return protocol.Encryption1RTT
	default:
		panic("handshake: unknown TLS QUIC encryption level")
	}
}

func wrapHandshakeError(err error) error {
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return qerr.NewLocalCryptoError(uint8(alertErr), err.Error())
	}
	return &qerr.TransportError{ErrorCode: qerr.InternalError, ErrorMessage: err.Error()}
}
