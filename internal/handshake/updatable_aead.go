package handshake

import (
	"crypto"
	"log/slog"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/qerr"
)

// KeyUpdateInterval is the number of packets sent in a key phase before a
// key update is initiated.
const KeyUpdateInterval = 1_000_000

// ShortHeaderSealer protects 1-RTT packets, rotating keys across phases.
type ShortHeaderSealer interface {
	Seal(dst, src []byte, pn protocol.PacketNumber, ad []byte) []byte
	EncryptHeader(sample []byte, firstByte *byte, pnBytes []byte)
	Overhead() int
	KeyPhase() protocol.KeyPhaseBit
}

// ShortHeaderOpener removes protection from 1-RTT packets.
type ShortHeaderOpener interface {
	Open(dst, src []byte, pn protocol.PacketNumber, kp protocol.KeyPhaseBit, ad []byte) ([]byte, error)
	DecryptHeader(sample []byte, firstByte *byte, pnBytes []byte)
}

// updatableAEAD is the AppData sealer/opener. It tracks the current key
// phase and the one-phase-ahead keys needed to roll forward without a
// round trip.
type updatableAEAD struct {
	suite   *cipherSuite
	labels  protocol.HKDFLabels
	logger  *slog.Logger

	keyPhase protocol.KeyPhaseBit

	sendAEAD, rcvAEAD         *sealOpen
	nextSendAEAD, nextRcvAEAD *sealOpen

	nextSendSecret, nextRcvSecret []byte

	numSentWithCurrentPhase uint64
	firstSentInNewPhase     protocol.PacketNumber
	pendingVerification     bool

	highestRcvdPN protocol.PacketNumber
}

type sealOpen struct {
	seal *sealer
	open *opener
}

func newUpdatableAEAD(logger *slog.Logger, version protocol.Version) *updatableAEAD {
	labels, _ := protocol.LabelsForVersion(version)
	return &updatableAEAD{
		labels:              labels,
		logger:              logger,
		firstSentInNewPhase: protocol.InvalidPacketNumber,
		highestRcvdPN:       protocol.InvalidPacketNumber,
	}
}

// SetReadKey installs the initial AppData read key and precomputes the
// next phase's keys so a peer-initiated key update can be served
// immediately.
func (a *updatableAEAD) SetReadKey(suite *cipherSuite, trafficSecret []byte) {
	a.suite = suite
	a.rcvAEAD = &sealOpen{open: newOpener(createAEAD(suite, trafficSecret, a.labels), createHeaderProtector(suite, trafficSecret, a.labels))}
	a.nextRcvSecret = a.nextTrafficSecret(suite.Hash, trafficSecret)
	a.nextRcvAEAD = &sealOpen{open: newOpener(createAEAD(suite, a.nextRcvSecret, a.labels), createHeaderProtector(suite, a.nextRcvSecret, a.labels))}
}

// SetWriteKey installs the initial AppData write key and its successor.
func (a *updatableAEAD) SetWriteKey(suite *cipherSuite, trafficSecret []byte) {
	a.suite = suite
	a.sendAEAD = &sealOpen{seal: newSealer(createAEAD(suite, trafficSecret, a.labels), createHeaderProtector(suite, trafficSecret, a.labels))}
	a.nextSendSecret = a.nextTrafficSecret(suite.Hash, trafficSecret)
	a.nextSendAEAD = &sealOpen{seal: newSealer(createAEAD(suite, a.nextSendSecret, a.labels), createHeaderProtector(suite, a.nextSendSecret, a.labels))}
}

func (a *updatableAEAD) nextTrafficSecret(hash crypto.Hash, secret []byte) []byte {
	return hkdfExpandLabel(hash, secret, nil, a.labels.KeyUpdate, hash.Size())
}

func (a *updatableAEAD) KeyPhase() protocol.KeyPhaseBit { return a.keyPhase }

// Seal encrypts with the current send phase, tracking how many packets
// have been sent in it so a local key update can be initiated.
func (a *updatableAEAD) Seal(dst, src []byte, pn protocol.PacketNumber, ad []byte) []byte {
	out := a.sendAEAD.seal.Seal(dst, src, pn, ad)
	a.numSentWithCurrentPhase++
	if a.firstSentInNewPhase == protocol.InvalidPacketNumber {
		a.firstSentInNewPhase = pn
	}
	if !a.pendingVerification && a.numSentWithCurrentPhase > KeyUpdateInterval {
		a.initiateKeyUpdate()
	}
	return out
}

func (a *updatableAEAD) EncryptHeader(sample []byte, firstByte *byte, pnBytes []byte) {
	a.sendAEAD.seal.EncryptHeader(sample, firstByte, pnBytes)
}

func (a *updatableAEAD) Overhead() int { return a.sendAEAD.seal.Overhead() }

// Open decrypts an AppData packet. If kp disagrees with our current
// phase we're either behind (the peer rolled forward, so we decrypt
// with the already-derived next-phase keys and, on success, roll our
// own state forward) or looking at a stale retransmission from the
// previous phase, which is rejected.
func (a *updatableAEAD) Open(dst, src []byte, pn protocol.PacketNumber, kp protocol.KeyPhaseBit, ad []byte) ([]byte, error) {
	opn := a.rcvAEAD.open
	rollingForward := kp != a.keyPhase
	if rollingForward {
		opn = a.nextRcvAEAD.open
	}
	dec, err := opn.Open(dst, src, pn, ad)
	if err != nil {
		return nil, err
	}
	if pn > a.highestRcvdPN {
		a.highestRcvdPN = pn
	}
	if rollingForward {
		a.rollReceivedKeys()
	}
	return dec, nil
}

func (a *updatableAEAD) DecryptHeader(sample []byte, firstByte *byte, pnBytes []byte) {
	a.rcvAEAD.open.DecryptHeader(sample, firstByte, pnBytes)
}

func (a *updatableAEAD) initiateKeyUpdate() {
	a.logger.Debug("initiating key update", "phase", a.keyPhase)
	a.pendingVerification = true
	a.rollSendKeys()
}

func (a *updatableAEAD) rollSendKeys() {
	a.sendAEAD = a.nextSendAEAD
	a.nextSendSecret = a.nextTrafficSecret(a.suite.Hash, a.nextSendSecret)
	a.nextSendAEAD = &sealOpen{seal: newSealer(createAEAD(a.suite, a.nextSendSecret, a.labels), createHeaderProtector(a.suite, a.nextSendSecret, a.labels))}
	a.keyPhase = !a.keyPhase
	a.numSentWithCurrentPhase = 0
	a.firstSentInNewPhase = protocol.InvalidPacketNumber
}

func (a *updatableAEAD) rollReceivedKeys() {
	a.rcvAEAD = a.nextRcvAEAD
	a.nextRcvSecret = a.nextTrafficSecret(a.suite.Hash, a.nextRcvSecret)
	a.nextRcvAEAD = &sealOpen{open: newOpener(createAEAD(a.suite, a.nextRcvSecret, a.labels), createHeaderProtector(a.suite, a.nextRcvSecret, a.labels))}
	a.keyPhase = !a.keyPhase
}

// OnAckReceived observes an ack covering ackedPN and marks the pending key
// update as verified once ackedPN reaches firstSentInNewPhase. It always
// returns nil; the key phase the peer's ack implies is not checked.
func (a *updatableAEAD) OnAckReceived(ackedPN protocol.PacketNumber) error {
	if !a.pendingVerification || ackedPN < a.firstSentInNewPhase {
		return nil
	}
	a.pendingVerification = false
	return nil
}

// VerifyKeyUpdateNotTooSoon rejects a peer-initiated key update that
// arrives before our own pending update has been verified, which would
// otherwise desynchronize phase parity.
func (a *updatableAEAD) VerifyKeyUpdateNotTooSoon() error {
	if a.pendingVerification {
		return &qerr.TransportError{ErrorCode: qerr.ProtocolViolation, ErrorMessage: "key update received while previous update unverified"}
	}
	return nil
}
