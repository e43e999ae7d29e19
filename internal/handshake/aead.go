package handshake

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/quicframe/quicframe/internal/protocol"
)

// ErrDecryptionFailed is returned by Open on any AEAD failure. This is
// never connection-fatal on its own: a per-packet decrypt failure just
// drops that packet.
var ErrDecryptionFailed = errors.New("handshake: decryption failed")

// LongHeaderSealer protects Initial, Handshake, and 0-RTT packets.
type LongHeaderSealer interface {
	Seal(dst, src []byte, pn protocol.PacketNumber, associatedData []byte) []byte
	EncryptHeader(sample []byte, firstByte *byte, pnBytes []byte)
	Overhead() int
}

// LongHeaderOpener removes protection from Initial, Handshake, and 0-RTT packets.
type LongHeaderOpener interface {
	Open(dst, src []byte, pn protocol.PacketNumber, associatedData []byte) ([]byte, error)
	DecryptHeader(sample []byte, firstByte *byte, pnBytes []byte)
}

type sealer struct {
	aead        cipher.AEAD
	hpEncrypter cipher.Block
	hpMask      []byte
}

func newSealer(aead cipher.AEAD, hp cipher.Block) *sealer {
	return &sealer{aead: aead, hpEncrypter: hp, hpMask: make([]byte, hp.BlockSize())}
}

func (s *sealer) Seal(dst, src []byte, pn protocol.PacketNumber, ad []byte) []byte {
	return s.aead.Seal(dst, packetNumberNonce(int64(pn)), src, ad)
}

// EncryptHeader applies header protection per RFC 9001 Section 5.4: sample
// 16 bytes of ciphertext, run the block cipher over the sample to produce
// a 5-byte mask, XOR the low bits of the first byte and the packet-number
// field with it.
func (s *sealer) EncryptHeader(sample []byte, firstByte *byte, pnBytes []byte) {
	if len(sample) != s.hpEncrypter.BlockSize() {
		panic("handshake: invalid header protection sample size")
	}
	s.hpEncrypter.Encrypt(s.hpMask, sample)
	if *firstByte&0x80 > 0 { // long header: 4 bits of the first byte are protected
		*firstByte ^= s.hpMask[0] & 0xf
	} else {
		*firstByte ^= s.hpMask[0] & 0x1f
	}
	for i := range pnBytes {
		pnBytes[i] ^= s.hpMask[i+1]
	}
}

func (s *sealer) Overhead() int { return s.aead.Overhead() }

type opener struct {
	aead        cipher.AEAD
	hpDecrypter cipher.Block
	hpMask      []byte
}

func newOpener(aead cipher.AEAD, hp cipher.Block) *opener {
	return &opener{aead: aead, hpDecrypter: hp, hpMask: make([]byte, hp.BlockSize())}
}

func (o *opener) Open(dst, src []byte, pn protocol.PacketNumber, ad []byte) ([]byte, error) {
	dec, err := o.aead.Open(dst, packetNumberNonce(int64(pn)), src, ad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return dec, nil
}

// DecryptHeader reverses EncryptHeader; header protection is an involution
// given the same sample.
func (o *opener) DecryptHeader(sample []byte, firstByte *byte, pnBytes []byte) {
	if len(sample) != o.hpDecrypter.BlockSize() {
		panic("handshake: invalid header protection sample size")
	}
	o.hpDecrypter.Encrypt(o.hpMask, sample)
	if *firstByte&0x80 > 0 {
		*firstByte ^= o.hpMask[0] & 0xf
	} else {
		*firstByte ^= o.hpMask[0] & 0x1f
	}
	for i := range pnBytes {
		pnBytes[i] ^= o.hpMask[i+1]
	}
}

func createAEAD(suite *cipherSuite, trafficSecret []byte, labels protocol.HKDFLabels) cipher.AEAD {
	key := hkdfExpandLabel(suite.Hash, trafficSecret, nil, labels.Key, suite.KeyLen)
	iv := hkdfExpandLabel(suite.Hash, trafficSecret, nil, labels.IV, suite.IVLen())
	return suite.AEAD(key, iv)
}

func createHeaderProtector(suite *cipherSuite, trafficSecret []byte, labels protocol.HKDFLabels) cipher.Block {
	hpKey := hkdfExpandLabel(suite.Hash, trafficSecret, nil, labels.HP, suite.KeyLen)
	hp, err := aes.NewCipher(hpKey)
	if err != nil {
		panic(err)
	}
	return hp
}
