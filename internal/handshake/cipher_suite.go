package handshake

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/tls"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const aeadNonceLength = 12

type cipherSuite struct {
	ID     uint16
	Hash   crypto.Hash
	KeyLen int
	AEAD   func(key, nonceMask []byte) cipher.AEAD
}

func (s *cipherSuite) IVLen() int { return aeadNonceLength }

func getCipherSuite(id uint16) (*cipherSuite, error) {
	switch id {
	case tls.TLS_AES_128_GCM_SHA256:
		return &cipherSuite{ID: id, Hash: crypto.SHA256, KeyLen: 16, AEAD: aeadAESGCM}, nil
	case tls.TLS_CHACHA20_POLY1305_SHA256:
		return &cipherSuite{ID: id, Hash: crypto.SHA256, KeyLen: 32, AEAD: aeadChaCha20Poly1305}, nil
	case tls.TLS_AES_256_GCM_SHA384:
		return &cipherSuite{ID: id, Hash: crypto.SHA384, KeyLen: 32, AEAD: aeadAESGCM}, nil
	default:
		return nil, fmt.Errorf("handshake: unknown cipher suite: %#x", id)
	}
}

func aeadAESGCM(key, nonceMask []byte) cipher.AEAD {
	a, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	aead, err := cipher.NewGCM(a)
	if err != nil {
		panic(err)
	}
	return &xorNonceAEAD{aead: aead, nonceMask: [aeadNonceLength]byte(nonceMask)}
}

func aeadChaCha20Poly1305(key, nonceMask []byte) cipher.AEAD {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		panic(err)
	}
	return &xorNonceAEAD{aead: aead, nonceMask: [aeadNonceLength]byte(nonceMask)}
}

// xorNonceAEAD implements RFC 9001 Section 5.3's nonce construction: XOR
// the packet number into the low-order bytes of the derived IV to form the
// per-packet nonce.
type xorNonceAEAD struct {
	nonceMask [aeadNonceLength]byte
	aead      cipher.AEAD
}

func (f *xorNonceAEAD) NonceSize() int { return 8 }
func (f *xorNonceAEAD) Overhead() int  { return f.aead.Overhead() }

func (f *xorNonceAEAD) Seal(out, nonce, plaintext, additionalData []byte) []byte {
	var n [aeadNonceLength]byte
	n = f.nonceMask
	for i, b := range nonce {
		n[aeadNonceLength-len(nonce)+i] ^= b
	}
	return f.aead.Seal(out, n[:], plaintext, additionalData)
}

func (f *xorNonceAEAD) Open(out, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	var n [aeadNonceLength]byte
	n = f.nonceMask
	for i, b := range nonce {
		n[aeadNonceLength-len(nonce)+i] ^= b
	}
	return f.aead.Open(out, n[:], ciphertext, additionalData)
}

func packetNumberNonce(pn int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(pn))
	return b
}
