package handshake

import (
	"crypto"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

// hkdfExpandLabel HKDF-expands a label as defined in RFC 8446 Section 7.1.
// QUIC reuses TLS 1.3's key schedule machinery wholesale for its own
// traffic secrets (RFC 9001 Section 5).
func hkdfExpandLabel(hash crypto.Hash, secret, context []byte, label string, length int) []byte {
	b := make([]byte, 3, 3+6+len(label)+1+len(context))
	binary.BigEndian.PutUint16(b, uint16(length))
	b[2] = uint8(6 + len(label))
	b = append(b, []byte("tls13 ")...)
	b = append(b, []byte(label)...)
	b = b[:3+6+len(label)+1]
	b[3+6+len(label)] = uint8(len(context))
	b = append(b, context...)

	out := make([]byte, length)
	if _, err := hkdf.Expand(hash.New, secret, string(b)).Read(out); err != nil {
		panic(fmt.Errorf("handshake: HKDF-Expand-Label invocation failed unexpectedly: %w", err))
	}
	return out
}

func hkdfExtract(hash crypto.Hash, secret, salt []byte) []byte {
	return hkdf.Extract(hash.New, secret, salt)
}
