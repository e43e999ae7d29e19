package handshake

import (
	"crypto"
	"crypto/tls"
	"fmt"

	"github.com/quicframe/quicframe/internal/protocol"
)

var initialSuite = &cipherSuite{ID: tls.TLS_AES_128_GCM_SHA256, Hash: crypto.SHA256, KeyLen: 16, AEAD: aeadAESGCM}

// NewInitialAEAD derives the Initial sealer and opener for a connection,
// keyed off the version's fixed salt (RFC 9001 Section 5.2, RFC 9369
// Section 3.3.1). Both sides derive identical secrets from the client's
// original destination connection ID, with client/server swapped as
// appropriate for the local perspective.
func NewInitialAEAD(connID protocol.ConnectionID, pers protocol.Perspective, v protocol.Version) (LongHeaderSealer, LongHeaderOpener, error) {
	salt, ok := protocol.InitialSalt(v)
	if !ok {
		return nil, nil, fmt.Errorf("handshake: no Initial salt for version %s", v)
	}
	labels, ok := protocol.LabelsForVersion(v)
	if !ok {
		return nil, nil, fmt.Errorf("handshake: no HKDF labels for version %s", v)
	}
	initialSecret := hkdfExtract(crypto.SHA256, connID.Bytes(), salt)
	clientSecret := hkdfExpandLabel(crypto.SHA256, initialSecret, nil, "client in", crypto.SHA256.Size())
	serverSecret := hkdfExpandLabel(crypto.SHA256, initialSecret, nil, "server in", crypto.SHA256.Size())

	var mySecret, otherSecret []byte
	if pers == protocol.PerspectiveClient {
		mySecret, otherSecret = clientSecret, serverSecret
	} else {
		mySecret, otherSecret = serverSecret, clientSecret
	}

	sealer := newSealer(createAEAD(initialSuite, mySecret, labels), createHeaderProtector(initialSuite, mySecret, labels))
	opener := newOpener(createAEAD(initialSuite, otherSecret, labels), createHeaderProtector(initialSuite, otherSecret, labels))
	return sealer, opener, nil
}
