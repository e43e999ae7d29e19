package protocol

import (
	"bytes"
	"crypto/rand"
	"fmt"
)

// A ConnectionID is a QUIC connection ID, an opaque byte string of at most
// MaxCIDLen bytes.
type ConnectionID []byte

// StatelessResetToken is the 16-byte token a stateless reset packet's
// trailing bytes are compared against to recognize a reset for a
// connection whose state has been lost.
type StatelessResetToken [16]byte

// GenerateConnectionID generates a connection ID of the given length using
// cryptographic randomness.
func GenerateConnectionID(length int) (ConnectionID, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return ConnectionID(b), nil
}

// GenerateConnectionIDForInitial generates a connection ID for use as the
// destination connection ID on the very first Initial packet. Its length is
// chosen randomly in [MinConnectionIDLenInitial, MaxCIDLen].
func GenerateConnectionIDForInitial() (ConnectionID, error) {
	var r [1]byte
	if _, err := rand.Read(r[:]); err != nil {
		return nil, err
	}
	length := MinConnectionIDLenInitial + int(r[0])%(MaxCIDLen-MinConnectionIDLenInitial+1)
	return GenerateConnectionID(length)
}

// Equal reports whether two connection IDs have the same bytes.
func (c ConnectionID) Equal(other ConnectionID) bool {
	return bytes.Equal(c, other)
}

// Len returns the length of the connection ID in bytes.
func (c ConnectionID) Len() int { return len(c) }

// Bytes returns the raw bytes of the connection ID.
func (c ConnectionID) Bytes() []byte { return []byte(c) }

func (c ConnectionID) String() string {
	if c.Len() == 0 {
		return "(empty)"
	}
	return fmt.Sprintf("%x", c.Bytes())
}

// A ConnectionIDGenerator issues new connection IDs for a local endpoint.
// quic-go uses the analogous abstraction to let callers plug in
// connection-ID based routing (e.g. to encode routing metadata in the CID);
// the default implementation below just draws random bytes.
type ConnectionIDGenerator interface {
	GenerateConnectionID() (ConnectionID, error)
	ConnectionIDLen() int
}

// DefaultConnectionIDGenerator generates random connection IDs of a fixed length.
type DefaultConnectionIDGenerator struct {
	ConnLen int
}

func (g *DefaultConnectionIDGenerator) GenerateConnectionID() (ConnectionID, error) {
	return GenerateConnectionID(g.ConnLen)
}

func (g *DefaultConnectionIDGenerator) ConnectionIDLen() int { return g.ConnLen }
