package ackhandler

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"

	"github.com/quicframe/quicframe/internal/protocol"
)

// packetNumberGenerator hands out the next packet number to use in a space,
// occasionally skipping one. It never skips two numbers in a row.
type packetNumberGenerator struct {
	averagePeriod protocol.PacketNumber

	next     protocol.PacketNumber
	nextSkip protocol.PacketNumber
}

func newPacketNumberGenerator(initial protocol.PacketNumber, averagePeriod protocol.PacketNumber) *packetNumberGenerator {
	g := &packetNumberGenerator{
		next:          initial,
		averagePeriod: averagePeriod,
	}
	g.generateNewSkip()
	return g
}

// Peek returns the next packet number to use without consuming it.
func (g *packetNumberGenerator) Peek() protocol.PacketNumber {
	return g.next
}

// Pop consumes and returns the next packet number, skipping ahead and
// generating a new skip target if this one was reached.
func (g *packetNumberGenerator) Pop() protocol.PacketNumber {
	next := g.next
	g.next++
	if g.next == g.nextSkip {
		g.next++
		g.generateNewSkip()
	}
	return next
}

func (g *packetNumberGenerator) generateNewSkip() {
	g.nextSkip = g.next + 1 + protocol.PacketNumber(randomPeriod(int64(g.averagePeriod)))
}

func randomPeriod(average int64) int64 {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return average
	}
	r := mrand.New(mrand.NewSource(int64(binary.BigEndian.Uint64(seed[:]))))
	return r.Int63n(2*average) + 1
}
