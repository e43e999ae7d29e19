package quic

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/qerr"
	"github.com/quicframe/quicframe/internal/wire"
)

// defaultRetireCIDGracePeriod is how long a connection ID we've been told to
// retire is kept reachable in the packet-handler map, to catch packets
// already in flight when the peer's RETIRE_CONNECTION_ID arrived.
const defaultRetireCIDGracePeriod = 5 * time.Second

// issuedConnID stores what we know about a connection ID we handed to the peer.
type issuedConnID struct {
	SequenceNumber      uint64
	ConnectionID        protocol.ConnectionID
	StatelessResetToken protocol.StatelessResetToken
	IsActive            bool
	RetireTime          time.Time
}

// connIDGenerator issues and retires the local connection IDs a connection
// hands out to its peer via NEW_CONNECTION_ID/RETIRE_CONNECTION_ID frames.
type connIDGenerator struct {
	mutex sync.Mutex

	currentSeqNum uint64
	issuedCIDs    map[uint64]*issuedConnID
	activeCount   int

	connIDLimit uint64

	newConnectionIDFunc        func() (protocol.ConnectionID, error)
	newStatelessResetTokenFunc func(protocol.ConnectionID) protocol.StatelessResetToken

	queueControlFrame     func(wire.Frame)
	addConnectionID       func(protocol.ConnectionID)
	removeConnectionID    func(protocol.ConnectionID)
	replaceWithClosed     func([]protocol.ConnectionID, packetHandler)

	handshakeComplete bool
	closed            bool
	logger            *slog.Logger

	retireCIDGracePeriod time.Duration
}

func newConnIDGenerator(
	initialOurConnID protocol.ConnectionID,
	initialSRT protocol.StatelessResetToken,
	connIDLimit uint64,
	newConnectionIDFunc func() (protocol.ConnectionID, error),
	newStatelessResetTokenFunc func(protocol.ConnectionID) protocol.StatelessResetToken,
	queueControlFrame func(wire.Frame),
	addConnectionID func(protocol.ConnectionID),
	removeConnectionID func(protocol.ConnectionID),
	replaceWithClosed func([]protocol.ConnectionID, packetHandler),
	logger *slog.Logger,
) *connIDGenerator {
	if newStatelessResetTokenFunc == nil {
		newStatelessResetTokenFunc = func(_ protocol.ConnectionID) protocol.StatelessResetToken {
			var token protocol.StatelessResetToken
			_, _ = rand.Read(token[:])
			return token
		}
	}
	if newConnectionIDFunc == nil {
		newConnectionIDFunc = func() (protocol.ConnectionID, error) {
			return protocol.GenerateConnectionID(defaultConnectionIDLength)
		}
	}
	if connIDLimit == 0 {
		connIDLimit = 2
	}

	g := &connIDGenerator{
		issuedCIDs:                 make(map[uint64]*issuedConnID),
		connIDLimit:                connIDLimit,
		newConnectionIDFunc:        newConnectionIDFunc,
		newStatelessResetTokenFunc: newStatelessResetTokenFunc,
		queueControlFrame:          queueControlFrame,
		addConnectionID:            addConnectionID,
		removeConnectionID:         removeConnectionID,
		replaceWithClosed:          replaceWithClosed,
		logger:                     logger,
		retireCIDGracePeriod:       defaultRetireCIDGracePeriod,
	}
	g.issuedCIDs[0] = &issuedConnID{
		SequenceNumber:      0,
		ConnectionID:        initialOurConnID,
		StatelessResetToken: initialSRT,
		IsActive:            true,
	}
	g.activeCount = 1
	g.currentSeqNum = 1
	g.addConnectionID(initialOurConnID)
	return g
}

// GenerateNewConnectionID issues a fresh connection ID and queues a
// NEW_CONNECTION_ID frame for it, retiring older ones if retirePriorToOld
// is set and we're at the limit.
func (g *connIDGenerator) GenerateNewConnectionID(retirePriorToOld bool) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.closed {
		return errors.New("quic: connection ID generator closed")
	}
	if uint64(g.activeCount) >= g.connIDLimit {
		if g.logger != nil {
			g.logger.Debug("connection ID limit reached, not issuing a new one")
		}
		return qerr.NewLocalTransportError(qerr.ConnectionIDLimitError, "too many active connection IDs")
	}

	newCID, err := g.newConnectionIDFunc()
	if err != nil {
		return err
	}
	newSRT := g.newStatelessResetTokenFunc(newCID)
	seqNum := g.currentSeqNum

	g.issuedCIDs[seqNum] = &issuedConnID{
		SequenceNumber:      seqNum,
		ConnectionID:        newCID,
		StatelessResetToken: newSRT,
		IsActive:            true,
	}
	g.activeCount++
	g.addConnectionID(newCID)

	var retirePriorTo uint64
	if retirePriorToOld && uint64(g.activeCount) >= g.connIDLimit && g.currentSeqNum >= g.connIDLimit {
		retirePriorTo = g.currentSeqNum - g.connIDLimit + 1
	}

	g.queueControlFrame(&wire.NewConnectionIDFrame{
		SequenceNumber:      seqNum,
		RetirePriorTo:       retirePriorTo,
		ConnectionID:        newCID,
		StatelessResetToken: [16]byte(newSRT),
	})
	g.currentSeqNum++
	return nil
}

// Retire handles a peer's RETIRE_CONNECTION_ID frame for seqNum, marking
// that connection ID for removal once the grace period elapses.
func (g *connIDGenerator) Retire(seqNum uint64, rcvTime time.Time) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.closed {
		return errors.New("quic: connection ID generator closed")
	}
	cidInfo, ok := g.issuedCIDs[seqNum]
	if !ok {
		if seqNum >= g.currentSeqNum {
			return qerr.NewLocalTransportError(qerr.ProtocolViolation, fmt.Sprintf("retired connection ID %d that was never issued", seqNum))
		}
		return nil
	}
	if !cidInfo.IsActive {
		return nil
	}
	cidInfo.IsActive = false
	cidInfo.RetireTime = rcvTime.Add(g.retireCIDGracePeriod)
	g.activeCount--
	return nil
}

// GetInitialConnID returns the connection ID issued with sequence number 0.
func (g *connIDGenerator) GetInitialConnID() protocol.ConnectionID {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if info, ok := g.issuedCIDs[0]; ok {
		return info.ConnectionID
	}
	panic("quic: initial connection ID not found")
}

// RemoveRetiredConnIDs removes connection IDs whose retirement grace period
// has elapsed from the packet-handler map.
func (g *connIDGenerator) RemoveRetiredConnIDs(now time.Time) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.closed {
		return
	}
	for seqNum, cidInfo := range g.issuedCIDs {
		if !cidInfo.IsActive && !cidInfo.RetireTime.IsZero() && !now.Before(cidInfo.RetireTime) {
			g.removeConnectionID(cidInfo.ConnectionID)
			delete(g.issuedCIDs, seqNum)
		}
	}
}

func (g *connIDGenerator) SetHandshakeComplete() {
	g.mutex.Lock()
	g.handshakeComplete = true
	g.mutex.Unlock()
}

func (g *connIDGenerator) RemoveAll() {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.closed {
		return
	}
	for _, cidInfo := range g.issuedCIDs {
		g.removeConnectionID(cidInfo.ConnectionID)
	}
	g.issuedCIDs = make(map[uint64]*issuedConnID)
}

// ReplaceWithClosed hands every still-active connection ID this generator
// issued over to handler (a closedLocalConn or closedRemoteConn), so packets
// that arrive for any of them after the connection has shut down still get
// a sane reply instead of being silently dropped or routed nowhere.
func (g *connIDGenerator) ReplaceWithClosed(handler packetHandler) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.closed {
		return
	}
	var cids []protocol.ConnectionID
	for _, info := range g.issuedCIDs {
		if info.IsActive {
			cids = append(cids, info.ConnectionID)
		}
	}
	g.replaceWithClosed(cids, handler)
	g.closed = true
}

func (g *connIDGenerator) Close() {
	g.mutex.Lock()
	g.closed = true
	g.mutex.Unlock()
}
