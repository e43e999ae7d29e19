package quic

import (
	"crypto/rand"
	"log/slog"
	"net"

	"github.com/quicframe/quicframe/internal/ackhandler"
	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
)

type pathID int64

// maxPaths bounds how many not-yet-validated remote addresses a connection
// tracks at once, so a spoofed-source-address flood can't grow this map
// without bound. It is not a multipath degree of parallelism: at most one
// path is ever active for sending.
const maxPaths = 3

type path struct {
	addr           net.Addr
	pathChallenge  [8]byte
	validated      bool
	rcvdNonProbing bool
}

// pathManager implements connection migration (RFC 9000 Section 9): a peer
// that starts sending from a new address is probed with PATH_CHALLENGE
// before the connection switches its send address to it.
type pathManager struct {
	nextPathID pathID
	paths      map[pathID]*path

	getConnID    func(pathID) (_ protocol.ConnectionID, ok bool)
	retireConnID func(pathID)

	logger *slog.Logger
}

func newPathManager(
	getConnID func(pathID) (_ protocol.ConnectionID, ok bool),
	retireConnID func(pathID),
	logger *slog.Logger,
) *pathManager {
	return &pathManager{
		paths:        make(map[pathID]*path),
		getConnID:    getConnID,
		retireConnID: retireConnID,
		logger:       logger,
	}
}

// HandlePacket is called for every non-probing-qualified packet received
// from remoteAddr. It returns the connection ID to use if a PATH_CHALLENGE
// needs to go out, frames to queue for this path, and whether the
// connection should now switch its active send path to remoteAddr.
func (pm *pathManager) HandlePacket(
	remoteAddr net.Addr,
	pathChallenge *wire.PathChallengeFrame,
	isNonProbing bool,
) (_ protocol.ConnectionID, _ []ackhandler.Frame, shouldSwitch bool) {
	var p *path
	id := pm.nextPathID
	for pid, existing := range pm.paths {
		if addrsEqual(existing.addr, remoteAddr) {
			p = existing
			id = pid
			if isNonProbing {
				existing.rcvdNonProbing = true
			}
			if pm.logger != nil {
				pm.logger.Debug("received packet for already-probed path", "addr", remoteAddr, "validated", existing.validated)
			}
			shouldSwitch = existing.validated && existing.rcvdNonProbing
			if pathChallenge == nil {
				return protocol.ConnectionID{}, nil, shouldSwitch
			}
			break
		}
	}

	if len(pm.paths) >= maxPaths {
		if pm.logger != nil {
			pm.logger.Debug("received packet for previously unseen path, already tracking max", "addr", remoteAddr, "count", len(pm.paths))
		}
		return protocol.ConnectionID{}, nil, shouldSwitch
	}

	connID, ok := pm.getConnID(id)
	if !ok {
		if pm.logger != nil {
			pm.logger.Debug("skipping validation of new path, no spare connection ID", "addr", remoteAddr)
		}
		return protocol.ConnectionID{}, nil, shouldSwitch
	}

	var queued []ackhandler.Frame
	if p == nil {
		var data [8]byte
		_, _ = rand.Read(data[:])
		p = &path{addr: remoteAddr, rcvdNonProbing: isNonProbing, pathChallenge: data}
		pm.paths[pm.nextPathID] = p
		pm.nextPathID++
		challengeFrame := &wire.PathChallengeFrame{Data: p.pathChallenge}
		queued = append(queued, ackhandler.Frame{
			Frame:   challengeFrame,
			OnLost:  pm.onChallengeLost,
			OnAcked: func(wire.Frame) {},
		})
		if pm.logger != nil {
			pm.logger.Debug("enqueueing PATH_CHALLENGE for new path", "addr", remoteAddr)
		}
	}
	if pathChallenge != nil {
		queued = append(queued, ackhandler.Frame{
			Frame:   &wire.PathResponseFrame{Data: pathChallenge.Data},
			OnAcked: func(wire.Frame) {},
		})
	}
	return connID, queued, shouldSwitch
}

func (pm *pathManager) HandlePathResponseFrame(f *wire.PathResponseFrame) {
	for _, p := range pm.paths {
		if f.Data == p.pathChallenge {
			p.validated = true
			if pm.logger != nil {
				pm.logger.Debug("path validated", "addr", p.addr)
			}
			break
		}
	}
}

// SwitchToPath retires every tracked path other than addr once the
// connection has committed to sending there.
func (pm *pathManager) SwitchToPath(addr net.Addr) {
	for id := range pm.paths {
		if addrsEqual(pm.paths[id].addr, addr) {
			if pm.logger != nil {
				pm.logger.Debug("switching active path", "id", id, "addr", addr)
			}
			continue
		}
		pm.retireConnID(id)
	}
	clear(pm.paths)
}

// onChallengeLost is the OnLost callback for a PATH_CHALLENGE frame;
// abandoning the path on loss (rather than retransmitting) keeps migration
// probing simple, since the peer will just retry from the new address.
func (pm *pathManager) onChallengeLost(f wire.Frame) {
	pc := f.(*wire.PathChallengeFrame)
	for id, p := range pm.paths {
		if p.pathChallenge == pc.Data {
			delete(pm.paths, id)
			pm.retireConnID(id)
			break
		}
	}
}

func addrsEqual(addr1, addr2 net.Addr) bool {
	if addr1 == nil || addr2 == nil {
		return false
	}
	a1, ok1 := addr1.(*net.UDPAddr)
	a2, ok2 := addr2.(*net.UDPAddr)
	if ok1 && ok2 {
		return a1.IP.Equal(a2.IP) && a1.Port == a2.Port
	}
	return addr1.String() == addr2.String()
}
