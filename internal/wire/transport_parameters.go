package wire

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/quicvarint"
)

type transportParameterID uint64

const (
	originalDestConnectionIDParameterID       transportParameterID = 0x00
	maxIdleTimeoutParameterID                 transportParameterID = 0x01
	statelessResetTokenParameterID            transportParameterID = 0x02
	maxUDPPayloadSizeParameterID              transportParameterID = 0x03
	initialMaxDataParameterID                 transportParameterID = 0x04
	initialMaxStreamDataBidiLocalParameterID  transportParameterID = 0x05
	initialMaxStreamDataBidiRemoteParameterID transportParameterID = 0x06
	initialMaxStreamDataUniParameterID        transportParameterID = 0x07
	initialMaxStreamsBidiParameterID          transportParameterID = 0x08
	initialMaxStreamsUniParameterID           transportParameterID = 0x09
	ackDelayExponentParameterID               transportParameterID = 0x0a
	maxAckDelayParameterID                    transportParameterID = 0x0b
	disableActiveMigrationParameterID         transportParameterID = 0x0c
	preferredAddressParameterID               transportParameterID = 0x0d
	activeConnectionIDLimitParameterID        transportParameterID = 0x0e
	initialSourceConnectionIDParameterID      transportParameterID = 0x0f
	retrySourceConnectionIDParameterID        transportParameterID = 0x10
	minAckDelayParameterID                    transportParameterID = 0xff04de1a // draft ACK_FREQUENCY min_ack_delay
	reliableResetParameterID                  transportParameterID = 0x17f7586d5fe0b76 // draft RESET_STREAM_AT
	maxDatagramFrameSizeParameterID           transportParameterID = 0x20 // RFC 9221 DATAGRAM extension
)

// PreferredAddress is the preferred_address transport parameter's value.
type PreferredAddress struct {
	IPv4                net.IP
	IPv4Port            uint16
	IPv6                net.IP
	IPv6Port            uint16
	ConnectionID        protocol.ConnectionID
	StatelessResetToken [16]byte
}

// TransportParameters are the parameters each endpoint advertises during the
// handshake, carried in a TLS extension rather than in a QUIC frame.
type TransportParameters struct {
	OriginalDestConnectionID protocol.ConnectionID
	InitialSourceConnectionID protocol.ConnectionID
	RetrySourceConnectionID   protocol.ConnectionID

	InitialMaxData                 protocol.ByteCount
	InitialMaxStreamDataBidiLocal  protocol.ByteCount
	InitialMaxStreamDataBidiRemote protocol.ByteCount
	InitialMaxStreamDataUni        protocol.ByteCount
	MaxBidiStreamNum               protocol.StreamNum
	MaxUniStreamNum                protocol.StreamNum

	MaxIdleTimeout   time.Duration
	MaxAckDelay      time.Duration
	AckDelayExponent uint8
	MinAckDelay      time.Duration // SUPPLEMENTED: draft-ietf-quic-ack-frequency

	MaxUDPPayloadSize protocol.ByteCount

	DisableActiveMigration  bool
	ActiveConnectionIDLimit uint64

	StatelessResetToken *[16]byte
	PreferredAddress    *PreferredAddress

	EnableReliableResetStreamAt bool // SUPPLEMENTED: draft-ietf-quic-reliable-stream-reset

	// MaxDatagramFrameSize advertises support for the DATAGRAM extension
	// (RFC 9221); zero means the sender does not support it.
	MaxDatagramFrameSize protocol.ByteCount
}

// Marshal encodes the transport parameters for inclusion in the TLS
// ClientHello/Certificate message, from the given perspective (the sender).
func (p *TransportParameters) Marshal(pers protocol.Perspective) []byte {
	b := make([]byte, 0, 256)

	b = p.marshalVarintParam(b, initialMaxStreamDataBidiLocalParameterID, uint64(p.InitialMaxStreamDataBidiLocal))
	b = p.marshalVarintParam(b, initialMaxStreamDataBidiRemoteParameterID, uint64(p.InitialMaxStreamDataBidiRemote))
	b = p.marshalVarintParam(b, initialMaxStreamDataUniParameterID, uint64(p.InitialMaxStreamDataUni))
	b = p.marshalVarintParam(b, initialMaxDataParameterID, uint64(p.InitialMaxData))
	b = p.marshalVarintParam(b, initialMaxStreamsBidiParameterID, uint64(p.MaxBidiStreamNum))
	b = p.marshalVarintParam(b, initialMaxStreamsUniParameterID, uint64(p.MaxUniStreamNum))
	b = p.marshalVarintParam(b, maxIdleTimeoutParameterID, uint64(p.MaxIdleTimeout/time.Millisecond))
	b = p.marshalVarintParam(b, maxUDPPayloadSizeParameterID, uint64(p.MaxUDPPayloadSize))
	b = p.marshalVarintParam(b, activeConnectionIDLimitParameterID, p.ActiveConnectionIDLimit)

	if p.MaxAckDelay != protocol.MaxAckDelayDefault {
		b = p.marshalVarintParam(b, maxAckDelayParameterID, uint64(p.MaxAckDelay/time.Millisecond))
	}
	if p.AckDelayExponent != protocol.AckDelayExponentDefault {
		b = p.marshalVarintParam(b, ackDelayExponentParameterID, uint64(p.AckDelayExponent))
	}
	if p.MinAckDelay > 0 {
		b = p.marshalVarintParam(b, minAckDelayParameterID, uint64(p.MinAckDelay/time.Microsecond))
	}
	if p.MaxDatagramFrameSize > 0 {
		b = p.marshalVarintParam(b, maxDatagramFrameSizeParameterID, uint64(p.MaxDatagramFrameSize))
	}
	if p.DisableActiveMigration {
		b = quicvarint.Append(b, uint64(disableActiveMigrationParameterID))
		b = quicvarint.Append(b, 0)
	}
	if p.EnableReliableResetStreamAt {
		b = quicvarint.Append(b, uint64(reliableResetParameterID))
		b = quicvarint.Append(b, 0)
	}
	if p.StatelessResetToken != nil {
		b = quicvarint.Append(b, uint64(statelessResetTokenParameterID))
		b = quicvarint.Append(b, 16)
		b = append(b, p.StatelessResetToken[:]...)
	}
	if pers == protocol.PerspectiveServer && p.OriginalDestConnectionID.Len() > 0 {
		b = p.marshalConnIDParam(b, originalDestConnectionIDParameterID, p.OriginalDestConnectionID)
	}
	b = p.marshalConnIDParam(b, initialSourceConnectionIDParameterID, p.InitialSourceConnectionID)
	if pers == protocol.PerspectiveServer && p.RetrySourceConnectionID.Len() > 0 {
		b = p.marshalConnIDParam(b, retrySourceConnectionIDParameterID, p.RetrySourceConnectionID)
	}
	return b
}

func (p *TransportParameters) marshalVarintParam(b []byte, id transportParameterID, val uint64) []byte {
	b = quicvarint.Append(b, uint64(id))
	b = quicvarint.Append(b, uint64(quicvarint.Len(val)))
	return quicvarint.Append(b, val)
}

func (p *TransportParameters) marshalConnIDParam(b []byte, id transportParameterID, connID protocol.ConnectionID) []byte {
	b = quicvarint.Append(b, uint64(id))
	b = quicvarint.Append(b, uint64(connID.Len()))
	return append(b, connID.Bytes()...)
}

// Unmarshal decodes transport parameters sent by sentBy.
func (p *TransportParameters) Unmarshal(data []byte, sentBy protocol.Perspective) error {
	if err := p.unmarshal(bytes.NewReader(data), sentBy); err != nil {
		return fmt.Errorf("transport parameter error: %w", err)
	}
	return nil
}

func (p *TransportParameters) unmarshal(r *bytes.Reader, sentBy protocol.Perspective) error {
	var seen []transportParameterID
	var sawAckDelayExponent, sawMaxAckDelay bool

	for r.Len() > 0 {
		id, err := quicvarint.Read(r)
		if err != nil {
			return err
		}
		paramID := transportParameterID(id)
		length, err := quicvarint.Read(r)
		if err != nil {
			return err
		}
		if uint64(r.Len()) < length {
			return fmt.Errorf("remaining length (%d) smaller than parameter length (%d)", r.Len(), length)
		}
		seen = append(seen, paramID)
		val := make([]byte, length)
		if _, err := io.ReadFull(r, val); err != nil {
			return err
		}
		vr := bytes.NewReader(val)

		switch paramID {
		case initialMaxStreamDataBidiLocalParameterID, initialMaxStreamDataBidiRemoteParameterID,
			initialMaxStreamDataUniParameterID, initialMaxDataParameterID, initialMaxStreamsBidiParameterID,
			initialMaxStreamsUniParameterID, maxIdleTimeoutParameterID, maxUDPPayloadSizeParameterID,
			activeConnectionIDLimitParameterID, maxAckDelayParameterID, ackDelayExponentParameterID,
			minAckDelayParameterID, maxDatagramFrameSizeParameterID:
			n, err := quicvarint.Read(vr)
			if err != nil {
				return fmt.Errorf("error reading parameter %#x: %w", paramID, err)
			}
			if err := p.setNumericParam(paramID, n, &sawAckDelayExponent, &sawMaxAckDelay); err != nil {
				return err
			}
		case disableActiveMigrationParameterID:
			if length != 0 {
				return fmt.Errorf("wrong length for disable_active_migration: %d", length)
			}
			p.DisableActiveMigration = true
		case reliableResetParameterID:
			if length != 0 {
				return fmt.Errorf("wrong length for reliable_stream_reset: %d", length)
			}
			p.EnableReliableResetStreamAt = true
		case statelessResetTokenParameterID:
			if sentBy == protocol.PerspectiveClient {
				return fmt.Errorf("client sent a stateless_reset_token")
			}
			if length != 16 {
				return fmt.Errorf("wrong length for stateless_reset_token: %d", length)
			}
			var token [16]byte
			copy(token[:], val)
			p.StatelessResetToken = &token
		case originalDestConnectionIDParameterID:
			if sentBy == protocol.PerspectiveClient {
				return fmt.Errorf("client sent an original_destination_connection_id")
			}
			p.OriginalDestConnectionID = protocol.ConnectionID(val)
		case initialSourceConnectionIDParameterID:
			p.InitialSourceConnectionID = protocol.ConnectionID(val)
		case retrySourceConnectionIDParameterID:
			if sentBy == protocol.PerspectiveClient {
				return fmt.Errorf("client sent a retry_source_connection_id")
			}
			p.RetrySourceConnectionID = protocol.ConnectionID(val)
		case preferredAddressParameterID:
			if sentBy == protocol.PerspectiveClient {
				return fmt.Errorf("client sent a preferred_address")
			}
			pa, err := parsePreferredAddress(vr)
			if err != nil {
				return err
			}
			p.PreferredAddress = pa
		default:
			// unknown parameters are ignored, per RFC 9000 Section 7.4.1
		}
	}

	if !sawAckDelayExponent {
		p.AckDelayExponent = protocol.AckDelayExponentDefault
	}
	if !sawMaxAckDelay {
		p.MaxAckDelay = protocol.MaxAckDelayDefault
	}
	if p.MaxUDPPayloadSize == 0 {
		p.MaxUDPPayloadSize = protocol.MaxByteCount
	}

	sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
	for i := 0; i+1 < len(seen); i++ {
		if seen[i] == seen[i+1] {
			return fmt.Errorf("received duplicate transport parameter %#x", seen[i])
		}
	}
	return nil
}

func (p *TransportParameters) setNumericParam(id transportParameterID, val uint64, sawAckDelayExponent, sawMaxAckDelay *bool) error {
	switch id {
	case initialMaxStreamDataBidiLocalParameterID:
		p.InitialMaxStreamDataBidiLocal = protocol.ByteCount(val)
	case initialMaxStreamDataBidiRemoteParameterID:
		p.InitialMaxStreamDataBidiRemote = protocol.ByteCount(val)
	case initialMaxStreamDataUniParameterID:
		p.InitialMaxStreamDataUni = protocol.ByteCount(val)
	case initialMaxDataParameterID:
		p.InitialMaxData = protocol.ByteCount(val)
	case initialMaxStreamsBidiParameterID:
		p.MaxBidiStreamNum = protocol.StreamNum(val)
	case initialMaxStreamsUniParameterID:
		p.MaxUniStreamNum = protocol.StreamNum(val)
	case maxIdleTimeoutParameterID:
		p.MaxIdleTimeout = time.Duration(val) * time.Millisecond
	case maxUDPPayloadSizeParameterID:
		if val < 1200 {
			return fmt.Errorf("invalid value for max_udp_payload_size: %d (minimum 1200)", val)
		}
		p.MaxUDPPayloadSize = protocol.ByteCount(val)
	case ackDelayExponentParameterID:
		*sawAckDelayExponent = true
		p.AckDelayExponent = uint8(val)
	case maxAckDelayParameterID:
		*sawMaxAckDelay = true
		maxAckDelay := time.Duration(val) * time.Millisecond
		if maxAckDelay >= protocol.MaxAckDelayUpperBound {
			return fmt.Errorf("invalid value for max_ack_delay: %dms", val)
		}
		p.MaxAckDelay = maxAckDelay
	case activeConnectionIDLimitParameterID:
		if val < 2 {
			return fmt.Errorf("invalid value for active_connection_id_limit: %d (minimum 2)", val)
		}
		p.ActiveConnectionIDLimit = val
	case minAckDelayParameterID:
		p.MinAckDelay = time.Duration(val) * time.Microsecond
	case maxDatagramFrameSizeParameterID:
		p.MaxDatagramFrameSize = protocol.ByteCount(val)
	}
	return nil
}

func parsePreferredAddress(r *bytes.Reader) (*PreferredAddress, error) {
	pa := &PreferredAddress{}
	ipv4 := make([]byte, 4)
	if _, err := io.ReadFull(r, ipv4); err != nil {
		return nil, err
	}
	pa.IPv4 = net.IP(ipv4)
	port, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	pa.IPv4Port = uint16(port)
	ipv6 := make([]byte, 16)
	if _, err := io.ReadFull(r, ipv6); err != nil {
		return nil, err
	}
	pa.IPv6 = net.IP(ipv6)
	port, err = quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	pa.IPv6Port = uint16(port)
	connIDLen, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	connID := make([]byte, connIDLen)
	if _, err := io.ReadFull(r, connID); err != nil {
		return nil, err
	}
	pa.ConnectionID = protocol.ConnectionID(connID)
	if _, err := io.ReadFull(r, pa.StatelessResetToken[:]); err != nil {
		return nil, err
	}
	return pa, nil
}

// ValidFor0RTT reports whether saved, from an earlier session's session
// ticket, is still compatible with p's values for the flow-control limits
// that must not shrink across a 0-RTT resumption.
func (p *TransportParameters) ValidFor0RTT(saved *TransportParameters) bool {
	return p.InitialMaxStreamDataBidiLocal >= saved.InitialMaxStreamDataBidiLocal &&
		p.InitialMaxStreamDataBidiRemote >= saved.InitialMaxStreamDataBidiRemote &&
		p.InitialMaxStreamDataUni >= saved.InitialMaxStreamDataUni &&
		p.InitialMaxData >= saved.InitialMaxData &&
		p.MaxBidiStreamNum >= saved.MaxBidiStreamNum &&
		p.MaxUniStreamNum >= saved.MaxUniStreamNum &&
		p.ActiveConnectionIDLimit == saved.ActiveConnectionIDLimit
}
