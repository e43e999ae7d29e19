package handshake

import (
	"bytes"
	"fmt"
	"io"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/internal/wire"
	"github.com/quicframe/quicframe/quicvarint"
)

const sessionTicketRevision = 1

// sessionTicket is the application data a server attaches to a session
// ticket so that, on a later 0-RTT resumption, both sides agree on the
// transport parameters that were in effect when the ticket was issued.
type sessionTicket struct {
	Parameters *wire.TransportParameters
}

func (t *sessionTicket) Marshal() []byte {
	b := make([]byte, 0, 128)
	b = quicvarint.Append(b, sessionTicketRevision)
	return append(b, t.Parameters.Marshal(protocol.PerspectiveServer)...)
}

func (t *sessionTicket) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)
	rev, err := quicvarint.Read(r)
	if err != nil {
		return fmt.Errorf("failed to read session ticket revision: %w", err)
	}
	if rev != sessionTicketRevision {
		return fmt.Errorf("unknown session ticket revision: %d", rev)
	}
	rest := make([]byte, r.Len())
	if _, err := io.ReadFull(r, rest); err != nil {
		return fmt.Errorf("failed to read session ticket body: %w", err)
	}
	var tp wire.TransportParameters
	if err := tp.Unmarshal(rest, protocol.PerspectiveServer); err != nil {
		return fmt.Errorf("unmarshaling transport parameters from session ticket failed: %w", err)
	}
	t.Parameters = &tp
	return nil
}
