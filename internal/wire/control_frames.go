package wire

import (
	"bytes"
	"io"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/quicframe/quicframe/quicvarint"
)

// PingFrame is a PING frame: no fields, elicits an ACK.
type PingFrame struct{}

func (f *PingFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	return append(b, byte(PingFrameType)), nil
}
func (f *PingFrame) Length(_ protocol.Version) protocol.ByteCount { return 1 }

// ImmediateAckFrame requests an immediate ACK (the IMMEDIATE_ACK extension
// frame); no fields.
type ImmediateAckFrame struct{}

func (f *ImmediateAckFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	return quicvarint.Append(b, uint64(ImmediateAckFrameType)), nil
}
func (f *ImmediateAckFrame) Length(_ protocol.Version) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(ImmediateAckFrameType)))
}

// HandshakeDoneFrame signals handshake confirmation to the client; no fields.
type HandshakeDoneFrame struct{}

func (f *HandshakeDoneFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	return append(b, byte(HandshakeDoneFrameType)), nil
}
func (f *HandshakeDoneFrame) Length(_ protocol.Version) protocol.ByteCount { return 1 }

// PaddingFrame is one or more PADDING bytes. Len is always >= 1.
type PaddingFrame struct {
	Len protocol.ByteCount
}

func (f *PaddingFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	for i := protocol.ByteCount(0); i < f.Len; i++ {
		b = append(b, byte(PaddingFrameType))
	}
	return b, nil
}
func (f *PaddingFrame) Length(_ protocol.Version) protocol.ByteCount { return f.Len }

// MaxDataFrame is a MAX_DATA frame: connection-level flow control.
type MaxDataFrame struct {
	MaximumData protocol.ByteCount
}

func parseMaxDataFrame(r *bytes.Reader, _ protocol.Version) (*MaxDataFrame, error) {
	v, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	return &MaxDataFrame{MaximumData: protocol.ByteCount(v)}, nil
}
func (f *MaxDataFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = append(b, byte(MaxDataFrameType))
	return quicvarint.Append(b, uint64(f.MaximumData)), nil
}
func (f *MaxDataFrame) Length(_ protocol.Version) protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.MaximumData)))
}

// MaxStreamDataFrame is a MAX_STREAM_DATA frame: per-stream flow control.
type MaxStreamDataFrame struct {
	StreamID          protocol.StreamID
	MaximumStreamData protocol.ByteCount
}

func parseMaxStreamDataFrame(r *bytes.Reader, _ protocol.Version) (*MaxStreamDataFrame, error) {
	sid, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	v, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	return &MaxStreamDataFrame{StreamID: protocol.StreamID(sid), MaximumStreamData: protocol.ByteCount(v)}, nil
}
func (f *MaxStreamDataFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = append(b, byte(MaxStreamDataFrameType))
	b = quicvarint.Append(b, uint64(f.StreamID))
	return quicvarint.Append(b, uint64(f.MaximumStreamData)), nil
}
func (f *MaxStreamDataFrame) Length(_ protocol.Version) protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.StreamID))+quicvarint.Len(uint64(f.MaximumStreamData)))
}

// MaxStreamsFrame is a MAX_STREAMS frame, bidi or uni.
type MaxStreamsFrame struct {
	Type       protocol.StreamType
	MaxStreams protocol.StreamNum
}

func parseMaxStreamsFrame(frameType FrameType, r *bytes.Reader, _ protocol.Version) (*MaxStreamsFrame, error) {
	v, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	if v > uint64(protocol.MaxStreamCount) {
		return nil, newFrameFormatError("MAX_STREAMS: stream count too large")
	}
	typ := protocol.StreamTypeBidi
	if frameType == UniMaxStreamsFrameType {
		typ = protocol.StreamTypeUni
	}
	return &MaxStreamsFrame{Type: typ, MaxStreams: protocol.StreamNum(v)}, nil
}
func (f *MaxStreamsFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	if f.Type == protocol.StreamTypeBidi {
		b = append(b, byte(BidiMaxStreamsFrameType))
	} else {
		b = append(b, byte(UniMaxStreamsFrameType))
	}
	return quicvarint.Append(b, uint64(f.MaxStreams)), nil
}
func (f *MaxStreamsFrame) Length(_ protocol.Version) protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.MaxStreams)))
}

// DataBlockedFrame is a DATA_BLOCKED frame.
type DataBlockedFrame struct {
	MaximumData protocol.ByteCount
}

func parseDataBlockedFrame(r *bytes.Reader, _ protocol.Version) (*DataBlockedFrame, error) {
	v, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	return &DataBlockedFrame{MaximumData: protocol.ByteCount(v)}, nil
}
func (f *DataBlockedFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = append(b, byte(DataBlockedFrameType))
	return quicvarint.Append(b, uint64(f.MaximumData)), nil
}
func (f *DataBlockedFrame) Length(_ protocol.Version) protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.MaximumData)))
}

// StreamDataBlockedFrame is a STREAM_DATA_BLOCKED frame.
type StreamDataBlockedFrame struct {
	StreamID          protocol.StreamID
	MaximumStreamData protocol.ByteCount
}

func parseStreamDataBlockedFrame(r *bytes.Reader, _ protocol.Version) (*StreamDataBlockedFrame, error) {
	sid, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	v, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	return &StreamDataBlockedFrame{StreamID: protocol.StreamID(sid), MaximumStreamData: protocol.ByteCount(v)}, nil
}
func (f *StreamDataBlockedFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = append(b, byte(StreamDataBlockedFrameType))
	b = quicvarint.Append(b, uint64(f.StreamID))
	return quicvarint.Append(b, uint64(f.MaximumStreamData)), nil
}
func (f *StreamDataBlockedFrame) Length(_ protocol.Version) protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.StreamID))+quicvarint.Len(uint64(f.MaximumStreamData)))
}

// StreamsBlockedFrame is a STREAMS_BLOCKED frame, bidi or uni.
type StreamsBlockedFrame struct {
	Type        protocol.StreamType
	StreamLimit protocol.StreamNum
}

func parseStreamsBlockedFrame(frameType FrameType, r *bytes.Reader, _ protocol.Version) (*StreamsBlockedFrame, error) {
	v, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	typ := protocol.StreamTypeBidi
	if frameType == UniStreamsBlockedFrameType {
		typ = protocol.StreamTypeUni
	}
	return &StreamsBlockedFrame{Type: typ, StreamLimit: protocol.StreamNum(v)}, nil
}
func (f *StreamsBlockedFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	if f.Type == protocol.StreamTypeBidi {
		b = append(b, byte(BidiStreamsBlockedFrameType))
	} else {
		b = append(b, byte(UniStreamsBlockedFrameType))
	}
	return quicvarint.Append(b, uint64(f.StreamLimit)), nil
}
func (f *StreamsBlockedFrame) Length(_ protocol.Version) protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.StreamLimit)))
}

// NewConnectionIDFrame is a NEW_CONNECTION_ID frame.
type NewConnectionIDFrame struct {
	SequenceNumber      uint64
	RetirePriorTo       uint64
	ConnectionID        protocol.ConnectionID
	StatelessResetToken [16]byte
}

func parseNewConnectionIDFrame(r *bytes.Reader, _ protocol.Version) (*NewConnectionIDFrame, error) {
	seq, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	retire, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	if retire > seq {
		return nil, newFrameFormatError("NEW_CONNECTION_ID: retire_prior_to larger than sequence_number")
	}
	length, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	connID := make([]byte, length)
	if _, err := io.ReadFull(r, connID); err != nil {
		return nil, err
	}
	f := &NewConnectionIDFrame{SequenceNumber: seq, RetirePriorTo: retire, ConnectionID: protocol.ConnectionID(connID)}
	if _, err := io.ReadFull(r, f.StatelessResetToken[:]); err != nil {
		return nil, err
	}
	return f, nil
}
func (f *NewConnectionIDFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = append(b, byte(NewConnectionIDFrameType))
	b = quicvarint.Append(b, f.SequenceNumber)
	b = quicvarint.Append(b, f.RetirePriorTo)
	b = append(b, byte(f.ConnectionID.Len()))
	b = append(b, f.ConnectionID.Bytes()...)
	return append(b, f.StatelessResetToken[:]...), nil
}
func (f *NewConnectionIDFrame) Length(_ protocol.Version) protocol.ByteCount {
	return protocol.ByteCount(1+quicvarint.Len(f.SequenceNumber)+quicvarint.Len(f.RetirePriorTo)+1+f.ConnectionID.Len()) + 16
}

// RetireConnectionIDFrame is a RETIRE_CONNECTION_ID frame.
type RetireConnectionIDFrame struct {
	SequenceNumber uint64
}

func parseRetireConnectionIDFrame(r *bytes.Reader, _ protocol.Version) (*RetireConnectionIDFrame, error) {
	seq, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	return &RetireConnectionIDFrame{SequenceNumber: seq}, nil
}
func (f *RetireConnectionIDFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = append(b, byte(RetireConnectionIDFrameType))
	return quicvarint.Append(b, f.SequenceNumber), nil
}
func (f *RetireConnectionIDFrame) Length(_ protocol.Version) protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(f.SequenceNumber))
}

// PathChallengeFrame and PathResponseFrame carry an 8-byte opaque payload
// used for path validation.
type PathChallengeFrame struct {
	Data [8]byte
}

func parsePathChallengeFrame(r *bytes.Reader, _ protocol.Version) (*PathChallengeFrame, error) {
	f := &PathChallengeFrame{}
	if _, err := io.ReadFull(r, f.Data[:]); err != nil {
		return nil, err
	}
	return f, nil
}
func (f *PathChallengeFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = append(b, byte(PathChallengeFrameType))
	return append(b, f.Data[:]...), nil
}
func (f *PathChallengeFrame) Length(_ protocol.Version) protocol.ByteCount { return 9 }

type PathResponseFrame struct {
	Data [8]byte
}

func parsePathResponseFrame(r *bytes.Reader, _ protocol.Version) (*PathResponseFrame, error) {
	f := &PathResponseFrame{}
	if _, err := io.ReadFull(r, f.Data[:]); err != nil {
		return nil, err
	}
	return f, nil
}
func (f *PathResponseFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = append(b, byte(PathResponseFrameType))
	return append(b, f.Data[:]...), nil
}
func (f *PathResponseFrame) Length(_ protocol.Version) protocol.ByteCount { return 9 }

// NewTokenFrame is a NEW_TOKEN frame, used by a server to provide a future
// Retry/Initial token to the client.
type NewTokenFrame struct {
	Token []byte
}

func parseNewTokenFrame(r *bytes.Reader, _ protocol.Version) (*NewTokenFrame, error) {
	length, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	if length > uint64(r.Len()) {
		return nil, io.EOF
	}
	token := make([]byte, length)
	if _, err := io.ReadFull(r, token); err != nil {
		return nil, err
	}
	return &NewTokenFrame{Token: token}, nil
}
func (f *NewTokenFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = append(b, byte(NewTokenFrameType))
	b = quicvarint.Append(b, uint64(len(f.Token)))
	return append(b, f.Token...), nil
}
func (f *NewTokenFrame) Length(_ protocol.Version) protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(len(f.Token)))+len(f.Token))
}

// DatagramFrame is a DATAGRAM frame (RFC 9221), unreliable application data
// outside any stream.
type DatagramFrame struct {
	DataLenPresent bool
	Data           []byte
}

func parseDatagramFrame(frameType FrameType, r *bytes.Reader, _ protocol.Version) (*DatagramFrame, error) {
	f := &DatagramFrame{DataLenPresent: frameType == DatagramWithLengthFrameType}
	var length uint64
	if f.DataLenPresent {
		var err error
		length, err = quicvarint.Read(r)
		if err != nil {
			return nil, err
		}
		if length > uint64(r.Len()) {
			return nil, io.EOF
		}
	} else {
		length = uint64(r.Len())
	}
	f.Data = make([]byte, length)
	if _, err := io.ReadFull(r, f.Data); err != nil {
		return nil, err
	}
	return f, nil
}
func (f *DatagramFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	if f.DataLenPresent {
		b = append(b, byte(DatagramWithLengthFrameType))
		b = quicvarint.Append(b, uint64(len(f.Data)))
	} else {
		b = append(b, byte(DatagramNoLengthFrameType))
	}
	return append(b, f.Data...), nil
}
func (f *DatagramFrame) Length(_ protocol.Version) protocol.ByteCount {
	length := 1 + len(f.Data)
	if f.DataLenPresent {
		length += quicvarint.Len(uint64(len(f.Data)))
	}
	return protocol.ByteCount(length)
}

// AckFrequencyFrame is the ACK_FREQUENCY extension frame
// (draft-ietf-quic-ack-frequency), letting a receiver tune how eagerly its
// peer sends ACKs.
type AckFrequencyFrame struct {
	SequenceNumber  uint64
	AckElicitingThreshold uint64
	RequestedMaxAckDelay protocol.ByteCount // microseconds
	ReorderingThreshold uint64
}

func parseAckFrequencyFrame(r *bytes.Reader, _ protocol.Version) (*AckFrequencyFrame, error) {
	f := &AckFrequencyFrame{}
	var err error
	if f.SequenceNumber, err = quicvarint.Read(r); err != nil {
		return nil, err
	}
	if f.AckElicitingThreshold, err = quicvarint.Read(r); err != nil {
		return nil, err
	}
	delay, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	f.RequestedMaxAckDelay = protocol.ByteCount(delay)
	if f.ReorderingThreshold, err = quicvarint.Read(r); err != nil {
		return nil, err
	}
	return f, nil
}
func (f *AckFrequencyFrame) Append(b []byte, _ protocol.Version) ([]byte, error) {
	b = quicvarint.Append(b, uint64(AckFrequencyFrameType))
	b = quicvarint.Append(b, f.SequenceNumber)
	b = quicvarint.Append(b, f.AckElicitingThreshold)
	b = quicvarint.Append(b, uint64(f.RequestedMaxAckDelay))
	return quicvarint.Append(b, f.ReorderingThreshold), nil
}
func (f *AckFrequencyFrame) Length(_ protocol.Version) protocol.ByteCount {
	return protocol.ByteCount(quicvarint.Len(uint64(AckFrequencyFrameType)) +
		quicvarint.Len(f.SequenceNumber) + quicvarint.Len(f.AckElicitingThreshold) +
		quicvarint.Len(uint64(f.RequestedMaxAckDelay)) + quicvarint.Len(f.ReorderingThreshold))
}
