package quic

import (
	"container/list"
	"errors"

	"github.com/quicframe/quicframe/internal/protocol"
)

// byteInterval is a half-open [Start, End) range of offsets not yet received.
type byteInterval struct {
	Start, End protocol.ByteCount
}

var errDuplicateStreamData = errors.New("duplicate stream data")

// frameSorter reassembles a byte stream from out-of-order, possibly
// overlapping chunks (STREAM or CRYPTO frame payloads), tracking the gaps
// still missing so Pop can tell the caller there's nothing new yet.
type frameSorter struct {
	queue       map[protocol.ByteCount][]byte
	readPos     protocol.ByteCount
	finalOffset protocol.ByteCount
	gaps        *list.List // of byteInterval
}

func newFrameSorter() *frameSorter {
	s := &frameSorter{
		gaps:        list.New(),
		queue:       make(map[protocol.ByteCount][]byte),
		finalOffset: protocol.MaxByteCount,
	}
	s.gaps.PushFront(byteInterval{Start: 0, End: protocol.MaxByteCount})
	return s
}

// Push adds newly received data at offset. fin marks offset+len(data) as the
// final size of the stream.
func (s *frameSorter) Push(data []byte, offset protocol.ByteCount, fin bool) error {
	err := s.push(data, offset, fin)
	if err == errDuplicateStreamData {
		return nil
	}
	return err
}

func (s *frameSorter) push(data []byte, offset protocol.ByteCount, fin bool) error {
	if fin {
		s.finalOffset = offset + protocol.ByteCount(len(data))
	}
	if len(data) == 0 {
		return nil
	}

	if oldData, ok := s.queue[offset]; ok {
		if len(data) <= len(oldData) {
			return errDuplicateStreamData
		}
		data = data[len(oldData):]
		offset += protocol.ByteCount(len(oldData))
	}

	start := offset
	end := offset + protocol.ByteCount(len(data))

	var gap *list.Element
	for e := s.gaps.Front(); e != nil; e = e.Next() {
		iv := e.Value.(byteInterval)
		if end <= iv.Start {
			return errDuplicateStreamData
		}
		if end > iv.Start && start <= iv.End {
			gap = e
			break
		}
	}
	if gap == nil {
		return errors.New("frameSorter: no gap found for pushed data")
	}

	gapIv := gap.Value.(byteInterval)
	if start < gapIv.Start {
		add := gapIv.Start - start
		offset += add
		start += add
		data = data[add:]
	}

	endGap := gap
	endIv := gapIv
	for end >= endIv.End {
		nextEndGap := endGap.Next()
		if nextEndGap == nil {
			return errors.New("frameSorter: no end gap found for pushed data")
		}
		if endGap != gap {
			s.gaps.Remove(endGap)
		}
		nextIv := nextEndGap.Value.(byteInterval)
		if end <= nextIv.Start {
			break
		}
		delete(s.queue, endIv.End)
		endGap = nextEndGap
		endIv = nextIv
	}

	if end > endIv.End {
		cutLen := end - endIv.End
		newLen := protocol.ByteCount(len(data)) - cutLen
		end -= cutLen
		data = data[:newLen]
	}

	if start == gapIv.Start {
		if end >= gapIv.End {
			s.gaps.Remove(gap)
		}
		if end < endIv.End {
			endIv.Start = end
			endGap.Value = endIv
		}
	} else if end == endIv.End {
		gapIv.End = start
		gap.Value = gapIv
	} else if gap == endGap {
		s.gaps.InsertAfter(byteInterval{Start: end, End: gapIv.End}, gap)
		gapIv.End = start
		gap.Value = gapIv
	} else {
		gapIv.End = start
		gap.Value = gapIv
		endIv.Start = end
		endGap.Value = endIv
	}

	if s.gaps.Len() > protocol.MaxStreamFrameSorterGaps {
		return errors.New("too many gaps in received stream data")
	}

	newData := make([]byte, len(data))
	copy(newData, data)
	s.queue[offset] = newData
	return nil
}

// Pop returns the next contiguous chunk of data starting at the current read
// position, if any, along with whether the stream has now been fully read.
func (s *frameSorter) Pop() (data []byte, fin bool) {
	data, ok := s.queue[s.readPos]
	if !ok {
		return nil, s.readPos >= s.finalOffset
	}
	delete(s.queue, s.readPos)
	s.readPos += protocol.ByteCount(len(data))
	return data, s.readPos >= s.finalOffset
}
