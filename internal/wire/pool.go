package wire

import "sync"

var ackFramePool = sync.Pool{
	New: func() any { return &AckFrame{} },
}

// GetAckFrame returns an ACK frame from the pool. The caller must fill in
// every field; PutAckFrame returns it once done.
func GetAckFrame() *AckFrame {
	f := ackFramePool.Get().(*AckFrame)
	f.fromPool = true
	return f
}

// PutAckFrame returns f to the pool. It is a no-op if f wasn't obtained
// from GetAckFrame.
func PutAckFrame(f *AckFrame) {
	if !f.fromPool {
		return
	}
	f.Reset()
	f.fromPool = false
	ackFramePool.Put(f)
}

var streamFramePool = sync.Pool{
	New: func() any { return &StreamFrame{} },
}

// GetStreamFrame returns a STREAM frame from the pool.
func GetStreamFrame() *StreamFrame {
	f := streamFramePool.Get().(*StreamFrame)
	f.fromPool = true
	return f
}

// PutStreamFrame returns f to the pool, releasing its Data slice.
func PutStreamFrame(f *StreamFrame) {
	if !f.fromPool {
		return
	}
	f.Data = nil
	f.fromPool = false
	streamFramePool.Put(f)
}
