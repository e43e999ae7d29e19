package quic

import (
	"time"

	"github.com/quicframe/quicframe/internal/utils"
)

// connectionTimer is the single timer backing a connection's event loop,
// rearmed to the earliest of every pending deadline on each iteration.
type connectionTimer struct {
	timer *utils.Timer

	blocked bool
}

func newTimer() *connectionTimer {
	return &connectionTimer{timer: utils.NewTimer()}
}

func (t *connectionTimer) SetRead() {
	t.timer.SetRead()
}

func (t *connectionTimer) Chan() <-chan time.Time {
	return t.timer.Chan()
}

func (t *connectionTimer) SetBlocked() {
	t.blocked = true
}

func (t *connectionTimer) Unblock() {
	t.blocked = false
}

// SetTimer rearms the timer to the earliest of the deadlines given, treating
// a zero time.Time as "no deadline". While blocked (waiting for a flow
// control update or similar before the write side can do anything useful),
// only the idle timeout is honored.
func (t *connectionTimer) SetTimer(idleTimeout, keepAlive, connIDRetirement, ackAlarm, lossTime, pacing time.Time) {
	if t.blocked {
		t.timer.Reset(idleTimeout)
		return
	}

	deadline := idleTimeout
	for _, d := range []time.Time{keepAlive, connIDRetirement, ackAlarm, lossTime, pacing} {
		if !d.IsZero() && (deadline.IsZero() || d.Before(deadline)) {
			deadline = d
		}
	}
	t.timer.Reset(deadline)
}

func (t *connectionTimer) Stop() {
	t.timer.Stop()
}
