package congestion

import (
	"testing"
	"time"

	"github.com/quicframe/quicframe/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func TestPacerAllowsFullBurstWhenIdle(t *testing.T) {
	p := NewPacer(1200)
	assert.Equal(t, protocol.ByteCount(10*1200), p.Budget(time.Now()))
}

func TestPacerSpendsBudgetOnSend(t *testing.T) {
	p := NewPacer(1200)
	now := time.Now()
	p.OnPacketSent(now, 1200)
	assert.Equal(t, protocol.ByteCount(9*1200), p.Budget(now))
}

func TestPacerRefillsOverTime(t *testing.T) {
	p := NewPacer(1200)
	now := time.Now()
	p.RefreshPacingRate(1200, time.Millisecond) // 1200 bytes/ms
	p.OnPacketSent(now, 12*1200)
	assert.Zero(t, p.Budget(now))

	later := now.Add(5 * time.Millisecond)
	assert.Equal(t, protocol.ByteCount(5*1200), p.Budget(later))
}

func TestPacerWriteBatchSize(t *testing.T) {
	p := NewPacer(1200)
	now := time.Now()
	assert.Equal(t, 10, p.UpdateAndGetWriteBatchSize(now))
}

func TestPacerTimeUntilSendWithNoRate(t *testing.T) {
	p := NewPacer(1200)
	now := time.Now()
	p.OnPacketSent(now, 12*1200)
	assert.True(t, p.TimeUntilSend().IsZero(), "no rate configured, so never blocks")
}

func TestPacerTimeUntilSendWaitsForBudget(t *testing.T) {
	p := NewPacer(1200)
	now := time.Now()
	p.RefreshPacingRate(1200, time.Millisecond)
	p.OnPacketSent(now, 12*1200)
	wait := p.TimeUntilSend()
	assert.False(t, wait.IsZero())
	assert.True(t, wait.After(now))
}
