package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/soldrip/backend/src/models"
)

func TestGuardLifecycle(t *testing.T) {
	g := NewSlippageGuard()
	state := &models.ProtocolState{}
	t0 := time.Unix(1_700_000_000, 0)

	require.NoError(t, g.CheckCooldown(state, t0))
	assert.False(t, g.Evaluate(state, PriceFluctuationThresholdBps, t0))
	assert.Equal(t, models.GuardNormal, state.Guard())

	assert.True(t, g.Evaluate(state, PriceFluctuationThresholdBps+1, t0))
	assert.Equal(t, models.GuardProtected, state.Guard())
	assert.Equal(t, t0.Unix(), state.GuardActivatedAt)

	for _, dt := range []time.Duration{0, time.Second, 599 * time.Second} {
		err := g.CheckCooldown(state, t0.Add(dt))
		assert.ErrorIs(t, err, ErrSlippageProtectionActive, dt)
		assert.True(t, state.GuardActive)
	}
	assert.Equal(t, time.Second, g.RemainingCooldown(state, t0.Add(599*time.Second)))
	err := g.CheckCooldown(state, t0.Add(590*time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry in 10s")

	require.NoError(t, g.CheckCooldown(state, t0.Add(600*time.Second)))
	assert.False(t, state.GuardActive)
	assert.Zero(t, state.GuardActivatedAt)
	assert.Zero(t, g.RemainingCooldown(state, t0.Add(600*time.Second)))
}

func TestGuardRearmsInSameCallAfterExpiry(t *testing.T) {
	g := NewSlippageGuard()
	t0 := time.Unix(1_700_000_000, 0)
	state := &models.ProtocolState{GuardActive: true, GuardActivatedAt: t0.Unix()}

	later := t0.Add(15 * time.Minute)
	require.NoError(t, g.CheckCooldown(state, later))
	assert.True(t, g.Evaluate(state, 2_000, later))
	assert.True(t, state.GuardActive)
	assert.Equal(t, later.Unix(), state.GuardActivatedAt)
}

func TestFluctuationBps(t *testing.T) {
	assert.Equal(t, uint64(1_000), FluctuationBps(110, 100))
	assert.Equal(t, uint64(1_000), FluctuationBps(90, 100))
	assert.Equal(t, uint64(0), FluctuationBps(100, 0))
	assert.False(t, IsFluctuationAboveThreshold(115, 100))
	assert.True(t, IsFluctuationAboveThreshold(116, 100))
}
