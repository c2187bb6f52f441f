// backend/src/processors/slippage_guard.go
package processors

import (
	"fmt"
	"time"

	"github.com/username/soldrip/backend/src/models"
)

const (
	PriceFluctuationThresholdBps = 1500 // 15%
	SlippageProtectionDuration   = 600 * time.Second
	bpsBase                      = 10_000
)

// SlippageGuard is the circuit breaker that suspends transfers and distributions after
// a volatility spike. Its state lives in models.ProtocolState; the guard only mutates it.
type SlippageGuard struct {
	ThresholdBps uint16
	Window       time.Duration
}

func NewSlippageGuard() *SlippageGuard {
	return &SlippageGuard{
		ThresholdBps: PriceFluctuationThresholdBps,
		Window:       SlippageProtectionDuration,
	}
}

// CheckCooldown rejects the operation while a protection window is open. An expired
// window is cleared on the state as a side effect.
func (g *SlippageGuard) CheckCooldown(state *models.ProtocolState, now time.Time) error {
	if !state.GuardActive {
		return nil
	}
	if remaining := g.RemainingCooldown(state, now); remaining > 0 {
		return fmt.Errorf("%w: retry in %s", ErrSlippageProtectionActive, remaining)
	}
	state.GuardActive = false
	state.GuardActivatedAt = 0
	return nil
}

// Evaluate arms the guard when fluctuationBps is above the threshold and reports whether
// the current operation must take the buyback route. It must run after CheckCooldown.
func (g *SlippageGuard) Evaluate(state *models.ProtocolState, fluctuationBps uint16, now time.Time) bool {
	if fluctuationBps <= g.ThresholdBps {
		return false
	}
	state.GuardActive = true
	state.GuardActivatedAt = now.Unix()
	return true
}

// RemainingCooldown is how long the current protection window still has to run.
func (g *SlippageGuard) RemainingCooldown(state *models.ProtocolState, now time.Time) time.Duration {
	if !state.GuardActive {
		return 0
	}
	end := time.Unix(state.GuardActivatedAt, 0).Add(g.Window)
	if !now.Before(end) {
		return 0
	}
	return end.Sub(now)
}

// FluctuationBps is the relative move between two price samples in basis points.
// It documents the intended measurement; the guard itself reads a fed value.
func FluctuationBps(current, previous uint64) uint64 {
	if previous == 0 {
		return 0
	}
	diff := current - previous
	if previous > current {
		diff = previous - current
	}
	return mulDiv(diff, bpsBase, previous)
}

// IsFluctuationAboveThreshold reports whether two samples moved by more than the threshold.
func IsFluctuationAboveThreshold(current, previous uint64) bool {
	return FluctuationBps(current, previous) > PriceFluctuationThresholdBps
}
