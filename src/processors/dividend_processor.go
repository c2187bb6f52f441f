// backend/src/processors/dividend_processor.go
package processors

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/username/soldrip/backend/src/models"
)

const (
	DistributionThreshold  uint64 = 100_000_000 // 0.1 SOL in lamports
	GasCostPercentage             = 2
	HoldingBonusPeriod            = 7 * 24 * time.Hour
	HoldingBonusMultiplier uint64 = 110
	HoldingBonusDivisor    uint64 = 100
)

// DividendProcessor computes dividend shares over a holder snapshot.
type DividendProcessor interface {
	Distributable(poolBalance uint64) (uint64, error)
	CalculateShare(balance, totalSupply, distributable uint64, held time.Duration) uint64
	Plan(holders []models.HolderSnapshot, mint solana.PublicKey, totalSupply, distributable uint64, now time.Time) models.DistributionResult
}

type dividendProcessorImpl struct{}

// NewDividendProcessor creates a new instance of DividendProcessor.
func NewDividendProcessor() DividendProcessor {
	return &dividendProcessorImpl{}
}

// Distributable checks the pool against the distribution threshold and withholds the
// operational-cost reserve.
func (p *dividendProcessorImpl) Distributable(poolBalance uint64) (uint64, error) {
	if poolBalance < DistributionThreshold {
		return 0, fmt.Errorf("%w: pool holds %d, need %d", ErrInsufficientSolForDistribution, poolBalance, DistributionThreshold)
	}
	return percentOf(poolBalance, 100-GasCostPercentage), nil
}

// CalculateShare is balance's pro-rata part of distributable, with the holding bonus
// applied once the account has held for HoldingBonusPeriod.
func (p *dividendProcessorImpl) CalculateShare(balance, totalSupply, distributable uint64, held time.Duration) uint64 {
	if balance == 0 || totalSupply == 0 {
		return 0
	}
	base := mulDiv(balance, distributable, totalSupply)
	if held >= HoldingBonusPeriod {
		return mulDiv(base, HoldingBonusMultiplier, HoldingBonusDivisor)
	}
	return base
}

// Plan computes payouts in snapshot order. Accounts of another mint are skipped and
// counted; they never stop the run.
func (p *dividendProcessorImpl) Plan(holders []models.HolderSnapshot, mint solana.PublicKey, totalSupply, distributable uint64, now time.Time) models.DistributionResult {
	result := models.DistributionResult{Distributable: distributable}
	for _, h := range holders {
		if !h.Mint.Equals(mint) {
			result.Skipped++
			continue
		}
		held := h.HoldingDuration(now)
		amount := p.CalculateShare(h.Balance, totalSupply, distributable, held)
		if amount == 0 {
			continue
		}
		result.Payouts = append(result.Payouts, models.Payout{
			Holder:    h.Account,
			Amount:    amount,
			BaseShare: p.CalculateShare(h.Balance, totalSupply, distributable, 0),
			Bonus:     held >= HoldingBonusPeriod,
		})
		result.TotalPaid += amount
	}
	return result
}
