// backend/src/models/holder.go
package models

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// HolderSnapshot is one asset account as seen by the holder registry.
type HolderSnapshot struct {
	Account          solana.PublicKey `json:"account"`
	Mint             solana.PublicKey `json:"mint"`
	Balance          uint64           `json:"balance"`
	HoldingStartTime time.Time        `json:"holding_start_time"` // zero when the account holds nothing
}

// HoldingDuration is how long the account has continuously held a non-zero balance.
func (h HolderSnapshot) HoldingDuration(now time.Time) time.Duration {
	if h.HoldingStartTime.IsZero() || now.Before(h.HoldingStartTime) {
		return 0
	}
	return now.Sub(h.HoldingStartTime)
}

// Payout is the dividend share computed for one holder.
type Payout struct {
	Holder    solana.PublicKey `json:"holder"`
	Amount    uint64           `json:"amount"`
	BaseShare uint64           `json:"base_share"`
	Bonus     bool             `json:"bonus"`
}

// DistributionResult is the outcome of one distribution pass (a whole run or a batch).
type DistributionResult struct {
	Distributable uint64   `json:"distributable"`
	Payouts       []Payout `json:"payouts"`
	TotalPaid     uint64   `json:"total_paid"`
	Skipped       int      `json:"skipped"`
}

// HolderView is the per-account summary exposed to clients.
type HolderView struct {
	Account         solana.PublicKey `json:"account"`
	Balance         uint64           `json:"balance"`
	HoldingDays     int              `json:"holding_days"`
	BonusEligible   bool             `json:"bonus_eligible"`
	NextDividend    uint64           `json:"next_dividend"`
	NextDividendSOL string           `json:"next_dividend_sol"`
	RecentDividends []LedgerMovement `json:"recent_dividends"`
}
