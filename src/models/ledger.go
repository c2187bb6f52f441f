// backend/src/models/ledger.go
package models

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Asset distinguishes the taxed token from the ledger's native value (lamports).
type Asset string

const (
	AssetToken  Asset = "token"
	AssetNative Asset = "native"
)

func (a Asset) Valid() bool {
	return a == AssetToken || a == AssetNative
}

// Movement kinds recorded in the movement log.
const (
	KindNetTransfer = "net_transfer"
	KindLPTax       = "lp_tax"
	KindDividendTax = "dividend_tax"
	KindBuyback     = "buyback"
	KindDividend    = "dividend"
	KindCredit      = "credit"
)

// LedgerMovement is one value transfer issued against the ledger.
type LedgerMovement struct {
	ID        string           `json:"id"`
	Kind      string           `json:"kind"`
	Asset     Asset            `json:"asset"`
	From      solana.PublicKey `json:"from"`
	To        solana.PublicKey `json:"to"`
	Amount    uint64           `json:"amount"`
	Memo      string           `json:"memo,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Account is a ledger account row.
type Account struct {
	Key             solana.PublicKey `json:"key"`
	Mint            solana.PublicKey `json:"mint"`
	Token           uint64           `json:"token"`
	Native          uint64           `json:"native"`
	FirstAcquiredAt *time.Time       `json:"first_acquired_at,omitempty"` // start of the current token holding
}

// Snapshot returns the registry view of the account.
func (a Account) Snapshot() HolderSnapshot {
	h := HolderSnapshot{Account: a.Key, Mint: a.Mint, Balance: a.Token}
	if a.FirstAcquiredAt != nil {
		h.HoldingStartTime = *a.FirstAcquiredAt
	}
	return h
}

// TokenStats is the protocol overview exposed by the stats endpoint.
type TokenStats struct {
	Mint                  solana.PublicKey `json:"mint"`
	TotalSupply           uint64           `json:"total_supply"`
	Holders               int              `json:"holders"`
	TotalDistributed      uint64           `json:"total_distributed"`
	TotalDistributedSOL   string           `json:"total_distributed_sol"`
	PoolBalance           uint64           `json:"pool_balance"`
	PoolBalanceSOL        string           `json:"pool_balance_sol"`
	DistributionThreshold uint64           `json:"distribution_threshold"`
	LastDistribution      *time.Time       `json:"last_distribution,omitempty"`
	Guard                 GuardState       `json:"guard"`
	GuardActivatedAt      *time.Time       `json:"guard_activated_at,omitempty"`
	PriceFluctuationBps   uint16           `json:"price_fluctuation_bps"`
	Revision              uint64           `json:"revision"`
}
