// backend/src/models/state.go
package models

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// ProtocolState is the single persisted record of a protocol instance.
// Field order is the fixed binary layout written by the state codec; append only.
type ProtocolState struct {
	Mint          solana.PublicKey `json:"mint"`
	DividendPool  solana.PublicKey `json:"dividend_pool"`
	LPPool        solana.PublicKey `json:"lp_pool"`
	BuybackEscrow solana.PublicKey `json:"buyback_escrow"`

	TotalSupply          uint64 `json:"total_supply"`
	TotalDistributed     uint64 `json:"total_distributed"`
	LastDistributionTime int64  `json:"last_distribution_time"` // unix seconds, 0 = never

	PriceFluctuationBps uint16 `json:"price_fluctuation_bps"`

	GuardActive      bool  `json:"guard_active"`
	GuardActivatedAt int64 `json:"guard_activated_at"` // unix seconds, only meaningful while GuardActive

	Revision uint64 `json:"revision"`

	Authority solana.PublicKey `json:"authority"` // signer of Initialize; required for feed and credit updates
}

// GuardState is the circuit-breaker state derived from the record.
type GuardState string

const (
	GuardNormal    GuardState = "normal"
	GuardProtected GuardState = "protected"
)

func (s *ProtocolState) Guard() GuardState {
	if s.GuardActive {
		return GuardProtected
	}
	return GuardNormal
}

// LastDistributionAt returns the zero time when no distribution has completed yet.
func (s *ProtocolState) LastDistributionAt() time.Time {
	if s.LastDistributionTime == 0 {
		return time.Time{}
	}
	return time.Unix(s.LastDistributionTime, 0).UTC()
}
