// backend/src/models/distribution.go
package models

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

type JobStatus string

const (
	JobOpen      JobStatus = "open"
	JobCompleted JobStatus = "completed"
)

// DistributionJob is a checkpointed distribution run. Holders are paid in
// ascending account order; Cursor is the last account already processed.
type DistributionJob struct {
	ID            string           `json:"id"`
	Status        JobStatus        `json:"status"`
	PoolBalance   uint64           `json:"pool_balance"`
	Distributable uint64           `json:"distributable"`
	Cursor        solana.PublicKey `json:"cursor"`
	HasCursor     bool             `json:"-"`
	TotalPaid     uint64           `json:"total_paid"`
	Recipients    int              `json:"recipients"`
	Skipped       int              `json:"skipped"`
	Batches       int              `json:"batches"`
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

// DistributionSummary is returned by DistributeDividends.
type DistributionSummary struct {
	Job       DistributionJob `json:"job"`
	Resumed   bool            `json:"resumed"`
	Payouts   []Payout        `json:"payouts"`
	Completed bool            `json:"completed"`
	Revision  uint64          `json:"revision"`
}
