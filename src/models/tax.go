// backend/src/models/tax.go
package models

// TaxBreakdown is the per-transfer tax split. It is never persisted.
type TaxBreakdown struct {
	Amount            uint64 `json:"amount"`
	TotalTax          uint64 `json:"total_tax"`
	LPTax             uint64 `json:"lp_tax"`
	DividendTax       uint64 `json:"dividend_tax"`
	NetTransferAmount uint64 `json:"net_transfer_amount"`
	LargeSale         bool   `json:"large_sale"`
}

// RoutingMode decides where the collected tax goes.
type RoutingMode string

const (
	RouteNormal  RoutingMode = "normal"
	RouteBuyback RoutingMode = "buyback"
)

// TaxRouting is the concrete destination split of a TaxBreakdown.
type TaxRouting struct {
	Mode           RoutingMode `json:"mode"`
	LPAmount       uint64      `json:"lp_amount"`
	DividendAmount uint64      `json:"dividend_amount"`
	BuybackAmount  uint64      `json:"buyback_amount"`
}

// TransferResult is returned by a successful TransferWithTax.
type TransferResult struct {
	Breakdown TaxBreakdown     `json:"breakdown"`
	Routing   TaxRouting       `json:"routing"`
	Movements []LedgerMovement `json:"movements"`
	Guard     GuardState       `json:"guard"`
	Revision  uint64           `json:"revision"`
}

// TaxDetail aggregates collected tax of one kind for one day.
type TaxDetail struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Kind     string `json:"kind"`
	Amount   uint64 `json:"amount"`
	Count    int    `json:"count"`
	Category string `json:"category"`
}
