// backend/src/processors/tax_processor.go
package processors

import (
	"fmt"

	"github.com/username/soldrip/backend/src/models"
)

const (
	TaxPercentage                = 5 // standard total tax
	HighTaxPercentage            = 8 // total tax for large sales
	LPTaxPercentage              = 1
	DividendTaxPercentage        = 4
	HighDividendTaxPercentage    = 7
	LargeSaleThresholdPercentage = 2 // of total supply
	MaxHoldingPercentage         = 3 // of total supply
	BuybackPercentage            = 80
)

// TaxProcessor computes the tax split of a transfer.
type TaxProcessor interface {
	Compute(amount, totalSupply, destinationBalance uint64) (models.TaxBreakdown, error)
	Route(breakdown models.TaxBreakdown, buyback bool) models.TaxRouting
}

type taxProcessorImpl struct{}

func NewTaxProcessor() TaxProcessor {
	return &taxProcessorImpl{}
}

// IsLargeSale reports whether amount exceeds the large-sale share of totalSupply.
func IsLargeSale(amount, totalSupply uint64) bool {
	return amount > percentOf(totalSupply, LargeSaleThresholdPercentage)
}

// MaxHolding is the largest balance a single account may reach.
func MaxHolding(totalSupply uint64) uint64 {
	return percentOf(totalSupply, MaxHoldingPercentage)
}

// Compute returns the tax breakdown for amount, or ErrExceedsMaximumHolding when the
// destination would end up above the holding cap.
func (p *taxProcessorImpl) Compute(amount, totalSupply, destinationBalance uint64) (models.TaxBreakdown, error) {
	large := IsLargeSale(amount, totalSupply)

	totalPct, dividendPct := uint64(TaxPercentage), uint64(DividendTaxPercentage)
	if large {
		totalPct, dividendPct = HighTaxPercentage, HighDividendTaxPercentage
	}

	b := models.TaxBreakdown{
		Amount:      amount,
		TotalTax:    percentOf(amount, totalPct),
		LPTax:       percentOf(amount, LPTaxPercentage),
		DividendTax: percentOf(amount, dividendPct),
		LargeSale:   large,
	}
	b.NetTransferAmount = amount - b.TotalTax

	limit := MaxHolding(totalSupply)
	if destinationBalance > limit || b.NetTransferAmount > limit-destinationBalance {
		return models.TaxBreakdown{}, fmt.Errorf("%w: destination would hold %d+%d, limit %d",
			ErrExceedsMaximumHolding, destinationBalance, b.NetTransferAmount, limit)
	}
	return b, nil
}

// Route splits the collected tax between its destinations. Under buyback routing the LP
// portion is skipped and BuybackPercentage of the total tax is earmarked for the market maker.
func (p *taxProcessorImpl) Route(b models.TaxBreakdown, buyback bool) models.TaxRouting {
	if !buyback {
		return models.TaxRouting{
			Mode:           models.RouteNormal,
			LPAmount:       b.LPTax,
			DividendAmount: b.DividendTax,
		}
	}
	earmarked := percentOf(b.TotalTax, BuybackPercentage)
	return models.TaxRouting{
		Mode:           models.RouteBuyback,
		BuybackAmount:  earmarked,
		DividendAmount: b.TotalTax - earmarked,
	}
}
