// backend/src/processors/fee_processor.go
package processors

import (
	"sort"

	"github.com/username/soldrip/backend/src/models"
)

type feeProcessorImpl struct{}

// FeeProcessor aggregates collected tax proceeds for reporting.
type FeeProcessor interface {
	Process(movements []models.LedgerMovement) []models.TaxDetail
}

func NewFeeProcessor() FeeProcessor {
	return &feeProcessorImpl{}
}

var taxCategories = map[string]string{
	models.KindLPTax:       "Liquidity Pool",
	models.KindDividendTax: "Dividend Pool",
	models.KindBuyback:     "Buyback",
}

// Process sums tax movements per day and kind. Net transfers, payouts and credits are ignored.
func (p *feeProcessorImpl) Process(movements []models.LedgerMovement) []models.TaxDetail {
	type key struct{ date, kind string }
	index := make(map[key]int)
	var details []models.TaxDetail

	for _, m := range movements {
		category, ok := taxCategories[m.Kind]
		if !ok {
			continue
		}
		k := key{date: m.CreatedAt.UTC().Format("2006-01-02"), kind: m.Kind}
		i, seen := index[k]
		if !seen {
			details = append(details, models.TaxDetail{Date: k.date, Kind: k.kind, Category: category})
			i = len(details) - 1
			index[k] = i
		}
		details[i].Amount += m.Amount
		details[i].Count++
	}

	sort.SliceStable(details, func(a, b int) bool {
		if details[a].Date != details[b].Date {
			return details[a].Date > details[b].Date
		}
		return details[a].Kind < details[b].Kind
	})
	return details
}
