// backend/src/processors/transaction_processor.go
package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/username/soldrip/backend/src/models"
)

// TransferRequest carries everything needed to lay out the movements of one taxed transfer.
type TransferRequest struct {
	RequestID   string
	Source      solana.PublicKey
	Destination solana.PublicKey
	Memo        string
	Time        time.Time
}

// TransactionProcessor turns a tax breakdown and its routing into ordered ledger movements.
type TransactionProcessor struct{}

func NewTransactionProcessor() *TransactionProcessor { return &TransactionProcessor{} }

// Process lays out the token movements of a transfer: tax legs first, the net amount last.
// Zero-amount legs are dropped.
func (p *TransactionProcessor) Process(req TransferRequest, state *models.ProtocolState, b models.TaxBreakdown, r models.TaxRouting) []models.LedgerMovement {
	var legs []models.LedgerMovement
	add := func(kind string, to solana.PublicKey, amount uint64) {
		if amount == 0 {
			return
		}
		legs = append(legs, models.LedgerMovement{
			Kind:   kind,
			Asset:  models.AssetToken,
			From:   req.Source,
			To:     to,
			Amount: amount,
		})
	}

	switch r.Mode {
	case models.RouteBuyback:
		add(models.KindBuyback, state.BuybackEscrow, r.BuybackAmount)
		add(models.KindDividendTax, state.DividendPool, r.DividendAmount)
	default:
		add(models.KindLPTax, state.LPPool, r.LPAmount)
		add(models.KindDividendTax, state.DividendPool, r.DividendAmount)
	}
	add(models.KindNetTransfer, req.Destination, b.NetTransferAmount)

	for i := range legs {
		legs[i].Memo = req.Memo
		legs[i].CreatedAt = req.Time.UTC()
		legs[i].ID = generateHash(req.RequestID, i, legs[i])
	}
	return legs
}

// PayoutMovements lays out the native-value movements of a distribution batch.
func (p *TransactionProcessor) PayoutMovements(jobID string, batch int, pool solana.PublicKey, payouts []models.Payout, now time.Time) []models.LedgerMovement {
	legs := make([]models.LedgerMovement, 0, len(payouts))
	for i, po := range payouts {
		m := models.LedgerMovement{
			Kind:      models.KindDividend,
			Asset:     models.AssetNative,
			From:      pool,
			To:        po.Holder,
			Amount:    po.Amount,
			CreatedAt: now.UTC(),
		}
		m.ID = generateHash(fmt.Sprintf("%s/%d", jobID, batch), i, m)
		legs = append(legs, m)
	}
	return legs
}

// CreditMovement records value entering the ledger from outside (the initial supply or a
// funding credit). From is the zero key.
func (p *TransactionProcessor) CreditMovement(requestID string, account solana.PublicKey, asset models.Asset, amount uint64, now time.Time) models.LedgerMovement {
	m := models.LedgerMovement{
		Kind:      models.KindCredit,
		Asset:     asset,
		To:        account,
		Amount:    amount,
		CreatedAt: now.UTC(),
	}
	m.ID = generateHash(requestID, 0, m)
	return m
}

// generateHash creates a unique id for a movement from its request and position.
func generateHash(requestID string, index int, m models.LedgerMovement) string {
	input := fmt.Sprintf("%s|%d|%s|%s|%s|%s|%d", requestID, index, m.Kind, m.Asset, m.From, m.To, m.Amount)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
