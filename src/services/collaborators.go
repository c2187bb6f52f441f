package services

import (
	"context"
	"fmt"
	"time"

	"github.com/username/soldrip/backend/src/logger"
	"github.com/username/soldrip/backend/src/models"
	"github.com/username/soldrip/backend/src/processors"
)

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// StateVolatilityFeed reports the fluctuation last pushed through SetPriceFluctuation.
type StateVolatilityFeed struct{}

func (StateVolatilityFeed) FluctuationBps(_ context.Context, state *models.ProtocolState) (uint16, error) {
	return state.PriceFluctuationBps, nil
}

// EscrowMarketMaker parks earmarked buyback tokens in the escrow account for an
// operator to execute later.
type EscrowMarketMaker struct{}

func (EscrowMarketMaker) Buyback(ctx context.Context, ledger Ledger, order BuybackOrder) error {
	if order.Escrow.IsZero() {
		return fmt.Errorf("%w: no buyback escrow configured", processors.ErrInvalidTokenAccount)
	}
	if err := ledger.Transfer(ctx, order.From, order.Escrow, models.AssetToken, order.Amount); err != nil {
		return fmt.Errorf("escrow buyback: %w", err)
	}
	logger.FromContext(ctx).Info("Buyback amount escrowed",
		"requestID", order.RequestID, "from", order.From.String(), "escrow", order.Escrow.String(), "amount", order.Amount)
	return nil
}
