package processors

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/soldrip/backend/src/models"
)

func TestDistributableThreshold(t *testing.T) {
	p := NewDividendProcessor()

	_, err := p.Distributable(DistributionThreshold - 1)
	assert.ErrorIs(t, err, ErrInsufficientSolForDistribution)

	d, err := p.Distributable(DistributionThreshold)
	require.NoError(t, err)
	assert.Equal(t, uint64(98_000_000), d)
}

func TestCalculateShare(t *testing.T) {
	p := NewDividendProcessor()

	assert.Zero(t, p.CalculateShare(0, testSupply, 98_000_000, 0))
	assert.Zero(t, p.CalculateShare(200_000_000, 0, 98_000_000, 0))

	base := p.CalculateShare(200_000_000, testSupply, 98_000_000, 0)
	assert.Equal(t, uint64(19_600_000), base)
	assert.Equal(t, 2*base, p.CalculateShare(400_000_000, testSupply, 98_000_000, 0))

	bonused := p.CalculateShare(200_000_000, testSupply, 98_000_000, HoldingBonusPeriod)
	assert.Equal(t, uint64(21_560_000), bonused)
	assert.Equal(t, base, p.CalculateShare(200_000_000, testSupply, 98_000_000, HoldingBonusPeriod-time.Second))
}

func TestPlanSkipsForeignMint(t *testing.T) {
	p := NewDividendProcessor()
	now := time.Unix(1_700_000_000, 0)
	mint := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()

	veteran := solana.NewWallet().PublicKey()
	newcomer := solana.NewWallet().PublicKey()
	holders := []models.HolderSnapshot{
		{Account: veteran, Mint: mint, Balance: 200_000_000, HoldingStartTime: now.Add(-8 * 24 * time.Hour)},
		{Account: solana.NewWallet().PublicKey(), Mint: other, Balance: 500_000_000},
		{Account: newcomer, Mint: mint, Balance: 100_000_000, HoldingStartTime: now.Add(-time.Hour)},
		{Account: solana.NewWallet().PublicKey(), Mint: mint, Balance: 0},
	}

	result := p.Plan(holders, mint, testSupply, 98_000_000, now)
	require.Len(t, result.Payouts, 2)
	assert.Equal(t, 1, result.Skipped)

	assert.True(t, result.Payouts[0].Holder.Equals(veteran))
	assert.Equal(t, uint64(21_560_000), result.Payouts[0].Amount)
	assert.Equal(t, uint64(19_600_000), result.Payouts[0].BaseShare)
	assert.True(t, result.Payouts[0].Bonus)

	assert.True(t, result.Payouts[1].Holder.Equals(newcomer))
	assert.Equal(t, uint64(9_800_000), result.Payouts[1].Amount)
	assert.False(t, result.Payouts[1].Bonus)

	assert.Equal(t, uint64(31_360_000), result.TotalPaid)
}
