package processors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/soldrip/backend/src/models"
)

const testSupply uint64 = 1_000_000_000

func TestComputeStandardTransfer(t *testing.T) {
	b, err := NewTaxProcessor().Compute(5_000_000, testSupply, 0)
	require.NoError(t, err)

	assert.False(t, b.LargeSale)
	assert.Equal(t, uint64(250_000), b.TotalTax)
	assert.Equal(t, uint64(50_000), b.LPTax)
	assert.Equal(t, uint64(200_000), b.DividendTax)
	assert.Equal(t, uint64(4_750_000), b.NetTransferAmount)
}

func TestComputeLargeSale(t *testing.T) {
	b, err := NewTaxProcessor().Compute(25_000_000, testSupply, 0)
	require.NoError(t, err)

	assert.True(t, b.LargeSale)
	assert.Equal(t, uint64(2_000_000), b.TotalTax)
	assert.Equal(t, uint64(250_000), b.LPTax)
	assert.Equal(t, uint64(1_750_000), b.DividendTax)
	assert.Equal(t, uint64(23_000_000), b.NetTransferAmount)
}

func TestLargeSaleBoundary(t *testing.T) {
	threshold := testSupply * LargeSaleThresholdPercentage / 100
	assert.False(t, IsLargeSale(threshold, testSupply))
	assert.True(t, IsLargeSale(threshold+1, testSupply))

	p := NewTaxProcessor()
	atThreshold, err := p.Compute(threshold, testSupply, 0)
	require.NoError(t, err)
	assert.Equal(t, threshold*TaxPercentage/100, atThreshold.TotalTax)

	above, err := p.Compute(threshold+100, testSupply, 0)
	require.NoError(t, err)
	assert.Equal(t, (threshold+100)*HighTaxPercentage/100, above.TotalTax)
}

func TestComputeMaximumHolding(t *testing.T) {
	p := NewTaxProcessor()
	limit := MaxHolding(testSupply)
	require.Equal(t, uint64(30_000_000), limit)

	// net of 1_000_000 is 950_000
	_, err := p.Compute(1_000_000, testSupply, limit-950_000)
	assert.NoError(t, err)

	_, err = p.Compute(1_000_000, testSupply, limit-950_000+1)
	assert.ErrorIs(t, err, ErrExceedsMaximumHolding)

	_, err = p.Compute(1, testSupply, limit+1)
	assert.ErrorIs(t, err, ErrExceedsMaximumHolding)
}

func TestComputeInvariants(t *testing.T) {
	p := NewTaxProcessor()
	supply := uint64(math.MaxUint64)
	for _, amount := range []uint64{1, 19, 20, 99, 101, 12_345_678, 1 << 40, supply / 50, supply/50 + 1, supply / 40} {
		b, err := p.Compute(amount, supply, 0)
		require.NoError(t, err, amount)
		assert.LessOrEqual(t, b.LPTax+b.DividendTax, b.TotalTax, amount)
		assert.Equal(t, amount, b.NetTransferAmount+b.TotalTax, amount)
	}
}

func TestRouteNormal(t *testing.T) {
	p := NewTaxProcessor()
	b, err := p.Compute(5_000_000, testSupply, 0)
	require.NoError(t, err)

	r := p.Route(b, false)
	assert.Equal(t, models.RouteNormal, r.Mode)
	assert.Equal(t, uint64(50_000), r.LPAmount)
	assert.Equal(t, uint64(200_000), r.DividendAmount)
	assert.Zero(t, r.BuybackAmount)
}

func TestRouteBuyback(t *testing.T) {
	p := NewTaxProcessor()
	b, err := p.Compute(5_000_000, testSupply, 0)
	require.NoError(t, err)

	r := p.Route(b, true)
	assert.Equal(t, models.RouteBuyback, r.Mode)
	assert.Zero(t, r.LPAmount)
	assert.Equal(t, uint64(200_000), r.BuybackAmount)
	assert.Equal(t, uint64(50_000), r.DividendAmount)
	assert.Equal(t, b.TotalTax, r.BuybackAmount+r.DividendAmount)
}

func TestMulDivDoesNotOverflow(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64/100*8+math.MaxUint64%100*8/100), mulDiv(math.MaxUint64, 8, 100))
	assert.Equal(t, uint64(0), mulDiv(0, 5, 100))
	assert.Equal(t, uint64(math.MaxUint64), mulDiv(math.MaxUint64, 2, 1))
}
