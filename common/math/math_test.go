package math

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func series(vals ...float64) []decimal.Decimal {
	resp := make([]decimal.Decimal, len(vals))
	for i := range vals {
		resp[i] = decimal.NewFromFloat(vals[i])
	}
	return resp
}

func TestDecimalArithmeticMean(t *testing.T) {
	t.Parallel()
	_, err := DecimalArithmeticMean(nil)
	assert.ErrorIs(t, err, ErrNoValues)

	mean, err := DecimalArithmeticMean(series(1, 2, 3, 4))
	assert.NoError(t, err)
	assert.True(t, mean.Equal(decimal.NewFromFloat(2.5)), "mean should be 2.5, got %v", mean)
}

func TestDecimalSampleStandardDeviation(t *testing.T) {
	t.Parallel()
	stdDev, err := DecimalSampleStandardDeviation(series(2, 4, 4, 4, 5, 5, 7, 9))
	assert.NoError(t, err)
	assert.InDelta(t, 2.138, stdDev.InexactFloat64(), 0.001)

	stdDev, err = DecimalSampleStandardDeviation(series(1))
	assert.NoError(t, err)
	assert.True(t, stdDev.IsZero())
}

func TestDecimalSharpeRatio(t *testing.T) {
	t.Parallel()
	rets := series(0.01, 0.02, -0.01, 0.03)
	avg, err := DecimalArithmeticMean(rets)
	assert.NoError(t, err)
	ratio, err := DecimalSharpeRatio(rets, decimal.Zero, avg)
	assert.NoError(t, err)
	assert.True(t, ratio.GreaterThan(decimal.Zero))

	ratio, err = DecimalSharpeRatio(series(0.01, 0.01, 0.01), decimal.Zero, decimal.NewFromFloat(0.01))
	assert.NoError(t, err)
	assert.True(t, ratio.IsZero(), "flat series has zero deviation, expected zero ratio")
}

func TestDecimalCompoundAnnualGrowthRate(t *testing.T) {
	t.Parallel()
	_, err := DecimalCompoundAnnualGrowthRate(decimal.Zero, decimal.NewFromInt(1), decimal.NewFromInt(252), decimal.NewFromInt(252))
	assert.ErrorIs(t, err, ErrZeroDenominator)

	cagr, err := DecimalCompoundAnnualGrowthRate(
		decimal.NewFromInt(100), decimal.NewFromInt(110),
		decimal.NewFromInt(252), decimal.NewFromInt(252))
	assert.NoError(t, err)
	assert.InDelta(t, 0.10, cagr.InexactFloat64(), 0.0001)
}
