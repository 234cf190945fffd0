// Package math provides shared decimal statistics helpers for
// performance metric calculations
package math

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoValues is returned when a calculation receives an empty series
	ErrNoValues = errors.New("cannot calculate average of no values")
	// ErrZeroDenominator is returned when a ratio would divide by zero
	ErrZeroDenominator = errors.New("cannot divide by zero")
)

// DecimalArithmeticMean returns the arithmetic mean of a series
func DecimalArithmeticMean(values []decimal.Decimal) (decimal.Decimal, error) {
	if len(values) == 0 {
		return decimal.Zero, ErrNoValues
	}
	sum := decimal.Zero
	for i := range values {
		sum = sum.Add(values[i])
	}
	return sum.Div(decimal.NewFromInt(int64(len(values)))), nil
}

// DecimalSampleStandardDeviation returns the sample standard deviation of a
// series. The final square root is taken in float64 space; the precision
// loss is immaterial for ratio reporting
func DecimalSampleStandardDeviation(values []decimal.Decimal) (decimal.Decimal, error) {
	if len(values) < 2 {
		return decimal.Zero, nil
	}
	mean, err := DecimalArithmeticMean(values)
	if err != nil {
		return decimal.Zero, err
	}
	sumSquares := decimal.Zero
	for i := range values {
		d := values[i].Sub(mean)
		sumSquares = sumSquares.Add(d.Mul(d))
	}
	variance := sumSquares.Div(decimal.NewFromInt(int64(len(values) - 1)))
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64())), nil
}

// DecimalSharpeRatio returns the Sharpe ratio of a series of per-interval
// returns against a per-interval risk free rate
func DecimalSharpeRatio(returnsPerInterval []decimal.Decimal, riskFreeRate, average decimal.Decimal) (decimal.Decimal, error) {
	stdDev, err := DecimalSampleStandardDeviation(returnsPerInterval)
	if err != nil {
		return decimal.Zero, err
	}
	if stdDev.IsZero() {
		return decimal.Zero, nil
	}
	return average.Sub(riskFreeRate).Div(stdDev), nil
}

// DecimalCompoundAnnualGrowthRate returns the CAGR over a number of
// intervals given how many intervals make up a year
func DecimalCompoundAnnualGrowthRate(openValue, closeValue, intervalsPerYear, numberOfIntervals decimal.Decimal) (decimal.Decimal, error) {
	if openValue.IsZero() || numberOfIntervals.IsZero() {
		return decimal.Zero, ErrZeroDenominator
	}
	growth := closeValue.Div(openValue).InexactFloat64()
	exponent := intervalsPerYear.Div(numberOfIntervals).InexactFloat64()
	if growth <= 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(math.Pow(growth, exponent) - 1), nil
}
