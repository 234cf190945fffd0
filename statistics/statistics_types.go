package statistics

import (
	"errors"

	"github.com/shopspring/decimal"
)

// errNoSnapshots occurs when a report is requested for an empty equity
// history
var errNoSnapshots = errors.New("no equity snapshots")

// tradingDaysPerYear annualises daily figures
var tradingDaysPerYear = decimal.NewFromInt(252)

// RegimeSlice is the performance of the days observed under one regime
// label
type RegimeSlice struct {
	Label           string
	Days            int
	MeanDailyReturn decimal.Decimal
}

// Report is the sealed metric set for one sleeve's run
type Report struct {
	SleeveID             string
	Days                 int
	StartEquity          decimal.Decimal
	EndEquity            decimal.Decimal
	CumulativeReturn     decimal.Decimal
	AnnualisedReturn     decimal.Decimal
	AnnualisedVolatility decimal.Decimal
	SharpeRatio          decimal.Decimal
	MaxDrawdown          decimal.Decimal
	Turnover             decimal.Decimal
	TotalFees            decimal.Decimal
	RegimeSlices         []RegimeSlice
}
