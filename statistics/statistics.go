// Package statistics derives run-level performance metrics from a
// sleeve's equity history
package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/common"
	gctmath "github.com/quantfoundry/walkforward/common/math"
	"github.com/quantfoundry/walkforward/ledger"
)

// CalculateReport computes the sealed metrics for one run. regimes maps
// each snapshot date, normalised to UTC midnight, to the regime label
// observed that day; days without a label fall into an unlabelled slice
func CalculateReport(sleeveID string, snapshots []ledger.EquitySnapshot, regimes map[string]string, totalTraded decimal.Decimal) (*Report, error) {
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("%w for sleeve %q", errNoSnapshots, sleeveID)
	}

	report := &Report{
		SleeveID:    sleeveID,
		Days:        len(snapshots),
		StartEquity: snapshots[0].Equity,
		EndEquity:   snapshots[len(snapshots)-1].Equity,
	}

	returns := make([]decimal.Decimal, 0, len(snapshots)-1)
	returnsByLabel := make(map[string][]decimal.Decimal)
	equitySum := decimal.Zero
	for i := range snapshots {
		equitySum = equitySum.Add(snapshots[i].Equity)
		report.TotalFees = report.TotalFees.Add(snapshots[i].DayFees)
		if snapshots[i].Drawdown.LessThan(report.MaxDrawdown) {
			report.MaxDrawdown = snapshots[i].Drawdown
		}
		if i == 0 || snapshots[i-1].Equity.IsZero() {
			continue
		}
		r := snapshots[i].Equity.Div(snapshots[i-1].Equity).Sub(decimal.NewFromInt(1))
		returns = append(returns, r)
		label := regimes[snapshots[i].Date.Format(common.SimpleDateFormat)]
		returnsByLabel[label] = append(returnsByLabel[label], r)
	}

	if !report.StartEquity.IsZero() {
		report.CumulativeReturn = report.EndEquity.Div(report.StartEquity).Sub(decimal.NewFromInt(1))
		cagr, err := gctmath.DecimalCompoundAnnualGrowthRate(
			report.StartEquity, report.EndEquity,
			tradingDaysPerYear, decimal.NewFromInt(int64(len(snapshots))))
		if err == nil {
			report.AnnualisedReturn = cagr
		}
	}

	if len(returns) > 1 {
		stdDev, err := gctmath.DecimalSampleStandardDeviation(returns)
		if err != nil {
			return nil, err
		}
		annualise := decimal.NewFromFloat(math.Sqrt(tradingDaysPerYear.InexactFloat64()))
		report.AnnualisedVolatility = stdDev.Mul(annualise)
		mean, err := gctmath.DecimalArithmeticMean(returns)
		if err != nil {
			return nil, err
		}
		sharpe, err := gctmath.DecimalSharpeRatio(returns, decimal.Zero, mean)
		if err != nil {
			return nil, err
		}
		report.SharpeRatio = sharpe.Mul(annualise)
	}

	avgEquity := equitySum.Div(decimal.NewFromInt(int64(len(snapshots))))
	if !avgEquity.IsZero() {
		report.Turnover = totalTraded.Div(avgEquity)
	}

	report.RegimeSlices = regimeSlices(returnsByLabel)
	return report, nil
}

func regimeSlices(returnsByLabel map[string][]decimal.Decimal) []RegimeSlice {
	slices := make([]RegimeSlice, 0, len(returnsByLabel))
	for label, returns := range returnsByLabel {
		mean, err := gctmath.DecimalArithmeticMean(returns)
		if err != nil {
			continue
		}
		slices = append(slices, RegimeSlice{
			Label:           label,
			Days:            len(returns),
			MeanDailyReturn: mean,
		})
	}
	sort.Slice(slices, func(i, j int) bool { return slices[i].Label < slices[j].Label })
	return slices
}
