package engines

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/common"
	gctmath "github.com/quantfoundry/walkforward/common/math"
	"github.com/quantfoundry/walkforward/datagate"
)

// Daily volatility thresholds separating the regime labels
var (
	calmVolThreshold   = decimal.NewFromFloat(0.005)
	stressVolThreshold = decimal.NewFromFloat(0.02)
)

// minReturnObservations is the fewest daily returns a volatility estimate
// will be produced from
const minReturnObservations = 5

// trailingVolRegime labels a region CALM, NORMAL or STRESS from the
// average trailing daily volatility of its instrument universe
type trailingVolRegime struct {
	settings Settings
}

func (e *trailingVolRegime) Name() string { return ModelTrailingVolRegime }

func (e *trailingVolRegime) Score(ctx context.Context, asOf time.Time, scope Scope, _ map[string]Output, _ string) (Output, error) {
	history, err := e.settings.Gate.BarHistory(scope.Instruments, asOf.AddDate(0, 0, -e.settings.Lookback), asOf)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}

	vols := make([]decimal.Decimal, 0, len(history))
	for _, instrument := range sortedKeys(history) {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		returns := dailyReturns(history[instrument])
		if len(returns) < minReturnObservations {
			continue
		}
		vol, err := gctmath.DecimalSampleStandardDeviation(returns)
		if err != nil {
			continue
		}
		vols = append(vols, vol)
	}
	if len(vols) == 0 {
		return Output{}, fmt.Errorf("%w: no usable price history for region %q at %s",
			ErrEngineFailure, scope.Region, asOf.Format(common.SimpleDateFormat))
	}
	avgVol, err := gctmath.DecimalArithmeticMean(vols)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}

	label := RegimeNormal
	switch {
	case avgVol.LessThan(calmVolThreshold):
		label = RegimeCalm
	case avgVol.GreaterThanOrEqual(stressVolThreshold):
		label = RegimeStress
	}
	return Output{
		Scores: map[string]decimal.Decimal{scope.Region: avgVol},
		Labels: map[string]string{scope.Region: label},
	}, nil
}

// rollingVolStability scores each instrument by the inverse of its
// trailing daily volatility, so quieter instruments score higher.
// Instruments without enough history are omitted, never zero-filled
type rollingVolStability struct {
	settings Settings
}

func (e *rollingVolStability) Name() string { return ModelRollingVolStability }

func (e *rollingVolStability) Score(ctx context.Context, asOf time.Time, scope Scope, _ map[string]Output, _ string) (Output, error) {
	history, err := e.settings.Gate.BarHistory(scope.Instruments, asOf.AddDate(0, 0, -e.settings.Lookback), asOf)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}

	one := decimal.NewFromInt(1)
	scores := make(map[string]decimal.Decimal)
	for _, instrument := range scope.Instruments {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		returns := dailyReturns(history[instrument])
		if len(returns) < minReturnObservations {
			continue
		}
		vol, err := gctmath.DecimalSampleStandardDeviation(returns)
		if err != nil {
			continue
		}
		scores[instrument] = one.Div(one.Add(vol))
	}
	return Output{Scores: scores}, nil
}

// momentumAssessment scores each instrument by its close-to-close return
// over the configured horizon
type momentumAssessment struct {
	settings Settings
}

func (e *momentumAssessment) Name() string { return ModelMomentumAssessment }

func (e *momentumAssessment) Score(ctx context.Context, asOf time.Time, scope Scope, _ map[string]Output, _ string) (Output, error) {
	history, err := e.settings.Gate.BarHistory(scope.Instruments, asOf.AddDate(0, 0, -e.settings.Horizon), asOf)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}

	scores := make(map[string]decimal.Decimal)
	for _, instrument := range scope.Instruments {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		bars := history[instrument]
		if len(bars) < 2 {
			continue
		}
		first := bars[0].Close
		last := bars[len(bars)-1].Close
		if first.IsZero() {
			continue
		}
		scores[instrument] = last.Div(first).Sub(decimal.NewFromInt(1))
	}
	return Output{Scores: scores}, nil
}

func dailyReturns(bars []datagate.MarketBar) []decimal.Decimal {
	if len(bars) < 2 {
		return nil
	}
	returns := make([]decimal.Decimal, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev.IsZero() {
			continue
		}
		returns = append(returns, bars[i].Close.Div(prev).Sub(decimal.NewFromInt(1)))
	}
	return returns
}

func sortedKeys(m map[string][]datagate.MarketBar) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
