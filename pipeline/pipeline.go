// Package pipeline runs one sleeve's daily decision chain: gated data
// load, regime, stability and assessment scoring, universe build,
// portfolio targeting and order submission. Every stage transition is
// recorded as an append-only EngineDecision row
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/common"
	"github.com/quantfoundry/walkforward/config"
	"github.com/quantfoundry/walkforward/datagate"
	"github.com/quantfoundry/walkforward/engines"
	"github.com/quantfoundry/walkforward/ledger"
	"github.com/quantfoundry/walkforward/log"
	"github.com/quantfoundry/walkforward/order"
)

// maxScoringWorkers bounds the per-instrument scoring fan-out within one
// stage
const maxScoringWorkers = 8

// dustQuantity is the smallest order size worth submitting
var dustQuantity = decimal.NewFromInt(1)

// Runner executes the stage machine for one sleeve. It owns no clock;
// the caller passes each date and days must arrive in ascending order
type Runner struct {
	sleeve     config.SleeveConfig
	gate       *datagate.Gate
	ledger     *ledger.Ledger
	regime     engines.Engine
	stability  engines.Engine
	assessment engines.Engine
}

// NewRunner wires a runner with the reference engines selected by the
// sleeve's model ids
func NewRunner(sleeve config.SleeveConfig, gate *datagate.Gate, l *ledger.Ledger) (*Runner, error) {
	if gate == nil || l == nil {
		return nil, fmt.Errorf("%w: gate or ledger", common.ErrNilArguments)
	}
	settings := engines.Settings{Gate: gate, Horizon: sleeve.HorizonDays}
	regime, err := engines.New(engines.StageRegime, sleeve.RegimeModelID, settings)
	if err != nil {
		return nil, err
	}
	stability, err := engines.New(engines.StageStability, sleeve.StabilityModelID, settings)
	if err != nil {
		return nil, err
	}
	assessment, err := engines.New(engines.StageAssessment, sleeve.AssessmentModelID, settings)
	if err != nil {
		return nil, err
	}
	return NewRunnerWithEngines(sleeve, gate, l, regime, stability, assessment)
}

// NewRunnerWithEngines wires a runner with caller-supplied engines
func NewRunnerWithEngines(sleeve config.SleeveConfig, gate *datagate.Gate, l *ledger.Ledger, regime, stability, assessment engines.Engine) (*Runner, error) {
	if gate == nil || l == nil {
		return nil, fmt.Errorf("%w: gate or ledger", common.ErrNilArguments)
	}
	if regime == nil || stability == nil || assessment == nil {
		return nil, errNoEngine
	}
	return &Runner{
		sleeve:     sleeve,
		gate:       gate,
		ledger:     l,
		regime:     regime,
		stability:  stability,
		assessment: assessment,
	}, nil
}

// RunDay walks the stage machine for one date. Engine failures and
// timeouts skip the day and are reported in the result, never as an
// error; a returned error is fatal for the sleeve
func (r *Runner) RunDay(ctx context.Context, date time.Time) (*DayResult, error) {
	date = common.NormaliseDate(date)
	res := &DayResult{
		SleeveID: r.sleeve.SleeveID,
		Date:     date,
		Targets:  make(map[string]decimal.Decimal),
	}

	bars, err := r.gate.DailyBars(r.sleeve.Instruments, date)
	if err != nil {
		return nil, err
	}
	res.Bars = bars
	available := make([]string, 0, len(bars))
	for _, instrument := range r.sleeve.Instruments {
		if _, ok := bars[instrument]; ok {
			available = append(available, instrument)
			continue
		}
		r.decide(res, decisionArgs{
			stage:  StageDataReady,
			status: DecisionDataGap,
			note:   fmt.Sprintf("no bar for %s", instrument),
		})
		res.DataGaps++
	}
	r.decide(res, decisionArgs{
		stage:     StageDataReady,
		status:    DecisionOK,
		inputRef:  fmt.Sprintf("%s:%s", datagate.PricesDaily, date.Format(common.SimpleDateFormat)),
		outputRef: fmt.Sprintf("bars:%d", len(available)),
	})
	if len(available) == 0 {
		r.skipDay(res, StageRegimeScored, "no instruments with bars")
		return res, nil
	}

	scope := engines.Scope{Region: r.sleeve.Region, Instruments: available}
	upstream := make(map[string]engines.Output)

	regimeOut, ok := r.invokeStage(ctx, res, StageRegimeScored, r.regime, r.sleeve.RegimeModelID, date, scope, upstream)
	if !ok {
		return res, nil
	}
	res.RegimeLabel = regimeOut.Labels[r.sleeve.Region]
	upstream[engines.StageRegime] = regimeOut

	stabilityScores, ok := r.scoreEachInstrument(ctx, res, StageStabilityScored, r.stability, r.sleeve.StabilityModelID, date, available, upstream)
	if !ok {
		return res, nil
	}
	upstream[engines.StageStability] = engines.Output{Scores: stabilityScores}

	assessmentScores, ok := r.scoreEachInstrument(ctx, res, StageAssessmentScored, r.assessment, r.sleeve.AssessmentModelID, date, available, upstream)
	if !ok {
		return res, nil
	}

	res.Universe = r.buildUniverse(res, available, stabilityScores, assessmentScores)
	r.buildTargets(res, stabilityScores, assessmentScores)
	if err := r.submitOrders(res); err != nil {
		return nil, err
	}
	r.decide(res, decisionArgs{stage: StageDone, status: DecisionOK})
	return res, nil
}

// invokeStage runs one whole-scope engine under the sleeve's timeout and
// records the decision row. A false return means the day is skipped
func (r *Runner) invokeStage(ctx context.Context, res *DayResult, stage string, e engines.Engine, configID string, asOf time.Time, scope engines.Scope, upstream map[string]engines.Output) (engines.Output, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.sleeve.EngineTimeout)
	defer cancel()
	start := time.Now()
	out, err := e.Score(ctx, asOf, scope, upstream, configID)
	latency := time.Since(start)
	if err != nil {
		r.recordEngineFailure(res, stage, e, configID, latency, err)
		r.skipDay(res, stage, err.Error())
		return engines.Output{}, false
	}
	r.decide(res, decisionArgs{
		stage:     stage,
		engine:    e.Name(),
		configID:  configID,
		status:    DecisionOK,
		inputRef:  fmt.Sprintf("instruments:%d", len(scope.Instruments)),
		outputRef: fmt.Sprintf("scores:%d", len(out.Scores)),
		latency:   latency,
	})
	return out, true
}

// scoreEachInstrument fans one engine out across the available
// instruments on a bounded worker set and merges results in instrument-id
// order. Any engine error fails the stage and skips the day
func (r *Runner) scoreEachInstrument(ctx context.Context, res *DayResult, stage string, e engines.Engine, configID string, asOf time.Time, instruments []string, upstream map[string]engines.Output) (map[string]decimal.Decimal, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.sleeve.EngineTimeout)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		scores   = make(map[string]decimal.Decimal, len(instruments))
		sem      = make(chan struct{}, maxScoringWorkers)
	)
	start := time.Now()
	for i := range instruments {
		wg.Add(1)
		go func(instrument string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out, err := e.Score(ctx, asOf,
				engines.Scope{Region: r.sleeve.Region, Instruments: []string{instrument}},
				upstream, configID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if score, ok := out.Scores[instrument]; ok {
				scores[instrument] = score
			}
		}(instruments[i])
	}
	wg.Wait()
	latency := time.Since(start)

	if firstErr != nil {
		r.recordEngineFailure(res, stage, e, configID, latency, firstErr)
		r.skipDay(res, stage, firstErr.Error())
		return nil, false
	}
	r.decide(res, decisionArgs{
		stage:     stage,
		engine:    e.Name(),
		configID:  configID,
		status:    DecisionOK,
		inputRef:  fmt.Sprintf("instruments:%d", len(instruments)),
		outputRef: fmt.Sprintf("scores:%d", len(scores)),
		latency:   latency,
	})
	return scores, true
}

// buildUniverse keeps instruments scored by both per-instrument stages.
// Exclusions are logged as DATA_GAP decisions, never zero-filled
func (r *Runner) buildUniverse(res *DayResult, available []string, stability, assessment map[string]decimal.Decimal) []string {
	universe := make([]string, 0, len(available))
	for _, instrument := range available {
		_, hasStability := stability[instrument]
		_, hasAssessment := assessment[instrument]
		if hasStability && hasAssessment {
			universe = append(universe, instrument)
			continue
		}
		r.decide(res, decisionArgs{
			stage:  StageUniverseBuilt,
			status: DecisionDataGap,
			note:   fmt.Sprintf("%s missing score", instrument),
		})
		res.DataGaps++
	}
	sort.Strings(universe)
	r.decide(res, decisionArgs{
		stage:     StageUniverseBuilt,
		status:    DecisionOK,
		outputRef: fmt.Sprintf("universe:%d", len(universe)),
	})
	return universe
}

// buildTargets converts scores into target share quantities: long-only
// assessment-weighted allocations scaled by stability, clipped by the
// position, leverage and regime constraints. Clipping never rejects the
// rebalance
func (r *Runner) buildTargets(res *DayResult, stability, assessment map[string]decimal.Decimal) {
	raw := make(map[string]decimal.Decimal, len(res.Universe))
	total := decimal.Zero
	for _, instrument := range res.Universe {
		score := assessment[instrument]
		if score.LessThanOrEqual(decimal.Zero) {
			continue
		}
		weighted := score.Mul(stability[instrument])
		raw[instrument] = weighted
		total = total.Add(weighted)
	}

	weights := make(map[string]decimal.Decimal, len(raw))
	if total.GreaterThan(decimal.Zero) {
		grossWeight := decimal.Zero
		for instrument, v := range raw {
			w := v.Div(total)
			if w.GreaterThan(r.sleeve.Constraints.MaxPositionWeight) {
				w = r.sleeve.Constraints.MaxPositionWeight
				res.Clipped++
			}
			weights[instrument] = w
			grossWeight = grossWeight.Add(w)
		}
		if grossWeight.GreaterThan(r.sleeve.Constraints.MaxLeverage) {
			scale := r.sleeve.Constraints.MaxLeverage.Div(grossWeight)
			for instrument := range weights {
				weights[instrument] = weights[instrument].Mul(scale)
			}
			res.Clipped++
		}
		if riskScale, ok := r.sleeve.RegimeRiskScales[res.RegimeLabel]; ok {
			for instrument := range weights {
				weights[instrument] = weights[instrument].Mul(riskScale)
			}
		}
	}

	equity := r.markedEquity(res.Bars)
	for _, instrument := range res.Universe {
		w, ok := weights[instrument]
		if !ok {
			res.Targets[instrument] = decimal.Zero
			continue
		}
		closePrice := res.Bars[instrument].Close
		if closePrice.IsZero() {
			res.Targets[instrument] = decimal.Zero
			continue
		}
		res.Targets[instrument] = w.Mul(equity).Div(closePrice).Floor()
	}
	r.decide(res, decisionArgs{
		stage:     StagePortfolioTarget,
		status:    DecisionOK,
		outputRef: fmt.Sprintf("targets:%d regime:%s", len(weights), res.RegimeLabel),
	})
}

// submitOrders diffs targets against current positions, applies the
// turnover cap and dust filter and submits the surviving orders
func (r *Runner) submitOrders(res *DayResult) error {
	deltas := make(map[string]decimal.Decimal, len(res.Targets))
	equity := r.markedEquity(res.Bars)
	traded := decimal.Zero
	for _, instrument := range res.Universe {
		current := decimal.Zero
		if p, ok := r.ledger.Position(instrument); ok {
			current = p.Quantity
		}
		// rolled open remainders are already on their way to the target;
		// ordering against the position alone would double up
		current = current.Add(r.ledger.OpenInterest(instrument))
		delta := res.Targets[instrument].Sub(current)
		if delta.IsZero() {
			continue
		}
		deltas[instrument] = delta
		traded = traded.Add(delta.Abs().Mul(res.Bars[instrument].Close))
	}

	maxTraded := r.sleeve.Constraints.MaxDailyTurnover.Mul(equity)
	if traded.GreaterThan(maxTraded) && traded.GreaterThan(decimal.Zero) {
		scale := maxTraded.Div(traded)
		for instrument := range deltas {
			deltas[instrument] = deltas[instrument].Mul(scale).Truncate(0)
		}
		res.Clipped++
	}

	submitted := 0
	for _, instrument := range res.Universe {
		delta, ok := deltas[instrument]
		if !ok || delta.Abs().LessThan(dustQuantity) {
			continue
		}
		side := order.Buy
		if delta.IsNegative() {
			side = order.Sell
		}
		o, err := order.New(r.sleeve.SleeveID, instrument, side, delta.Abs(), res.Date)
		if err != nil {
			return err
		}
		if err := r.ledger.Submit(o); err != nil {
			if errors.Is(err, ledger.ErrConstraintViolation) {
				log.Warnf(log.Pipeline, "%s %s order clipped away: %v",
					r.sleeve.SleeveID, instrument, err)
				res.Clipped++
				continue
			}
			return err
		}
		res.Orders = append(res.Orders, o)
		submitted++
	}
	r.decide(res, decisionArgs{
		stage:     StageOrdersSubmitted,
		status:    DecisionOK,
		outputRef: fmt.Sprintf("orders:%d", submitted),
	})
	return nil
}

// markedEquity values the ledger at the day's closes, falling back to the
// last mark where a bar is missing
func (r *Runner) markedEquity(bars map[string]datagate.MarketBar) decimal.Decimal {
	equity := r.ledger.Cash()
	for _, p := range r.ledger.Positions() {
		price := p.MarkPrice
		if bar, ok := bars[p.Instrument]; ok {
			price = bar.Close
		}
		equity = equity.Add(p.Quantity.Mul(price))
	}
	return equity
}

func (r *Runner) recordEngineFailure(res *DayResult, stage string, e engines.Engine, configID string, latency time.Duration, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %s", engines.ErrEngineTimeout, e.Name())
	}
	log.Warnf(log.Pipeline, "%s %s engine failed on %s: %v",
		r.sleeve.SleeveID, stage, res.Date.Format(common.SimpleDateFormat), err)
	r.decide(res, decisionArgs{
		stage:    stage,
		engine:   e.Name(),
		configID: configID,
		status:   DecisionFailed,
		latency:  latency,
		note:     err.Error(),
	})
}

// skipDay marks the rest of the day abandoned. No orders are submitted
// and a SKIPPED row records the reason
func (r *Runner) skipDay(res *DayResult, stage, reason string) {
	res.Skipped = true
	r.decide(res, decisionArgs{
		stage:  stage,
		status: DecisionSkipped,
		note:   reason,
	})
}

type decisionArgs struct {
	stage     string
	engine    string
	configID  string
	status    DecisionStatus
	inputRef  string
	outputRef string
	latency   time.Duration
	note      string
}

func (r *Runner) decide(res *DayResult, args decisionArgs) {
	res.Decisions = append(res.Decisions, EngineDecision{
		ID: order.DeriveID(r.sleeve.SleeveID, "decision",
			res.Date.Format(common.SimpleDateFormat),
			args.stage, strconv.Itoa(len(res.Decisions))),
		SleeveID:  r.sleeve.SleeveID,
		Stage:     args.stage,
		Engine:    args.engine,
		AsOf:      res.Date,
		ConfigID:  args.configID,
		Status:    args.status,
		InputRef:  args.inputRef,
		OutputRef: args.outputRef,
		Latency:   args.latency,
		Note:      args.note,
	})
}
