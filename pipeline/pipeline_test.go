package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfoundry/walkforward/config"
	"github.com/quantfoundry/walkforward/datagate"
	"github.com/quantfoundry/walkforward/engines"
	"github.com/quantfoundry/walkforward/fillsim"
	"github.com/quantfoundry/walkforward/ledger"
	"github.com/quantfoundry/walkforward/order"
)

var testDay = time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Current() time.Time { return c.now }

// stubEngine returns canned output filtered to the requested scope
type stubEngine struct {
	name       string
	scores     map[string]decimal.Decimal
	labels     map[string]string
	err        error
	waitForCtx bool
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Score(ctx context.Context, _ time.Time, scope engines.Scope, _ map[string]engines.Output, _ string) (engines.Output, error) {
	if s.waitForCtx {
		<-ctx.Done()
		return engines.Output{}, ctx.Err()
	}
	if s.err != nil {
		return engines.Output{}, s.err
	}
	out := engines.Output{
		Scores: make(map[string]decimal.Decimal),
		Labels: s.labels,
	}
	for _, instrument := range scope.Instruments {
		if v, ok := s.scores[instrument]; ok {
			out.Scores[instrument] = v
		}
	}
	if v, ok := s.scores[scope.Region]; ok {
		out.Scores[scope.Region] = v
	}
	return out, nil
}

type fixture struct {
	runner *Runner
	ledger *ledger.Ledger
	source *datagate.MemorySource
	clock  *fixedClock
}

func defaultSleeve() config.SleeveConfig {
	return config.SleeveConfig{
		SleeveID:    "sleeve-1",
		Region:      "us",
		Instruments: []string{"AAA", "BBB"},
		HorizonDays: 21,
		Constraints: config.Constraints{
			MaxLeverage:       decimal.NewFromInt(1),
			MaxPositionWeight: decimal.NewFromFloat(0.5),
			MaxDailyTurnover:  decimal.NewFromInt(1),
		},
		EngineTimeout: time.Second,
		Fill: config.FillSettings{
			ParticipationLimit: decimal.NewFromFloat(0.1),
			SlippageCurve:      config.SlippageLinear,
		},
		Ledger: config.LedgerSettings{InitialCash: decimal.NewFromInt(1000000)},
	}
}

func defaultEngines() (regime, stability, assessment *stubEngine) {
	regime = &stubEngine{
		name:   "stub-regime",
		scores: map[string]decimal.Decimal{"us": decimal.NewFromFloat(0.01)},
		labels: map[string]string{"us": engines.RegimeNormal},
	}
	stability = &stubEngine{
		name: "stub-stability",
		scores: map[string]decimal.Decimal{
			"AAA": decimal.NewFromInt(1),
			"BBB": decimal.NewFromInt(1),
		},
	}
	assessment = &stubEngine{
		name: "stub-assessment",
		scores: map[string]decimal.Decimal{
			"AAA": decimal.NewFromFloat(0.1),
			"BBB": decimal.NewFromFloat(0.1),
		},
	}
	return regime, stability, assessment
}

func newDefaultFixture(t *testing.T, sleeve config.SleeveConfig) *fixture {
	t.Helper()
	regime, stability, assessment := defaultEngines()
	return newFixture(t, sleeve, regime, stability, assessment)
}

func newFixture(t *testing.T, sleeve config.SleeveConfig, regime, stability, assessment engines.Engine) *fixture {
	t.Helper()
	source := datagate.NewMemorySource()
	clk := &fixedClock{now: testDay}
	gate, err := datagate.NewGate(clk, source)
	require.NoError(t, err)
	l, err := ledger.New(sleeve.SleeveID, sleeve.Ledger, sleeve.Constraints,
		fillsim.New(sleeve.Fill, sleeve.Seed))
	require.NoError(t, err)
	r, err := NewRunnerWithEngines(sleeve, gate, l, regime, stability, assessment)
	require.NoError(t, err)
	return &fixture{runner: r, ledger: l, source: source, clock: clk}
}

func (f *fixture) addBar(instrument string, close float64, volume int64) {
	f.addBarOn(instrument, testDay, close, volume)
}

func (f *fixture) addBarOn(instrument string, date time.Time, close float64, volume int64) {
	f.source.AddBar(datagate.MarketBar{
		Instrument: instrument,
		Date:       date,
		Open:       decimal.NewFromFloat(close),
		High:       decimal.NewFromFloat(close),
		Low:        decimal.NewFromFloat(close),
		Close:      decimal.NewFromFloat(close),
		Volume:     decimal.NewFromInt(volume),
	})
}

func decisionStatuses(res *DayResult, stage string) []DecisionStatus {
	var statuses []DecisionStatus
	for i := range res.Decisions {
		if res.Decisions[i].Stage == stage {
			statuses = append(statuses, res.Decisions[i].Status)
		}
	}
	return statuses
}

func TestNewRunnerWithEngines(t *testing.T) {
	t.Parallel()
	regime, stability, assessment := defaultEngines()
	source := datagate.NewMemorySource()
	gate, err := datagate.NewGate(&fixedClock{now: testDay}, source)
	require.NoError(t, err)
	sleeve := defaultSleeve()
	l, err := ledger.New(sleeve.SleeveID, sleeve.Ledger, sleeve.Constraints,
		fillsim.New(sleeve.Fill, 0))
	require.NoError(t, err)

	_, err = NewRunnerWithEngines(sleeve, gate, l, regime, stability, nil)
	assert.ErrorIs(t, err, errNoEngine)

	_, err = NewRunnerWithEngines(sleeve, nil, l, regime, stability, assessment)
	assert.Error(t, err)
}

func TestRunDayHappyPath(t *testing.T) {
	t.Parallel()
	f := newDefaultFixture(t, defaultSleeve())
	f.addBar("AAA", 100, 1000000)
	f.addBar("BBB", 100, 1000000)

	res, err := f.runner.RunDay(context.Background(), testDay)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, engines.RegimeNormal, res.RegimeLabel)
	assert.Equal(t, []string{"AAA", "BBB"}, res.Universe)

	// equal scores, 0.5 weight each: 500,000 / 100 = 5,000 shares
	require.Len(t, res.Orders, 2)
	for _, o := range res.Orders {
		assert.Equal(t, order.Buy, o.Side)
		assert.True(t, o.Quantity.Equal(decimal.NewFromInt(5000)),
			"%s quantity %v", o.Instrument, o.Quantity)
	}

	for _, stage := range []string{
		StageDataReady, StageRegimeScored, StageStabilityScored,
		StageAssessmentScored, StageUniverseBuilt, StagePortfolioTarget,
		StageOrdersSubmitted, StageDone,
	} {
		assert.Contains(t, decisionStatuses(res, stage), DecisionOK, stage)
	}
}

func TestRunDayRegimeFailureSkipsDay(t *testing.T) {
	t.Parallel()
	regime, stability, assessment := defaultEngines()
	regime.err = engines.ErrEngineFailure
	f := newFixture(t, defaultSleeve(), regime, stability, assessment)
	f.addBar("AAA", 100, 1000000)
	f.addBar("BBB", 100, 1000000)

	res, err := f.runner.RunDay(context.Background(), testDay)
	require.NoError(t, err, "engine failure is recoverable, not fatal")
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Orders)
	assert.Contains(t, decisionStatuses(res, StageRegimeScored), DecisionFailed)
	assert.Contains(t, decisionStatuses(res, StageRegimeScored), DecisionSkipped)
}

func TestRunDayEngineTimeout(t *testing.T) {
	t.Parallel()
	regime, stability, assessment := defaultEngines()
	stability.waitForCtx = true
	sleeve := defaultSleeve()
	sleeve.EngineTimeout = 10 * time.Millisecond
	f := newFixture(t, sleeve, regime, stability, assessment)
	f.addBar("AAA", 100, 1000000)
	f.addBar("BBB", 100, 1000000)

	res, err := f.runner.RunDay(context.Background(), testDay)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Orders)

	var failed *EngineDecision
	for i := range res.Decisions {
		if res.Decisions[i].Status == DecisionFailed {
			failed = &res.Decisions[i]
		}
	}
	require.NotNil(t, failed)
	assert.Contains(t, failed.Note, "timed out")
}

func TestRunDayMissingBarIsDataGap(t *testing.T) {
	t.Parallel()
	f := newDefaultFixture(t, defaultSleeve())
	f.addBar("AAA", 100, 1000000)
	// BBB has no bar today

	res, err := f.runner.RunDay(context.Background(), testDay)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.DataGaps)
	assert.Equal(t, []string{"AAA"}, res.Universe)
	assert.Contains(t, decisionStatuses(res, StageDataReady), DecisionDataGap)

	// the surviving instrument still trades
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "AAA", res.Orders[0].Instrument)
}

func TestRunDayMissingScoreExcludesInstrument(t *testing.T) {
	t.Parallel()
	regime, stability, assessment := defaultEngines()
	delete(stability.scores, "BBB")
	f := newFixture(t, defaultSleeve(), regime, stability, assessment)
	f.addBar("AAA", 100, 1000000)
	f.addBar("BBB", 100, 1000000)

	res, err := f.runner.RunDay(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, res.Universe)
	assert.Equal(t, 1, res.DataGaps)
	assert.Contains(t, decisionStatuses(res, StageUniverseBuilt), DecisionDataGap)
	_, ok := res.Targets["BBB"]
	assert.False(t, ok, "excluded instrument must not get a target")
}

func TestRunDayFlatSignalNoOrders(t *testing.T) {
	t.Parallel()
	regime, stability, assessment := defaultEngines()
	assessment.scores = map[string]decimal.Decimal{
		"AAA": decimal.Zero,
		"BBB": decimal.Zero,
	}
	f := newFixture(t, defaultSleeve(), regime, stability, assessment)
	f.addBar("AAA", 100, 1000000)
	f.addBar("BBB", 100, 1000000)

	res, err := f.runner.RunDay(context.Background(), testDay)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Empty(t, res.Orders)
	assert.Empty(t, f.ledger.Fills())
	for _, target := range res.Targets {
		assert.True(t, target.IsZero())
	}
}

func TestRunDayRegimeRiskScale(t *testing.T) {
	t.Parallel()
	regime, stability, assessment := defaultEngines()
	regime.labels = map[string]string{"us": engines.RegimeStress}
	sleeve := defaultSleeve()
	sleeve.RegimeRiskScales = map[string]decimal.Decimal{
		engines.RegimeStress: decimal.NewFromFloat(0.5),
	}
	f := newFixture(t, sleeve, regime, stability, assessment)
	f.addBar("AAA", 100, 1000000)
	f.addBar("BBB", 100, 1000000)

	res, err := f.runner.RunDay(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	// stress halves the 5,000 share targets
	for _, o := range res.Orders {
		assert.True(t, o.Quantity.Equal(decimal.NewFromInt(2500)),
			"%s quantity %v", o.Instrument, o.Quantity)
	}
}

func TestRunDayTurnoverCapClipsOrders(t *testing.T) {
	t.Parallel()
	regime, stability, assessment := defaultEngines()
	sleeve := defaultSleeve()
	sleeve.Constraints.MaxDailyTurnover = decimal.NewFromFloat(0.1)
	f := newFixture(t, sleeve, regime, stability, assessment)
	f.addBar("AAA", 100, 1000000)
	f.addBar("BBB", 100, 1000000)

	res, err := f.runner.RunDay(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	assert.Positive(t, res.Clipped)
	// 1m notional demand against a 100k turnover budget scales 10x down
	for _, o := range res.Orders {
		assert.True(t, o.Quantity.Equal(decimal.NewFromInt(500)),
			"%s quantity %v", o.Instrument, o.Quantity)
	}
}

func TestRunDayRolloverDoesNotReorder(t *testing.T) {
	t.Parallel()
	sleeve := defaultSleeve()
	sleeve.Instruments = []string{"AAA"}
	sleeve.Fill.RolloverUnfilled = true
	f := newDefaultFixture(t, sleeve)
	f.addBar("AAA", 100, 10000)

	res, err := f.runner.RunDay(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	require.True(t, res.Targets["AAA"].Equal(decimal.NewFromInt(5000)))

	// thin volume fills 1,000 of the 5,000 target and rolls the rest
	fills, err := f.ledger.ProcessDay(testDay, res.Bars)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.True(t, fills[0].Quantity.Equal(decimal.NewFromInt(1000)))

	day2 := testDay.AddDate(0, 0, 1)
	f.clock.now = day2
	f.addBarOn("AAA", day2, 100, 1000000)

	res2, err := f.runner.RunDay(context.Background(), day2)
	require.NoError(t, err)
	// the rolled 4,000 remainder already covers the unchanged target
	assert.Empty(t, res2.Orders)

	_, err = f.ledger.ProcessDay(day2, res2.Bars)
	require.NoError(t, err)
	p, ok := f.ledger.Position("AAA")
	require.True(t, ok)
	assert.True(t, p.Quantity.Equal(decimal.NewFromInt(5000)),
		"position %v exceeds the 5,000 target", p.Quantity)
}

func TestRunDayNoBarsSkips(t *testing.T) {
	t.Parallel()
	f := newDefaultFixture(t, defaultSleeve())
	f.source.AddRows(datagate.PricesDaily)

	res, err := f.runner.RunDay(context.Background(), testDay)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 2, res.DataGaps)
	assert.Empty(t, res.Orders)
}
