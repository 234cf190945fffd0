package datagate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfoundry/walkforward/common"
)

type fixedClock struct {
	now time.Time
}

func (f *fixedClock) Current() time.Time { return f.now }

// leakySource returns every row it holds regardless of the query, as a
// stand in for a misbehaving store
type leakySource struct {
	rows []Row
}

func (l *leakySource) Read(_ string, _ Query) ([]Row, error) {
	return l.rows, nil
}

var (
	dayD     = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	dayAfter = dayD.AddDate(0, 0, 1)
)

func testBar(instrument string, date time.Time, close float64, volume int64) MarketBar {
	return MarketBar{
		Instrument: instrument,
		Date:       date,
		Open:       decimal.NewFromFloat(close),
		High:       decimal.NewFromFloat(close * 1.01),
		Low:        decimal.NewFromFloat(close * 0.99),
		Close:      decimal.NewFromFloat(close),
		Volume:     decimal.NewFromInt(volume),
	}
}

func TestNewGate(t *testing.T) {
	t.Parallel()
	_, err := NewGate(nil, NewMemorySource())
	assert.ErrorIs(t, err, common.ErrNilArguments)

	_, err = NewGate(&fixedClock{now: dayD}, nil)
	assert.ErrorIs(t, err, common.ErrNilArguments)
}

func TestReadRejectsFutureAsOf(t *testing.T) {
	t.Parallel()
	g, err := NewGate(&fixedClock{now: dayD}, NewMemorySource())
	require.NoError(t, err)

	_, err = g.Read(PricesDaily, Query{AsOf: dayAfter})
	assert.ErrorIs(t, err, ErrLookAhead)
}

func TestReadFiltersEffectiveDate(t *testing.T) {
	t.Parallel()
	// one news-like row effective on D, one effective on D+1
	src := NewMemorySource()
	src.AddRows("news", Row{
		Instrument:    "AAA",
		EventDate:     dayD,
		EffectiveDate: dayD,
		Labels:        map[string]string{"headline": "on time"},
	}, Row{
		Instrument:    "AAA",
		EventDate:     dayD,
		EffectiveDate: dayAfter,
		Labels:        map[string]string{"headline": "from the future"},
	})

	g, err := NewGate(&fixedClock{now: dayD}, src)
	require.NoError(t, err)

	rows, err := g.Read("news", Query{Instruments: []string{"AAA"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "on time", rows[0].Labels["headline"])
}

func TestReadFiltersMisbehavingSource(t *testing.T) {
	t.Parallel()
	src := &leakySource{rows: []Row{
		{Instrument: "AAA", EventDate: dayD, EffectiveDate: dayD},
		{Instrument: "AAA", EventDate: dayAfter, EffectiveDate: dayAfter},
	}}
	g, err := NewGate(&fixedClock{now: dayD}, src)
	require.NoError(t, err)

	rows, err := g.Read("anything", Query{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, dayD, rows[0].EffectiveDate)
}

func TestReadReportingLag(t *testing.T) {
	t.Parallel()
	// a fundamentals row whose event date is a quarter end but which only
	// becomes observable two days later
	quarterEnd := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)
	src := NewMemorySource()
	src.AddRows("fundamentals", Row{
		Instrument:    "AAA",
		EventDate:     quarterEnd,
		EffectiveDate: quarterEnd.AddDate(0, 0, 2),
	})

	clk := &fixedClock{now: quarterEnd}
	g, err := NewGate(clk, src)
	require.NoError(t, err)

	rows, err := g.Read("fundamentals", Query{})
	require.NoError(t, err)
	assert.Empty(t, rows, "row must stay hidden until its effective date")

	clk.now = quarterEnd.AddDate(0, 0, 2)
	rows, err = g.Read("fundamentals", Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDailyBars(t *testing.T) {
	t.Parallel()
	src := NewMemorySource()
	src.AddBar(testBar("AAA", dayD, 100, 50000))
	src.AddBar(testBar("BBB", dayD, 25, 10000))
	src.AddBar(testBar("AAA", dayAfter, 101, 60000))

	g, err := NewGate(&fixedClock{now: dayD}, src)
	require.NoError(t, err)

	bars, err := g.DailyBars([]string{"AAA", "BBB", "CCC"}, dayD)
	require.NoError(t, err)
	assert.Len(t, bars, 2)
	assert.True(t, bars["AAA"].Close.Equal(decimal.NewFromInt(100)))
	_, ok := bars["CCC"]
	assert.False(t, ok, "missing instrument must be absent, not zero filled")
}

func TestBarHistory(t *testing.T) {
	t.Parallel()
	src := NewMemorySource()
	src.AddBar(testBar("AAA", dayD.AddDate(0, 0, -2), 98, 50000))
	src.AddBar(testBar("AAA", dayD, 100, 50000))
	src.AddBar(testBar("AAA", dayD.AddDate(0, 0, -1), 99, 50000))
	src.AddBar(testBar("AAA", dayAfter, 101, 50000))

	g, err := NewGate(&fixedClock{now: dayD}, src)
	require.NoError(t, err)

	history, err := g.BarHistory([]string{"AAA"}, dayD.AddDate(0, 0, -5), dayAfter)
	require.NoError(t, err)
	bars := history["AAA"]
	require.Len(t, bars, 3, "the future bar stays behind the gate")
	for i := 1; i < len(bars); i++ {
		assert.True(t, bars[i].Date.After(bars[i-1].Date), "bars sorted ascending")
	}
}

func TestMemorySourceUnknown(t *testing.T) {
	t.Parallel()
	_, err := NewMemorySource().Read("nope", Query{})
	assert.ErrorIs(t, err, ErrUnknownSource)
}
