// Package datagate provides time-gated access to historical data. It is
// the single enforcement point for the no-look-ahead invariant: every row
// returned to a caller has an effective date at or before the simulated
// date at the time of the read
package datagate

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantfoundry/walkforward/common"
	"github.com/quantfoundry/walkforward/log"
)

// NewGate wires a source to a clock
func NewGate(c Clock, source Source) (*Gate, error) {
	if c == nil || source == nil {
		return nil, fmt.Errorf("%w: clock or source", common.ErrNilArguments)
	}
	return &Gate{clock: c, source: source}, nil
}

// Read returns rows from the named source with the as-of cut applied.
// A zero Query.AsOf defaults to the clock's current date; an AsOf beyond
// the current date fails with ErrLookAhead
func (g *Gate) Read(source string, q Query) ([]Row, error) {
	now := common.NormaliseDate(g.clock.Current())
	asOf := now
	if !q.AsOf.IsZero() {
		asOf = common.NormaliseDate(q.AsOf)
		if asOf.After(now) {
			return nil, fmt.Errorf("%w: requested as-of %s with simulated date %s",
				ErrLookAhead,
				asOf.Format(common.SimpleDateFormat),
				now.Format(common.SimpleDateFormat))
		}
	}

	rows, err := g.source.Read(source, q)
	if err != nil {
		return nil, err
	}

	// The cut is applied here rather than trusted to the source so a
	// misbehaving store cannot leak future rows
	filtered := rows[:0:0]
	for i := range rows {
		if common.NormaliseDate(rows[i].EffectiveDate).After(asOf) {
			continue
		}
		filtered = append(filtered, rows[i])
	}
	if len(filtered) != len(rows) {
		log.Debugf(log.DataGate, "read %q dropped %d future row(s) at %s",
			source, len(rows)-len(filtered), asOf.Format(common.SimpleDateFormat))
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if !filtered[i].EffectiveDate.Equal(filtered[j].EffectiveDate) {
			return filtered[i].EffectiveDate.Before(filtered[j].EffectiveDate)
		}
		return filtered[i].Instrument < filtered[j].Instrument
	})
	return filtered, nil
}

// DailyBars returns the market bars for the requested instruments on one
// trading day, keyed by instrument id. Instruments without a bar are
// absent from the map; callers treat absence as a data gap
func (g *Gate) DailyBars(instruments []string, date time.Time) (map[string]MarketBar, error) {
	date = common.NormaliseDate(date)
	rows, err := g.Read(PricesDaily, Query{
		Instruments: instruments,
		Start:       date,
		End:         date,
	})
	if err != nil {
		return nil, err
	}
	bars := make(map[string]MarketBar, len(rows))
	for i := range rows {
		if !common.SameDate(rows[i].EventDate, date) {
			continue
		}
		bars[rows[i].Instrument] = barFromRow(&rows[i])
	}
	return bars, nil
}

// BarHistory returns each instrument's bars over a date window, sorted by
// date ascending. Instruments without any bar in the window are absent
// from the map
func (g *Gate) BarHistory(instruments []string, start, end time.Time) (map[string][]MarketBar, error) {
	rows, err := g.Read(PricesDaily, Query{
		Instruments: instruments,
		Start:       common.NormaliseDate(start),
		End:         common.NormaliseDate(end),
	})
	if err != nil {
		return nil, err
	}
	history := make(map[string][]MarketBar)
	for i := range rows {
		history[rows[i].Instrument] = append(history[rows[i].Instrument], barFromRow(&rows[i]))
	}
	for _, bars := range history {
		sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	}
	return history, nil
}

func barFromRow(r *Row) MarketBar {
	bar := MarketBar{
		Instrument: r.Instrument,
		Date:       common.NormaliseDate(r.EventDate),
		Open:       r.Values["open"],
		High:       r.Values["high"],
		Low:        r.Values["low"],
		Close:      r.Values["close"],
		Volume:     r.Values["volume"],
	}
	if r.Labels["halted"] == "true" {
		bar.Halted = true
	}
	return bar
}
