// Package clock owns the simulated date for a single walk-forward run.
// The current date is strictly non-decreasing for the lifetime of a run
// and every data read is gated against it
package clock

import (
	"fmt"
	"time"

	"github.com/quantfoundry/walkforward/common"
)

// New returns a clock positioned on the first trading day at or after
// start within the [start, end] window
func New(start, end time.Time, calendar *TradingCalendar) (*Clock, error) {
	if calendar == nil {
		return nil, fmt.Errorf("%w: calendar", common.ErrNilArguments)
	}
	start = common.NormaliseDate(start)
	end = common.NormaliseDate(end)
	if start.IsZero() || end.IsZero() {
		return nil, common.ErrDateUnset
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s > %s",
			common.ErrStartAfterEnd,
			start.Format(common.SimpleDateFormat),
			end.Format(common.SimpleDateFormat))
	}
	first := start
	for !calendar.IsTradingDay(first) {
		first = first.AddDate(0, 0, 1)
		if first.After(end) {
			return nil, fmt.Errorf("%w: no trading day in [%s, %s]",
				ErrEndOfWindow,
				start.Format(common.SimpleDateFormat),
				end.Format(common.SimpleDateFormat))
		}
	}
	return &Clock{
		start:    start,
		end:      end,
		current:  first,
		calendar: calendar,
	}, nil
}

// Current returns the current simulated date
func (c *Clock) Current() time.Time {
	return c.current
}

// Start returns the first date of the window
func (c *Clock) Start() time.Time {
	return c.start
}

// End returns the final date of the window
func (c *Clock) End() time.Time {
	return c.end
}

// Calendar returns the calendar governing this clock
func (c *Clock) Calendar() *TradingCalendar {
	return c.calendar
}

// AdvanceTo moves the simulated date forward. Moving backwards or standing
// still fails with ErrNonMonotonicTime; leaving the window fails with
// ErrOutsideWindow
func (c *Clock) AdvanceTo(date time.Time) error {
	date = common.NormaliseDate(date)
	if !date.After(c.current) {
		return fmt.Errorf("%w: %s <= %s",
			ErrNonMonotonicTime,
			date.Format(common.SimpleDateFormat),
			c.current.Format(common.SimpleDateFormat))
	}
	if date.After(c.end) {
		return fmt.Errorf("%w: %s after %s",
			ErrOutsideWindow,
			date.Format(common.SimpleDateFormat),
			c.end.Format(common.SimpleDateFormat))
	}
	c.current = date
	return nil
}

// AdvanceToNextTradingDay moves the clock to the next trading day in the
// window, failing with ErrEndOfWindow once exhausted
func (c *Clock) AdvanceToNextTradingDay() (time.Time, error) {
	next := c.calendar.NextTradingDay(c.current)
	if next.After(c.end) {
		return time.Time{}, ErrEndOfWindow
	}
	if err := c.AdvanceTo(next); err != nil {
		return time.Time{}, err
	}
	return next, nil
}
