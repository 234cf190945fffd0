package clock

import (
	"time"

	"github.com/quantfoundry/walkforward/common"
)

// NewCalendar returns a trading calendar skipping weekends and the
// supplied holiday dates
func NewCalendar(holidays ...time.Time) *TradingCalendar {
	c := &TradingCalendar{holidays: make(map[time.Time]struct{}, len(holidays))}
	for i := range holidays {
		c.holidays[common.NormaliseDate(holidays[i])] = struct{}{}
	}
	return c
}

// IsTradingDay reports whether the date is a weekday and not a holiday
func (c *TradingCalendar) IsTradingDay(date time.Time) bool {
	date = common.NormaliseDate(date)
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[date]
	return !holiday
}

// NextTradingDay returns the first trading day strictly after date
func (c *TradingCalendar) NextTradingDay(date time.Time) time.Time {
	next := common.NormaliseDate(date).AddDate(0, 0, 1)
	for !c.IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// TradingDaysBetween returns all trading days in [start, end] in order
func (c *TradingCalendar) TradingDaysBetween(start, end time.Time) []time.Time {
	var days []time.Time
	for d := common.NormaliseDate(start); !d.After(common.NormaliseDate(end)); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}
