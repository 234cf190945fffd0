package clock

import (
	"errors"
	"time"
)

var (
	// ErrNonMonotonicTime is raised when an advance would move the
	// simulated date backwards or leave it unchanged. This is a
	// programmer error and aborts the run
	ErrNonMonotonicTime = errors.New("simulated time must be strictly increasing")
	// ErrOutsideWindow is raised when a date falls outside the
	// configured [start, end] window
	ErrOutsideWindow = errors.New("date outside clock window")
	// ErrEndOfWindow is raised when no further trading days remain
	ErrEndOfWindow = errors.New("no trading days remain in window")
)

// Clock owns the authoritative current simulated date for one run. It is
// the only component allowed to advance time. One instance per sleeve run;
// never shared across concurrent runs
type Clock struct {
	start    time.Time
	end      time.Time
	current  time.Time
	calendar *TradingCalendar
}

// TradingCalendar filters weekends and configured holidays from the
// simulated day stream
type TradingCalendar struct {
	holidays map[time.Time]struct{}
}
