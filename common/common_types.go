package common

import "errors"

// SimpleDateFormat is the human readable format used for simulated dates
// in logs, summaries and config files
const SimpleDateFormat = "2006-01-02"

var (
	// ErrNilArguments is a common error response to highlight that nils were
	// passed in when they should not have been
	ErrNilArguments = errors.New("received nil argument(s)")
	// ErrDateUnset occurs when a zero time is supplied where a simulated
	// date is required
	ErrDateUnset = errors.New("date unset")
	// ErrStartAfterEnd occurs when a date range is reversed
	ErrStartAfterEnd = errors.New("start date after end date")
)
