package datagate

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PricesDaily is the well known source name for end of day market bars
const PricesDaily = "prices_daily"

var (
	// ErrLookAhead is raised when a read requests an as-of date beyond the
	// clock's current simulated date. This is a correctness bug and aborts
	// the run; it is never recovered
	ErrLookAhead = errors.New("look-ahead violation")
	// ErrDataGap is raised when an expected row, such as an instrument's
	// daily bar, is missing. Recoverable; callers exclude the instrument
	// for the day
	ErrDataGap = errors.New("data gap")
	// ErrUnknownSource is raised when the underlying store does not
	// recognise a source name
	ErrUnknownSource = errors.New("unknown data source")
)

// MarketBar is one instrument's OHLCV bar for one trading day. Immutable
// once ingested
type MarketBar struct {
	Instrument string
	Date       time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	Halted     bool
}

// Row is one record from a historical source. EffectiveDate is the date
// the row becomes observable, which may trail EventDate when a source has
// a reporting lag, such as fundamentals published after quarter end
type Row struct {
	Instrument    string
	EventDate     time.Time
	EffectiveDate time.Time
	Values        map[string]decimal.Decimal
	Labels        map[string]string
}

// Query filters a source read. A zero AsOf defaults to the clock's
// current simulated date
type Query struct {
	Instruments []string
	Start       time.Time
	End         time.Time
	AsOf        time.Time
}

// Source is the historical store consumed by the gate. Implementations
// are expected to filter on Query.Instruments/Start/End but are not
// trusted with the as-of cut; the gate re-filters every row
type Source interface {
	Read(name string, q Query) ([]Row, error)
}

// Gate wraps a Source so that every read is filtered against the clock.
// No row with an effective date after the current simulated date can be
// returned, regardless of how the source behaves
type Gate struct {
	clock  Clock
	source Source
}

// Clock is the narrow view of the simulation clock the gate requires
type Clock interface {
	Current() time.Time
}
