package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/config"
	"github.com/quantfoundry/walkforward/fillsim"
	"github.com/quantfoundry/walkforward/order"
)

var (
	// ErrConstraintViolation occurs when an order breaches a sleeve
	// constraint such as the short-selling policy. The order is rejected
	// before any fill, never after
	ErrConstraintViolation = errors.New("constraint violation")
	// errDuplicateOrder occurs when an order id is submitted twice
	errDuplicateOrder = errors.New("order already submitted")
	// errOrderWrongSleeve occurs when an order for another sleeve is
	// submitted
	errOrderWrongSleeve = errors.New("order belongs to another sleeve")
)

// Position is one sleeve's holding in one instrument. Owned exclusively
// by the ledger and mutated only by applying fills
type Position struct {
	SleeveID    string
	Instrument  string
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
	MarkPrice   decimal.Decimal
}

// MarketValue returns quantity multiplied by the last mark price
func (p *Position) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.MarkPrice)
}

// EquitySnapshot is one sleeve's end of day accounting row. Appended once
// per day, never mutated
type EquitySnapshot struct {
	SleeveID       string
	Date           time.Time
	Cash           decimal.Decimal
	PositionsValue decimal.Decimal
	Equity         decimal.Decimal
	Drawdown       decimal.Decimal
	DayFees        decimal.Decimal
}

// Ledger owns cash, positions and the order queue for one sleeve
type Ledger struct {
	sleeveID    string
	settings    config.LedgerSettings
	constraints config.Constraints
	sim         *fillsim.Simulator

	cash      decimal.Decimal
	positions map[string]*Position
	queue     []*order.Order
	orders    map[string]*order.Order
	fills     []order.Fill
	snapshots []EquitySnapshot

	peakEquity  decimal.Decimal
	totalTraded decimal.Decimal
	dayFees     decimal.Decimal
	noLiquidity int
}
