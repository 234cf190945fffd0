package order

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Side dictates the direction of an order
type Side string

// Order sides
const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Status tracks an order through its lifecycle
type Status string

// Order statuses. Orders start PENDING and end in one of FILLED,
// REJECTED or CANCELLED
const (
	Pending         Status = "PENDING"
	PartiallyFilled Status = "PARTIALLY_FILLED"
	Filled          Status = "FILLED"
	Rejected        Status = "REJECTED"
	Cancelled       Status = "CANCELLED"
)

var (
	// ErrInvalidSide occurs when a side is neither BUY nor SELL
	ErrInvalidSide = errors.New("invalid order side")
	// ErrInvalidQuantity occurs when an order quantity is not positive
	ErrInvalidQuantity = errors.New("order quantity must be positive")
	// ErrInstrumentUnset occurs when an order has no instrument id
	ErrInstrumentUnset = errors.New("order instrument unset")
)

// Order is a request to trade one instrument for one sleeve. Created by
// the pipeline, mutated only by the ledger and fill simulator
type Order struct {
	ID          uuid.UUID
	SleeveID    string
	Instrument  string
	Side        Side
	Quantity    decimal.Decimal
	Remaining   decimal.Decimal
	SubmittedAt time.Time
	Status      Status
	Reason      string
}

// Fill records one execution against an order. Immutable once created;
// an order accumulates fills until filled or cancelled
type Fill struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	SleeveID      string
	Instrument    string
	Side          Side
	Date          time.Time
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	SlippageBPS   decimal.Decimal
	Participation decimal.Decimal
	Fee           decimal.Decimal
}
