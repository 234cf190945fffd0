// Package order defines the order and fill types shared by the fill
// simulator, ledger and pipeline
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/common"
)

// New validates and creates a pending order. Order ids are name-based
// UUIDs derived from the order's identity so that replaying an identical
// run reproduces identical ids
func New(sleeveID, instrument string, side Side, quantity decimal.Decimal, submittedAt time.Time) (*Order, error) {
	if instrument == "" {
		return nil, ErrInstrumentUnset
	}
	if side != Buy && side != Sell {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuantity, quantity)
	}
	submittedAt = common.NormaliseDate(submittedAt)
	id := DeriveID(sleeveID, "order", instrument, string(side),
		quantity.String(), submittedAt.Format(common.SimpleDateFormat))
	return &Order{
		ID:          id,
		SleeveID:    sleeveID,
		Instrument:  instrument,
		Side:        side,
		Quantity:    quantity,
		Remaining:   quantity,
		SubmittedAt: submittedAt,
		Status:      Pending,
	}, nil
}

// DeriveID returns a deterministic name-based UUID from the supplied
// identity parts. Used for order, fill and run ids so that replaying an
// identical campaign yields identical output rows
func DeriveID(parts ...string) uuid.UUID {
	return uuid.NewV5(uuid.NamespaceOID, strings.Join(parts, "|"))
}

// Sign returns +1 for buys and -1 for sells
func (s Side) Sign() decimal.Decimal {
	if s == Sell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// IsOpen reports whether the order can still receive fills
func (o *Order) IsOpen() bool {
	return o.Status == Pending || o.Status == PartiallyFilled
}

// AppendReason adds context to the order's audit reason field
func (o *Order) AppendReason(reason string) {
	if o.Reason == "" {
		o.Reason = reason
		return
	}
	o.Reason += ". " + reason
}

// SignedQuantity returns the fill quantity with the side's sign applied
func (f *Fill) SignedQuantity() decimal.Decimal {
	return f.Quantity.Mul(f.Side.Sign())
}

// Notional returns quantity multiplied by price
func (f *Fill) Notional() decimal.Decimal {
	return f.Quantity.Mul(f.Price)
}
