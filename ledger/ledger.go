// Package ledger tracks cash, positions, the order queue and the equity
// history for one sleeve. It is the only component that mutates positions
// and it does so exclusively by applying fills
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/common"
	"github.com/quantfoundry/walkforward/config"
	"github.com/quantfoundry/walkforward/datagate"
	"github.com/quantfoundry/walkforward/fillsim"
	"github.com/quantfoundry/walkforward/log"
	"github.com/quantfoundry/walkforward/order"
)

var bpsDivisor = decimal.NewFromInt(10000)

// New returns an empty ledger holding the configured initial cash
func New(sleeveID string, settings config.LedgerSettings, constraints config.Constraints, sim *fillsim.Simulator) (*Ledger, error) {
	if sim == nil {
		return nil, fmt.Errorf("%w: simulator", common.ErrNilArguments)
	}
	return &Ledger{
		sleeveID:    sleeveID,
		settings:    settings,
		constraints: constraints,
		sim:         sim,
		cash:        settings.InitialCash,
		positions:   make(map[string]*Position),
		orders:      make(map[string]*order.Order),
		peakEquity:  settings.InitialCash,
	}, nil
}

// Submit validates an order against sleeve constraints and enqueues it.
// Constraint rejections mark the order REJECTED and return
// ErrConstraintViolation; the queue is untouched
func (l *Ledger) Submit(o *order.Order) error {
	if o == nil {
		return fmt.Errorf("%w: order", common.ErrNilArguments)
	}
	if o.SleeveID != l.sleeveID {
		return fmt.Errorf("%w: %q", errOrderWrongSleeve, o.SleeveID)
	}
	if _, ok := l.orders[o.ID.String()]; ok {
		return fmt.Errorf("%w: %v", errDuplicateOrder, o.ID)
	}
	if o.Side == order.Sell && !l.constraints.AllowShort {
		available := l.availableToSell(o.Instrument)
		if o.Quantity.GreaterThan(available) {
			o.Status = order.Rejected
			o.AppendReason(fmt.Sprintf("sell %v exceeds held %v with shorting disabled",
				o.Quantity, available))
			l.orders[o.ID.String()] = o
			return fmt.Errorf("%w: short selling disabled, sell %v > held %v",
				ErrConstraintViolation, o.Quantity, available)
		}
	}
	l.orders[o.ID.String()] = o
	l.queue = append(l.queue, o)
	log.Debugf(log.Ledger, "%s queued %s %s %v %s",
		l.sleeveID, o.Side, o.Instrument, o.Quantity, o.ID)
	return nil
}

// availableToSell nets currently held quantity against sells already
// queued for the instrument
func (l *Ledger) availableToSell(instrument string) decimal.Decimal {
	available := decimal.Zero
	if p, ok := l.positions[instrument]; ok {
		available = p.Quantity
	}
	for i := range l.queue {
		q := l.queue[i]
		if q.Instrument == instrument && q.Side == order.Sell && q.IsOpen() {
			available = available.Sub(q.Remaining)
		}
	}
	return available
}

// ProcessDay runs the fill simulator over every queued order using the
// day's bars, applies resulting fills and enforces the end of day
// rollover policy. Returns the day's fills in processing order
func (l *Ledger) ProcessDay(date time.Time, bars map[string]datagate.MarketBar) ([]order.Fill, error) {
	date = common.NormaliseDate(date)
	l.dayFees = decimal.Zero
	var dayFills []order.Fill

	for i := range l.queue {
		o := l.queue[i]
		if !o.IsOpen() {
			continue
		}
		bar, ok := bars[o.Instrument]
		if !ok {
			o.AppendReason(fmt.Sprintf("no bar on %s", date.Format(common.SimpleDateFormat)))
			l.noLiquidity++
			continue
		}
		f, err := l.sim.SimulateFill(o, bar)
		if err != nil {
			if errors.Is(err, fillsim.ErrNoLiquidity) {
				o.AppendReason(fmt.Sprintf("no liquidity on %s", date.Format(common.SimpleDateFormat)))
				l.noLiquidity++
				continue
			}
			return nil, err
		}
		f.Fee = f.Notional().Mul(l.settings.FeeBPS).Div(bpsDivisor)
		l.applyFill(o, f)
		dayFills = append(dayFills, *f)
	}

	l.applyRolloverPolicy(date)
	return dayFills, nil
}

// applyFill mutates the order, position and cash for one fill. Cash moves
// by the signed notional plus fees; position deltas equal signed fill
// quantities by construction
func (l *Ledger) applyFill(o *order.Order, f *order.Fill) {
	signedQty := f.SignedQuantity()
	notional := f.Notional()

	l.cash = l.cash.Sub(notional.Mul(f.Side.Sign())).Sub(f.Fee)
	l.totalTraded = l.totalTraded.Add(notional)
	l.dayFees = l.dayFees.Add(f.Fee)

	p, ok := l.positions[o.Instrument]
	if !ok {
		p = &Position{SleeveID: l.sleeveID, Instrument: o.Instrument}
		l.positions[o.Instrument] = p
	}
	p.AverageCost = nextAverageCost(p.Quantity, p.AverageCost, signedQty, f.Price)
	p.Quantity = p.Quantity.Add(signedQty)
	p.MarkPrice = f.Price
	if p.Quantity.IsZero() {
		delete(l.positions, o.Instrument)
	}

	o.Remaining = o.Remaining.Sub(f.Quantity)
	if o.Remaining.IsZero() {
		o.Status = order.Filled
	} else {
		o.Status = order.PartiallyFilled
	}
	l.fills = append(l.fills, *f)
	log.Debugf(log.Ledger, "%s filled %s %v/%v %s @ %v",
		l.sleeveID, o.Instrument, f.Quantity, o.Quantity, o.Side, f.Price)
}

// nextAverageCost returns the average cost after applying a signed
// quantity at a price. Extending a position blends costs; reducing keeps
// the existing basis; crossing through zero restarts it at the fill price
func nextAverageCost(qty, avgCost, signedFill, price decimal.Decimal) decimal.Decimal {
	newQty := qty.Add(signedFill)
	switch {
	case qty.IsZero():
		return price
	case qty.Sign() == signedFill.Sign():
		weighted := avgCost.Mul(qty.Abs()).Add(price.Mul(signedFill.Abs()))
		return weighted.Div(newQty.Abs())
	case newQty.IsZero() || newQty.Sign() == qty.Sign():
		return avgCost
	default:
		return price
	}
}

// applyRolloverPolicy cancels or carries unfilled remainders per the fill
// settings, then compacts the queue. A partially filled order whose
// remainder is cancelled keeps PARTIALLY_FILLED as its terminal status;
// only untouched orders become CANCELLED
func (l *Ledger) applyRolloverPolicy(date time.Time) {
	rollover := l.sim.Settings().RolloverUnfilled
	remaining := l.queue[:0:0]
	for i := range l.queue {
		o := l.queue[i]
		if !o.IsOpen() {
			continue
		}
		if rollover {
			remaining = append(remaining, o)
			continue
		}
		if o.Status == order.Pending {
			o.Status = order.Cancelled
		}
		o.AppendReason(fmt.Sprintf("remainder cancelled at end of %s",
			date.Format(common.SimpleDateFormat)))
	}
	l.queue = remaining
}

// Snapshot marks open positions at the day's close, computes equity and
// drawdown against the running peak, and appends the immutable snapshot
func (l *Ledger) Snapshot(date time.Time, bars map[string]datagate.MarketBar) EquitySnapshot {
	date = common.NormaliseDate(date)
	positionsValue := decimal.Zero
	for _, p := range l.positions {
		if bar, ok := bars[p.Instrument]; ok {
			p.MarkPrice = bar.Close
		}
		positionsValue = positionsValue.Add(p.MarketValue())
	}
	equity := l.cash.Add(positionsValue)
	if equity.GreaterThan(l.peakEquity) {
		l.peakEquity = equity
	}
	drawdown := decimal.Zero
	if l.peakEquity.GreaterThan(decimal.Zero) {
		drawdown = equity.Div(l.peakEquity).Sub(decimal.NewFromInt(1))
	}
	snap := EquitySnapshot{
		SleeveID:       l.sleeveID,
		Date:           date,
		Cash:           l.cash,
		PositionsValue: positionsValue,
		Equity:         equity,
		Drawdown:       drawdown,
		DayFees:        l.dayFees,
	}
	l.snapshots = append(l.snapshots, snap)
	return snap
}

// Cash returns the current cash balance
func (l *Ledger) Cash() decimal.Decimal {
	return l.cash
}

// Position returns a copy of the holding for an instrument and whether
// one exists
func (l *Ledger) Position(instrument string) (Position, bool) {
	p, ok := l.positions[instrument]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all holdings sorted by instrument id
func (l *Ledger) Positions() []Position {
	resp := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		resp = append(resp, *p)
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].Instrument < resp[j].Instrument })
	return resp
}

// Fills returns the append-only fill history
func (l *Ledger) Fills() []order.Fill {
	resp := make([]order.Fill, len(l.fills))
	copy(resp, l.fills)
	return resp
}

// Snapshots returns the append-only equity history
func (l *Ledger) Snapshots() []EquitySnapshot {
	resp := make([]EquitySnapshot, len(l.snapshots))
	copy(resp, l.snapshots)
	return resp
}

// Orders returns every order ever submitted, sorted by submission date
// then instrument
func (l *Ledger) Orders() []order.Order {
	resp := make([]order.Order, 0, len(l.orders))
	for _, o := range l.orders {
		resp = append(resp, *o)
	}
	sort.Slice(resp, func(i, j int) bool {
		if !resp[i].SubmittedAt.Equal(resp[j].SubmittedAt) {
			return resp[i].SubmittedAt.Before(resp[j].SubmittedAt)
		}
		return resp[i].Instrument < resp[j].Instrument
	})
	return resp
}

// TotalTraded returns the cumulative traded notional, the numerator of
// the run's turnover metric
func (l *Ledger) TotalTraded() decimal.Decimal {
	return l.totalTraded
}

// NoLiquidityEvents returns how many order-days could not trade, whether
// for lack of volume or a missing bar
func (l *Ledger) NoLiquidityEvents() int {
	return l.noLiquidity
}

// OpenInterest returns the net signed remaining quantity of open queued
// orders for an instrument. Rolled remainders count toward the effective
// position when diffing a new target
func (l *Ledger) OpenInterest(instrument string) decimal.Decimal {
	resp := decimal.Zero
	for i := range l.queue {
		o := l.queue[i]
		if o.Instrument != instrument || !o.IsOpen() {
			continue
		}
		resp = resp.Add(o.Remaining.Mul(o.Side.Sign()))
	}
	return resp
}
