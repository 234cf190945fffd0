// Package fillsim simulates order execution against end of day bars.
// Fills are capped at a configured fraction of the day's volume and
// degraded by a slippage curve that rises with participation
package fillsim

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/common"
	"github.com/quantfoundry/walkforward/config"
	"github.com/quantfoundry/walkforward/datagate"
	"github.com/quantfoundry/walkforward/order"
)

var bpsDivisor = decimal.NewFromInt(10000)

// New returns a simulator for one sleeve run. The seed feeds the optional
// random slippage component; it contributes nothing when random slippage
// is disabled
func New(settings config.FillSettings, seed int64) *Simulator {
	return &Simulator{settings: settings, seed: seed}
}

// SimulateFill computes the fill an open order receives against its
// instrument's bar for the day. Returns ErrNoLiquidity when nothing can
// trade. The order itself is not mutated; the ledger applies the fill
func (s *Simulator) SimulateFill(o *order.Order, bar datagate.MarketBar) (*order.Fill, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: order", common.ErrNilArguments)
	}
	if !o.IsOpen() {
		return nil, fmt.Errorf("%w: %v is %v", errOrderNotOpen, o.ID, o.Status)
	}
	if bar.Instrument != o.Instrument {
		return nil, fmt.Errorf("%w: %q != %q", errWrongInstrument, bar.Instrument, o.Instrument)
	}
	if bar.Halted || bar.Volume.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoLiquidity,
			o.Instrument, bar.Date.Format(common.SimpleDateFormat))
	}

	volumeCap := s.settings.ParticipationLimit.Mul(bar.Volume)
	fillQty := decimal.Min(o.Remaining, volumeCap)
	if fillQty.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: participation cap %v leaves nothing to fill",
			ErrNoLiquidity, volumeCap)
	}

	// The slippage input is the requested participation, not the capped
	// one: wanting more than the day can absorb costs more
	requestedFraction := decimal.Min(o.Remaining.Div(bar.Volume), decimal.NewFromInt(1))
	slipBPS := s.slippageBPS(requestedFraction, o, bar)

	price := bar.Close.Add(
		o.Side.Sign().Mul(slipBPS).Div(bpsDivisor).Mul(bar.Close))

	return &order.Fill{
		ID:            order.DeriveID(o.ID.String(), "fill", bar.Date.Format(common.SimpleDateFormat)),
		OrderID:       o.ID,
		SleeveID:      o.SleeveID,
		Instrument:    o.Instrument,
		Side:          o.Side,
		Date:          common.NormaliseDate(bar.Date),
		Quantity:      fillQty,
		Price:         price,
		SlippageBPS:   slipBPS,
		Participation: fillQty.Div(bar.Volume),
	}, nil
}

// Settings returns the simulator's configuration
func (s *Simulator) Settings() config.FillSettings {
	return s.settings
}
