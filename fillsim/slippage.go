package fillsim

import (
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/common"
	"github.com/quantfoundry/walkforward/config"
	"github.com/quantfoundry/walkforward/datagate"
	"github.com/quantfoundry/walkforward/order"
)

// slippageBPS returns the basis points of price degradation for an order
// requesting the given fraction of the day's volume. The curve component
// is strictly deterministic; the optional random component draws from a
// source seeded by (sleeve seed, date, order id) so replays reproduce it
func (s *Simulator) slippageBPS(fraction decimal.Decimal, o *order.Order, bar datagate.MarketBar) decimal.Decimal {
	bps := curveBPS(s.settings, fraction)
	if s.settings.RandomSlippage {
		bps = bps.Add(s.randomBPS(o, bar))
	}
	return bps
}

func curveBPS(settings config.FillSettings, fraction decimal.Decimal) decimal.Decimal {
	switch settings.SlippageCurve {
	case config.SlippageSquareRoot:
		root := math.Sqrt(fraction.InexactFloat64())
		return settings.MaxSlippageBPS.Mul(decimal.NewFromFloat(root))
	default:
		return settings.MaxSlippageBPS.Mul(fraction)
	}
}

// randomBPS draws a uniform value in [min, max) bps. The seed derivation
// must never include wall-clock state
func (s *Simulator) randomBPS(o *order.Order, bar datagate.MarketBar) decimal.Decimal {
	h := fnv.New64a()
	h.Write([]byte(bar.Date.Format(common.SimpleDateFormat)))
	h.Write([]byte(o.ID.String()))
	seed := int64(h.Sum64()) ^ s.seed

	rng := rand.New(rand.NewSource(seed))
	span := s.settings.RandomSlippageMaxBPS.Sub(s.settings.RandomSlippageMinBPS)
	if span.LessThanOrEqual(decimal.Zero) {
		return s.settings.RandomSlippageMinBPS
	}
	return s.settings.RandomSlippageMinBPS.Add(
		span.Mul(decimal.NewFromFloat(rng.Float64())))
}
