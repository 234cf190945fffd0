package fillsim

import (
	"errors"

	"github.com/quantfoundry/walkforward/config"
)

var (
	// ErrNoLiquidity occurs when an order cannot trade at all on a day:
	// the instrument is halted, has no volume, or the participation cap
	// rounds to nothing. The order remains pending
	ErrNoLiquidity = errors.New("no liquidity")
	// errOrderNotOpen occurs when a terminal-state order reaches the
	// simulator; the ledger should never let this happen
	errOrderNotOpen = errors.New("order is not open")
	// errWrongInstrument occurs when a bar for a different instrument is
	// supplied
	errWrongInstrument = errors.New("bar instrument does not match order")
)

// Simulator computes fills from daily bars with a participation cap and
// a configurable slippage curve. Given identical order, bar, settings and
// seed the output is bit-identical
type Simulator struct {
	settings config.FillSettings
	seed     int64
}
