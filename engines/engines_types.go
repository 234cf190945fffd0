package engines

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/datagate"
)

// Stage names, one per pipeline transition that invokes an engine
const (
	StageRegime     = "regime"
	StageStability  = "stability"
	StageAssessment = "assessment"
)

// Regime labels emitted by regime engines
const (
	RegimeCalm   = "CALM"
	RegimeNormal = "NORMAL"
	RegimeStress = "STRESS"
)

var (
	// ErrEngineFailure occurs when an engine cannot produce output for a
	// day. Recoverable at day granularity; the day is skipped for the
	// sleeve, the run continues
	ErrEngineFailure = errors.New("engine failure")
	// ErrEngineTimeout occurs when an engine exceeds its invocation
	// budget. Treated as an engine failure, never as a silent zero
	ErrEngineTimeout = errors.New("engine timed out")
	// ErrUnknownModel occurs when a configured model id has no registered
	// implementation
	ErrUnknownModel = errors.New("unknown model id")
)

// Scope bounds one engine invocation to a region and its instrument
// universe
type Scope struct {
	Region      string
	Instruments []string
}

// Output is the fixed schema every engine emits: a score per key plus
// optional labels. Regime engines key by region, stability and assessment
// engines key by instrument id. A key absent from Scores means the engine
// had no answer for it; callers must treat absence as a data gap, never
// as zero
type Output struct {
	Scores map[string]decimal.Decimal
	Labels map[string]string
}

// Engine is one pluggable pipeline stage. Implementations read historical
// data exclusively through the gate they were constructed with and must
// honour ctx cancellation between units of work
type Engine interface {
	Name() string
	Score(ctx context.Context, asOf time.Time, scope Scope, upstream map[string]Output, configID string) (Output, error)
}

// Settings configures the reference engine implementations
type Settings struct {
	Gate *datagate.Gate
	// Lookback is the calendar-day history window read for volatility
	// estimation
	Lookback int
	// Horizon is the calendar-day span for momentum assessment
	Horizon int
}
