package pipeline

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/datagate"
	"github.com/quantfoundry/walkforward/order"
)

// Stage names in transition order. Every day walks them in sequence; a
// fatal engine failure stops the walk and the day is skipped
const (
	StageDataReady        = "DATA_READY"
	StageRegimeScored     = "REGIME_SCORED"
	StageStabilityScored  = "STABILITY_SCORED"
	StageAssessmentScored = "ASSESSMENT_SCORED"
	StageUniverseBuilt    = "UNIVERSE_BUILT"
	StagePortfolioTarget  = "PORTFOLIO_TARGETED"
	StageOrdersSubmitted  = "ORDERS_SUBMITTED"
	StageDone             = "DONE"
)

// DecisionStatus is the outcome of one engine invocation or exclusion
type DecisionStatus string

const (
	DecisionOK      DecisionStatus = "OK"
	DecisionFailed  DecisionStatus = "FAILED"
	DecisionSkipped DecisionStatus = "SKIPPED"
	DecisionDataGap DecisionStatus = "DATA_GAP"
)

var (
	// errNoEngine occurs when a runner is constructed without a required
	// stage engine
	errNoEngine = errors.New("missing stage engine")
)

// EngineDecision is one append-only audit row. One row is written per
// stage transition, plus one per instrument excluded by a data gap
type EngineDecision struct {
	ID        uuid.UUID
	SleeveID  string
	Stage     string
	Engine    string
	AsOf      time.Time
	ConfigID  string
	Status    DecisionStatus
	InputRef  string
	OutputRef string
	Latency   time.Duration
	Note      string
}

// DayResult is everything one pipeline day produced. Bars are returned so
// the caller can feed fill processing and the equity snapshot without a
// second gated read
type DayResult struct {
	SleeveID    string
	Date        time.Time
	Skipped     bool
	RegimeLabel string
	Universe    []string
	Targets     map[string]decimal.Decimal
	Orders      []*order.Order
	Decisions   []EngineDecision
	DataGaps    int
	Clipped     int
	Bars        map[string]datagate.MarketBar
}
