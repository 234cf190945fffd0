package campaign

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"

	"github.com/quantfoundry/walkforward/config"
	"github.com/quantfoundry/walkforward/ledger"
	"github.com/quantfoundry/walkforward/order"
	"github.com/quantfoundry/walkforward/pipeline"
	"github.com/quantfoundry/walkforward/statistics"
)

// Terminal run statuses
const (
	StatusComplete  = "COMPLETE"
	StatusCancelled = "CANCELLED"
	StatusFailed    = "FAILED"
)

var (
	// ErrCancelled marks a run stopped by campaign-level cancellation.
	// The run seals with its partial metrics; completed days are kept
	ErrCancelled = errors.New("cancellation requested")
	// errNoRequests occurs when a campaign is submitted without any runs
	errNoRequests = errors.New("no run requests")
)

// Request is one sleeve's walk-forward run over a date range
type Request struct {
	Sleeve config.SleeveConfig
	Start  time.Time
	End    time.Time
}

// BacktestRun is the sealed record of one sleeve's run: terminal status,
// metrics, and every append-only row the run produced. Never mutated
// after sealing
type BacktestRun struct {
	RunID      uuid.UUID
	SleeveID   string
	Start      time.Time
	End        time.Time
	ConfigHash string
	Status     string
	Error      string

	Report            *statistics.Report
	DataGaps          int
	SkippedDays       int
	NoLiquidityEvents int

	Snapshots []ledger.EquitySnapshot
	Orders    []order.Order
	Fills     []order.Fill
	Decisions []pipeline.EngineDecision
}

// Store persists sealed runs. Implementations must treat the run as
// append-only
type Store interface {
	SaveRun(run *BacktestRun) error
}

// Summary is the campaign-level result across all requested runs
type Summary struct {
	Runs []*BacktestRun
}
