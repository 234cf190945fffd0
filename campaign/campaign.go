// Package campaign drives walk-forward runs across one or more sleeves.
// Each sleeve gets a private clock, gate, ledger and pipeline so runs
// share no mutable state and execute in parallel without locking
package campaign

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quantfoundry/walkforward/clock"
	"github.com/quantfoundry/walkforward/common"
	"github.com/quantfoundry/walkforward/config"
	"github.com/quantfoundry/walkforward/datagate"
	"github.com/quantfoundry/walkforward/fillsim"
	"github.com/quantfoundry/walkforward/ledger"
	"github.com/quantfoundry/walkforward/log"
	"github.com/quantfoundry/walkforward/order"
	"github.com/quantfoundry/walkforward/pipeline"
	"github.com/quantfoundry/walkforward/statistics"
)

// Runner executes campaigns against one historical source. The source
// must be safe for concurrent reads; everything else is per-sleeve
type Runner struct {
	source   datagate.Source
	holidays []time.Time
	store    Store
}

// NewRunner wires a campaign runner. store may be nil when persistence
// is not wanted
func NewRunner(source datagate.Source, holidays []time.Time, store Store) (*Runner, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: source", common.ErrNilArguments)
	}
	return &Runner{source: source, holidays: holidays, store: store}, nil
}

// Run executes every request on a bounded worker pool and returns the
// sealed summary once all sleeves reach a terminal status. Cancellation
// is checked between days; cancelled runs keep their completed days
func (r *Runner) Run(ctx context.Context, requests []Request, concurrency int) (*Summary, error) {
	if len(requests) == 0 {
		return nil, errNoRequests
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	runs := make([]*BacktestRun, len(requests))
	for i := range requests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			runs[i] = r.runSleeve(ctx, requests[i])
		}(i)
	}
	wg.Wait()

	for _, run := range runs {
		if r.store == nil {
			continue
		}
		if err := r.store.SaveRun(run); err != nil {
			log.Errorf(log.Campaign, "persisting run %v for %s: %v",
				run.RunID, run.SleeveID, err)
		}
	}
	return &Summary{Runs: runs}, nil
}

// runSleeve owns one sleeve's entire run end to end. Days are strictly
// sequential; fatal errors fail this run only
func (r *Runner) runSleeve(ctx context.Context, req Request) *BacktestRun {
	run := &BacktestRun{
		SleeveID:   req.Sleeve.SleeveID,
		Start:      common.NormaliseDate(req.Start),
		End:        common.NormaliseDate(req.End),
		ConfigHash: hashConfig(req.Sleeve),
	}
	run.RunID = order.DeriveID(req.Sleeve.SleeveID, "run",
		run.Start.Format(common.SimpleDateFormat),
		run.End.Format(common.SimpleDateFormat),
		run.ConfigHash)

	clk, err := clock.New(req.Start, req.End, clock.NewCalendar(r.holidays...))
	if err != nil {
		return r.seal(run, nil, nil, StatusFailed, err)
	}
	gate, err := datagate.NewGate(clk, r.source)
	if err != nil {
		return r.seal(run, nil, nil, StatusFailed, err)
	}
	led, err := ledger.New(req.Sleeve.SleeveID, req.Sleeve.Ledger, req.Sleeve.Constraints,
		fillsim.New(req.Sleeve.Fill, req.Sleeve.Seed))
	if err != nil {
		return r.seal(run, nil, nil, StatusFailed, err)
	}
	pipe, err := pipeline.NewRunner(req.Sleeve, gate, led)
	if err != nil {
		return r.seal(run, led, nil, StatusFailed, err)
	}

	log.Infof(log.Campaign, "%s run %v starting %s to %s",
		run.SleeveID, run.RunID,
		run.Start.Format(common.SimpleDateFormat),
		run.End.Format(common.SimpleDateFormat))

	regimes := make(map[string]string)
	status := StatusComplete
	var fatal error
	for {
		if ctx.Err() != nil {
			status = StatusCancelled
			fatal = ErrCancelled
			break
		}
		day := clk.Current()
		res, err := pipe.RunDay(ctx, day)
		if err != nil {
			status = StatusFailed
			fatal = err
			break
		}
		if _, err := led.ProcessDay(day, res.Bars); err != nil {
			status = StatusFailed
			fatal = err
			break
		}
		led.Snapshot(day, res.Bars)

		run.Decisions = append(run.Decisions, res.Decisions...)
		run.DataGaps += res.DataGaps
		if res.Skipped {
			run.SkippedDays++
		}
		if res.RegimeLabel != "" {
			regimes[day.Format(common.SimpleDateFormat)] = res.RegimeLabel
		}

		if _, err := clk.AdvanceToNextTradingDay(); err != nil {
			if !errors.Is(err, clock.ErrEndOfWindow) {
				status = StatusFailed
				fatal = err
			}
			break
		}
	}
	return r.seal(run, led, regimes, status, fatal)
}

// seal copies the ledger's append-only histories into the run, computes
// metrics over whatever days completed and fixes the terminal status
func (r *Runner) seal(run *BacktestRun, led *ledger.Ledger, regimes map[string]string, status string, fatal error) *BacktestRun {
	run.Status = status
	if fatal != nil {
		run.Error = fatal.Error()
	}
	if led != nil {
		run.Snapshots = led.Snapshots()
		run.Orders = led.Orders()
		run.Fills = led.Fills()
		run.NoLiquidityEvents = led.NoLiquidityEvents()
		report, err := statistics.CalculateReport(run.SleeveID, run.Snapshots, regimes, led.TotalTraded())
		if err == nil {
			run.Report = report
		}
	}
	switch status {
	case StatusFailed:
		log.Errorf(log.Campaign, "%s run %v failed: %v", run.SleeveID, run.RunID, fatal)
	default:
		log.Infof(log.Campaign, "%s run %v sealed %s over %d day(s)",
			run.SleeveID, run.RunID, status, len(run.Snapshots))
	}
	return run
}

func hashConfig(sleeve config.SleeveConfig) string {
	out, err := json.Marshal(sleeve)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(out)
	return hex.EncodeToString(sum[:])
}

// Failed reports whether any run ended FAILED. Cancelled and complete
// runs do not count
func (s *Summary) Failed() bool {
	for _, run := range s.Runs {
		if run.Status == StatusFailed {
			return true
		}
	}
	return false
}

// String renders the per-sleeve terminal report: status, headline
// metrics and recoverable issue counts
func (s *Summary) String() string {
	var b strings.Builder
	for _, run := range s.Runs {
		fmt.Fprintf(&b, "%s %s days=%d", run.SleeveID, run.Status, len(run.Snapshots))
		if run.Report != nil {
			fmt.Fprintf(&b, " return=%s sharpe=%s maxdd=%s turnover=%s",
				run.Report.CumulativeReturn.Round(4),
				run.Report.SharpeRatio.Round(2),
				run.Report.MaxDrawdown.Round(4),
				run.Report.Turnover.Round(2))
		}
		fmt.Fprintf(&b, " gaps=%d skipped=%d no-liquidity=%d",
			run.DataGaps, run.SkippedDays, run.NoLiquidityEvents)
		if run.Error != "" {
			fmt.Fprintf(&b, " error=%q", run.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}
