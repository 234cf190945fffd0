package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfoundry/walkforward/campaign"
	"github.com/quantfoundry/walkforward/ledger"
	"github.com/quantfoundry/walkforward/order"
	"github.com/quantfoundry/walkforward/pipeline"
	"github.com/quantfoundry/walkforward/statistics"
)

var testDay = time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "walkforward.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(t *testing.T) *campaign.BacktestRun {
	t.Helper()
	o, err := order.New("sleeve-1", "AAA", order.Buy, decimal.NewFromInt(100), testDay)
	require.NoError(t, err)
	o.Status = order.Filled
	o.Remaining = decimal.Zero

	return &campaign.BacktestRun{
		RunID:      order.DeriveID("sleeve-1", "run", "2024-02-05", "2024-02-07", "hash"),
		SleeveID:   "sleeve-1",
		Start:      testDay,
		End:        testDay.AddDate(0, 0, 2),
		ConfigHash: "hash",
		Status:     campaign.StatusComplete,
		Report: &statistics.Report{
			SleeveID:         "sleeve-1",
			Days:             3,
			CumulativeReturn: decimal.NewFromFloat(0.02),
		},
		Snapshots: []ledger.EquitySnapshot{{
			SleeveID: "sleeve-1",
			Date:     testDay,
			Cash:     decimal.NewFromInt(990000),
			Equity:   decimal.NewFromInt(1000000),
		}},
		Orders: []order.Order{*o},
		Fills: []order.Fill{{
			ID:         order.DeriveID(o.ID.String(), "fill", "2024-02-05"),
			OrderID:    o.ID,
			SleeveID:   "sleeve-1",
			Instrument: "AAA",
			Side:       order.Buy,
			Date:       testDay,
			Quantity:   decimal.NewFromInt(100),
			Price:      decimal.NewFromInt(100),
		}},
		Decisions: []pipeline.EngineDecision{{
			ID:       order.DeriveID("sleeve-1", "decision", "2024-02-05", pipeline.StageDataReady, "0"),
			SleeveID: "sleeve-1",
			Stage:    pipeline.StageDataReady,
			AsOf:     testDay,
			Status:   pipeline.DecisionOK,
		}},
	}
}

func TestNewStore(t *testing.T) {
	t.Parallel()
	_, err := NewStore("")
	assert.Error(t, err)
	testStore(t)
}

func TestSaveRunRoundTrip(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	run := testRun(t)
	require.NoError(t, s.SaveRun(run))

	rows, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, run.RunID.String(), rows[0].RunID)
	assert.Equal(t, campaign.StatusComplete, rows[0].Status)
	assert.Contains(t, rows[0].Metrics, "0.02")

	for _, table := range []string{"equity_snapshots", "orders", "fills", "engine_decisions"} {
		count, err := s.CountForRun(table, run.RunID.String())
		require.NoError(t, err)
		assert.Equal(t, 1, count, table)
	}
}

func TestSaveRunNil(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	assert.ErrorIs(t, s.SaveRun(nil), errRunUnset)
}

func TestSaveRunDuplicateRejected(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	run := testRun(t)
	require.NoError(t, s.SaveRun(run))
	// run rows are append-only; the same run id cannot be written twice
	assert.Error(t, s.SaveRun(run))
}

func TestCountForRunUnknownTable(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	_, err := s.CountForRun("backtest_runs; DROP TABLE fills", "x")
	assert.Error(t, err)
}
