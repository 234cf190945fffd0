// Package store writes campaign outputs to an embedded sqlite database
// for the downstream analysis and monitoring consumers. Rows are
// insert-only; sealing a run is the single permitted update
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	// sqlite driver registration
	_ "github.com/mattn/go-sqlite3"

	"github.com/quantfoundry/walkforward/campaign"
	"github.com/quantfoundry/walkforward/common"
	"github.com/quantfoundry/walkforward/log"
)

const statusRunning = "RUNNING"

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id      TEXT PRIMARY KEY,
	sleeve_id   TEXT NOT NULL,
	start_date  TEXT NOT NULL,
	end_date    TEXT NOT NULL,
	config_hash TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	metrics     TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS equity_snapshots (
	run_id          TEXT NOT NULL,
	sleeve_id       TEXT NOT NULL,
	date            TEXT NOT NULL,
	cash            TEXT NOT NULL,
	positions_value TEXT NOT NULL,
	equity          TEXT NOT NULL,
	drawdown        TEXT NOT NULL,
	day_fees        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS orders (
	order_id     TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	sleeve_id    TEXT NOT NULL,
	instrument   TEXT NOT NULL,
	side         TEXT NOT NULL,
	quantity     TEXT NOT NULL,
	remaining    TEXT NOT NULL,
	submitted_at TEXT NOT NULL,
	status       TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS fills (
	fill_id       TEXT PRIMARY KEY,
	order_id      TEXT NOT NULL,
	run_id        TEXT NOT NULL,
	sleeve_id     TEXT NOT NULL,
	instrument    TEXT NOT NULL,
	side          TEXT NOT NULL,
	date          TEXT NOT NULL,
	quantity      TEXT NOT NULL,
	price         TEXT NOT NULL,
	slippage_bps  TEXT NOT NULL,
	participation TEXT NOT NULL,
	fee           TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS engine_decisions (
	decision_id TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	sleeve_id   TEXT NOT NULL,
	stage       TEXT NOT NULL,
	engine      TEXT NOT NULL,
	as_of       TEXT NOT NULL,
	config_id   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	input_ref   TEXT NOT NULL DEFAULT '',
	output_ref  TEXT NOT NULL DEFAULT '',
	latency_ms  INTEGER NOT NULL DEFAULT 0,
	note        TEXT NOT NULL DEFAULT ''
);`

// NewStore opens or creates the database at path and ensures the schema
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path", common.ErrNilArguments)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun persists one sealed run and all of its append-only rows in a
// single transaction: the run row is created RUNNING, children are
// inserted, then the run is sealed with its terminal status
func (s *Store) SaveRun(run *campaign.BacktestRun) error {
	if run == nil {
		return errRunUnset
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO backtest_runs (run_id, sleeve_id, start_date, end_date, config_hash, status) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID.String(), run.SleeveID,
		run.Start.Format(common.SimpleDateFormat),
		run.End.Format(common.SimpleDateFormat),
		run.ConfigHash, statusRunning); err != nil {
		return err
	}
	if err := insertChildren(tx, run); err != nil {
		return err
	}
	if err := sealRun(tx, run); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Debugf(log.Store, "persisted run %v for %s with %d snapshot(s)",
		run.RunID, run.SleeveID, len(run.Snapshots))
	return nil
}

func insertChildren(tx *sql.Tx, run *campaign.BacktestRun) error {
	for i := range run.Snapshots {
		snap := &run.Snapshots[i]
		if _, err := tx.Exec(
			`INSERT INTO equity_snapshots (run_id, sleeve_id, date, cash, positions_value, equity, drawdown, day_fees) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID.String(), snap.SleeveID,
			snap.Date.Format(common.SimpleDateFormat),
			snap.Cash.String(), snap.PositionsValue.String(),
			snap.Equity.String(), snap.Drawdown.String(),
			snap.DayFees.String()); err != nil {
			return err
		}
	}
	for i := range run.Orders {
		o := &run.Orders[i]
		if _, err := tx.Exec(
			`INSERT INTO orders (order_id, run_id, sleeve_id, instrument, side, quantity, remaining, submitted_at, status, reason) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID.String(), run.RunID.String(), o.SleeveID, o.Instrument,
			string(o.Side), o.Quantity.String(), o.Remaining.String(),
			o.SubmittedAt.Format(common.SimpleDateFormat),
			string(o.Status), o.Reason); err != nil {
			return err
		}
	}
	for i := range run.Fills {
		f := &run.Fills[i]
		if _, err := tx.Exec(
			`INSERT INTO fills (fill_id, order_id, run_id, sleeve_id, instrument, side, date, quantity, price, slippage_bps, participation, fee) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID.String(), f.OrderID.String(), run.RunID.String(),
			f.SleeveID, f.Instrument, string(f.Side),
			f.Date.Format(common.SimpleDateFormat),
			f.Quantity.String(), f.Price.String(),
			f.SlippageBPS.String(), f.Participation.String(),
			f.Fee.String()); err != nil {
			return err
		}
	}
	for i := range run.Decisions {
		d := &run.Decisions[i]
		if _, err := tx.Exec(
			`INSERT INTO engine_decisions (decision_id, run_id, sleeve_id, stage, engine, as_of, config_id, status, input_ref, output_ref, latency_ms, note) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID.String(), run.RunID.String(), d.SleeveID, d.Stage,
			d.Engine, d.AsOf.Format(common.SimpleDateFormat),
			d.ConfigID, string(d.Status), d.InputRef, d.OutputRef,
			d.Latency.Milliseconds(), d.Note); err != nil {
			return err
		}
	}
	return nil
}

// sealRun applies the single permitted update. A run that has already
// left RUNNING cannot be sealed again
func sealRun(tx *sql.Tx, run *campaign.BacktestRun) error {
	metrics := ""
	if run.Report != nil {
		out, err := json.Marshal(run.Report)
		if err != nil {
			return err
		}
		metrics = string(out)
	}
	result, err := tx.Exec(
		`UPDATE backtest_runs SET status = ?, error = ?, metrics = ? WHERE run_id = ? AND status = ?`,
		run.Status, run.Error, metrics, run.RunID.String(), statusRunning)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %v", ErrAlreadySealed, run.RunID)
	}
	return nil
}

// Runs returns every persisted run ordered by sleeve then run id
func (s *Store) Runs() ([]RunRow, error) {
	rows, err := s.db.Query(
		`SELECT run_id, sleeve_id, start_date, end_date, config_hash, status, error, metrics FROM backtest_runs ORDER BY sleeve_id, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var resp []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.SleeveID, &r.StartDate, &r.EndDate,
			&r.ConfigHash, &r.Status, &r.Error, &r.Metrics); err != nil {
			return nil, err
		}
		resp = append(resp, r)
	}
	return resp, rows.Err()
}

// CountForRun returns how many rows a child table holds for a run. Valid
// tables are the snapshot, order, fill and decision tables
func (s *Store) CountForRun(table, runID string) (int, error) {
	switch table {
	case "equity_snapshots", "orders", "fills", "engine_decisions":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM `+table+` WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}
