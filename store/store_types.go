package store

import (
	"database/sql"
	"errors"
)

var (
	// ErrAlreadySealed occurs when a second seal is attempted on a run.
	// Sealing is the only update the schema permits and it happens once
	ErrAlreadySealed = errors.New("run already sealed")
	// errRunUnset occurs when a nil run is saved
	errRunUnset = errors.New("nil run")
)

// Store persists sealed backtest runs and their append-only rows to an
// embedded sqlite database. Everything except the one sealing update is
// insert-only
type Store struct {
	db *sql.DB
}

// RunRow is the reader view of one persisted run
type RunRow struct {
	RunID      string
	SleeveID   string
	StartDate  string
	EndDate    string
	ConfigHash string
	Status     string
	Error      string
	Metrics    string
}
