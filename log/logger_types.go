package log

import (
	"io"
	"os"
	"sync"
)

const (
	timestampFormat = "02/01/2006 15:04:05"
	spacer          = " | "
)

// Global vars related to the logger package
var (
	subLoggers = map[string]*SubLogger{}

	// Global is the fallback sublogger for anything without a subsystem
	Global *SubLogger

	// Campaign covers campaign scheduling and run sealing
	Campaign *SubLogger
	// Pipeline covers per-day stage execution and decision logging
	Pipeline *SubLogger
	// Ledger covers order acceptance, fills and equity snapshots
	Ledger *SubLogger
	// FillSim covers fill simulation
	FillSim *SubLogger
	// DataGate covers time-gated data access
	DataGate *SubLogger
	// Store covers run persistence
	Store *SubLogger

	mu sync.RWMutex
)

// Levels flags each level that a sublogger will emit
type Levels struct {
	Info, Debug, Warn, Error bool
}

// SubLogger defines a sub logger for a subsystem so output can be
// filtered and routed per subsystem
type SubLogger struct {
	name   string
	levels Levels
	output io.Writer
}

func init() {
	Global = NewSubLogger("WALKFORWARD")
	Campaign = NewSubLogger("CAMPAIGN")
	Pipeline = NewSubLogger("PIPELINE")
	Ledger = NewSubLogger("LEDGER")
	FillSim = NewSubLogger("FILLSIM")
	DataGate = NewSubLogger("DATAGATE")
	Store = NewSubLogger("STORE")
}

// NewSubLogger registers a new sublogger with default levels enabled,
// returning the existing registration for duplicate names
func NewSubLogger(name string) *SubLogger {
	mu.Lock()
	defer mu.Unlock()
	if sl, ok := subLoggers[name]; ok {
		return sl
	}
	sl := &SubLogger{
		name:   name,
		levels: Levels{Info: true, Warn: true, Error: true},
		output: os.Stdout,
	}
	subLoggers[name] = sl
	return sl
}

// SetOutput overrides where a sublogger writes
func (sl *SubLogger) SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	sl.output = w
}

// SetLevels overrides which levels a sublogger emits
func (sl *SubLogger) SetLevels(l Levels) {
	mu.Lock()
	defer mu.Unlock()
	sl.levels = l
}

// GlobalLogConfig applies levels and output to every registered sublogger
func GlobalLogConfig(l Levels, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	for _, sl := range subLoggers {
		sl.levels = l
		if w != nil {
			sl.output = w
		}
	}
}
