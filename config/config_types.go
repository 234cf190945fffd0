package config

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	errNoSleeves              = errors.New("no sleeves configured")
	errDuplicateSleeveID      = errors.New("duplicate sleeve id")
	errSleeveIDUnset          = errors.New("sleeve id unset")
	errNoInstruments          = errors.New("sleeve has no instruments in scope")
	errBadParticipationLimit  = errors.New("participation limit must be in (0, 1]")
	errBadSlippageCurve       = errors.New("unknown slippage curve")
	errNonPositiveInitialCash = errors.New("initial cash must be positive")
	errBadConcurrency         = errors.New("max concurrency must be positive")
	errBadDateRange           = errors.New("invalid campaign date range")
)

// Slippage curve shapes. Both are monotonically increasing in the
// participation fraction
const (
	SlippageLinear     = "linear"
	SlippageSquareRoot = "squareroot"
)

// Config describes one campaign: a shared date range and one or more
// independent sleeves
type Config struct {
	Nickname       string         `json:"nickname"`
	StartDate      time.Time      `json:"start-date"`
	EndDate        time.Time      `json:"end-date"`
	MaxConcurrency int            `json:"max-concurrency"`
	Holidays       []time.Time    `json:"holidays,omitempty"`
	Sleeves        []SleeveConfig `json:"sleeves"`
}

// SleeveConfig is one independently simulated trading configuration.
// Immutable for the duration of a run
type SleeveConfig struct {
	SleeveID          string                     `json:"sleeve-id"`
	Region            string                     `json:"region"`
	Instruments       []string                   `json:"instruments"`
	HorizonDays       int                        `json:"horizon-days"`
	RegimeModelID     string                     `json:"regime-model-id"`
	StabilityModelID  string                     `json:"stability-model-id"`
	AssessmentModelID string                     `json:"assessment-model-id"`
	Constraints       Constraints                `json:"constraints"`
	RegimeRiskScales  map[string]decimal.Decimal `json:"regime-risk-scales,omitempty"`
	EngineTimeout     time.Duration              `json:"engine-timeout,omitempty"`
	Seed              int64                      `json:"seed"`
	Fill              FillSettings               `json:"fill"`
	Ledger            LedgerSettings             `json:"ledger"`
}

// Constraints caps portfolio construction. Violations clip the target,
// they never reject a rebalance outright
type Constraints struct {
	MaxLeverage       decimal.Decimal `json:"max-leverage"`
	MaxPositionWeight decimal.Decimal `json:"max-position-weight"`
	MaxDailyTurnover  decimal.Decimal `json:"max-daily-turnover"`
	AllowShort        bool            `json:"allow-short"`
}

// FillSettings parameterises the fill simulator
type FillSettings struct {
	ParticipationLimit   decimal.Decimal `json:"participation-limit"`
	SlippageCurve        string          `json:"slippage-curve"`
	MaxSlippageBPS       decimal.Decimal `json:"max-slippage-bps"`
	RandomSlippage       bool            `json:"random-slippage"`
	RandomSlippageMinBPS decimal.Decimal `json:"random-slippage-min-bps"`
	RandomSlippageMaxBPS decimal.Decimal `json:"random-slippage-max-bps"`
	RolloverUnfilled     bool            `json:"rollover-unfilled"`
}

// LedgerSettings parameterises cash and fee handling for one sleeve
type LedgerSettings struct {
	InitialCash decimal.Decimal `json:"initial-cash"`
	FeeBPS      decimal.Decimal `json:"fee-bps"`
}
