// Package config defines campaign and sleeve configuration along with
// JSON loading and validation
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/common"
)

// Defaults applied by Validate when fields are left unset
var (
	DefaultParticipationLimit = decimal.NewFromFloat(0.1)
	DefaultMaxSlippageBPS     = decimal.NewFromInt(10)
	DefaultMaxLeverage        = decimal.NewFromInt(1)
	DefaultMaxPositionWeight  = decimal.NewFromFloat(0.1)
	DefaultMaxDailyTurnover   = decimal.NewFromInt(1)
	DefaultEngineTimeout      = 30 * time.Second
	DefaultHorizonDays        = 21
)

// ReadConfigFromFile loads and validates a campaign config from a path
func ReadConfigFromFile(path string) (*Config, error) {
	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadConfig(fileData)
}

// LoadConfig unmarshals byte data into a config struct and validates it
func LoadConfig(data []byte) (*Config, error) {
	resp := &Config{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return resp, nil
}

// Validate checks all config settings and applies defaults to unset
// optional fields
func (c *Config) Validate() error {
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return fmt.Errorf("%w: %v", errBadDateRange, common.ErrDateUnset)
	}
	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("%w: %v", errBadDateRange, common.ErrStartAfterEnd)
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 1
	}
	if c.MaxConcurrency < 0 {
		return errBadConcurrency
	}
	if len(c.Sleeves) == 0 {
		return errNoSleeves
	}
	seen := make(map[string]struct{}, len(c.Sleeves))
	for i := range c.Sleeves {
		if err := c.Sleeves[i].validate(); err != nil {
			return err
		}
		if _, ok := seen[c.Sleeves[i].SleeveID]; ok {
			return fmt.Errorf("%w: %q", errDuplicateSleeveID, c.Sleeves[i].SleeveID)
		}
		seen[c.Sleeves[i].SleeveID] = struct{}{}
	}
	return nil
}

func (s *SleeveConfig) validate() error {
	if s.SleeveID == "" {
		return errSleeveIDUnset
	}
	if len(s.Instruments) == 0 {
		return fmt.Errorf("%w: %q", errNoInstruments, s.SleeveID)
	}
	if s.HorizonDays <= 0 {
		s.HorizonDays = DefaultHorizonDays
	}
	if s.EngineTimeout <= 0 {
		s.EngineTimeout = DefaultEngineTimeout
	}
	if err := s.Fill.validate(); err != nil {
		return fmt.Errorf("sleeve %q: %w", s.SleeveID, err)
	}
	if s.Ledger.InitialCash.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("sleeve %q: %w", s.SleeveID, errNonPositiveInitialCash)
	}
	s.Constraints.applyDefaults()
	return nil
}

func (f *FillSettings) validate() error {
	if f.ParticipationLimit.IsZero() {
		f.ParticipationLimit = DefaultParticipationLimit
	}
	if f.ParticipationLimit.LessThanOrEqual(decimal.Zero) ||
		f.ParticipationLimit.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %v", errBadParticipationLimit, f.ParticipationLimit)
	}
	if f.SlippageCurve == "" {
		f.SlippageCurve = SlippageLinear
	}
	if f.SlippageCurve != SlippageLinear && f.SlippageCurve != SlippageSquareRoot {
		return fmt.Errorf("%w: %q", errBadSlippageCurve, f.SlippageCurve)
	}
	if f.MaxSlippageBPS.IsZero() {
		f.MaxSlippageBPS = DefaultMaxSlippageBPS
	}
	return nil
}

func (c *Constraints) applyDefaults() {
	if c.MaxLeverage.LessThanOrEqual(decimal.Zero) {
		c.MaxLeverage = DefaultMaxLeverage
	}
	if c.MaxPositionWeight.LessThanOrEqual(decimal.Zero) {
		c.MaxPositionWeight = DefaultMaxPositionWeight
	}
	if c.MaxDailyTurnover.LessThanOrEqual(decimal.Zero) {
		c.MaxDailyTurnover = DefaultMaxDailyTurnover
	}
}
