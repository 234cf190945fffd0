package datagate

import (
	"encoding/json"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfoundry/walkforward/common"
)

// barFixture is the JSON shape of one bar in a price fixture file
type barFixture struct {
	Instrument string          `json:"instrument"`
	Date       string          `json:"date"`
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	Volume     decimal.Decimal `json:"volume"`
	Halted     bool            `json:"halted,omitempty"`
}

// LoadBarsFromFile reads a JSON array of daily bars into a memory source.
// Dates use the YYYY-MM-DD format
func LoadBarsFromFile(path string) (*MemorySource, error) {
	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fixtures []barFixture
	if err := json.Unmarshal(fileData, &fixtures); err != nil {
		return nil, err
	}
	source := NewMemorySource()
	for i := range fixtures {
		date, err := time.Parse(common.SimpleDateFormat, fixtures[i].Date)
		if err != nil {
			return nil, err
		}
		source.AddBar(MarketBar{
			Instrument: fixtures[i].Instrument,
			Date:       date.UTC(),
			Open:       fixtures[i].Open,
			High:       fixtures[i].High,
			Low:        fixtures[i].Low,
			Close:      fixtures[i].Close,
			Volume:     fixtures[i].Volume,
			Halted:     fixtures[i].Halted,
		})
	}
	return source, nil
}
